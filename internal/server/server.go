package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"time"

	"worldpanel/internal/api"
	"worldpanel/internal/metrics"
	"worldpanel/internal/models"
	"worldpanel/internal/properties"
	"worldpanel/internal/validate"

	"golang.org/x/time/rate"
)

//go:embed static/*
var embeddedStatic embed.FS

const maxJSONBody = 1 << 20

// Backend is the orchestration API as used by the panel.
type Backend interface {
	ListWorlds(ctx context.Context) ([]models.World, error)
	GetWorld(ctx context.Context, id string) (models.World, error)
	CreateWorld(ctx context.Context, cfg models.WorldConfig) error
	Control(ctx context.Context, id string, action api.Action) error
	SetPort(ctx context.Context, id string, port int) error
	SetRAM(ctx context.Context, id string, ram models.RAM) error
	Properties(ctx context.Context, id string) (map[string]string, error)
	UpdateProperties(ctx context.Context, id string, props map[string]string) (map[string]string, error)
	Players(ctx context.Context, id string) ([]models.Player, error)
	SetPlayerList(ctx context.Context, id, username string, list validate.PlayerList) error
	Datapacks(ctx context.Context, id string) ([]models.Datapack, error)
	DeleteDatapack(ctx context.Context, id, name string) error
	UploadDatapack(ctx context.Context, id, name string, archive io.Reader, size int64) error
	Backup(ctx context.Context, id string, w io.Writer) (int64, error)
	Download(ctx context.Context, id string, w io.Writer) (int64, error)
	ReleaseVersions(ctx context.Context) ([]models.GameVersion, error)
}

// Roster answers questions about the cached world list.
type Roster interface {
	IsActive(id string) bool
	RunOnce(ctx context.Context) ([]models.World, error)
}

// AgentStatusSource exposes agent reachability samples.
type AgentStatusSource interface {
	Latest() (models.AgentStatus, bool)
	History(cutoff time.Time) []models.AgentStatus
}

// Options configure the panel server.
type Options struct {
	Addr             string
	AgentURL         string
	LogBufferSize    int
	ReconnectDelay   time.Duration
	MetricsSource    metrics.Source
	DefaultSelection metrics.Selection
	RequestsPerSec   float64
	Burst            int
}

// Server wraps HTTP serving of the panel API, the websocket feeds and the
// static index page.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	staticFS   fs.FS
	opts       Options
	backend    Backend
	roster     Roster
	agent      AgentStatusSource
	limiter    *ipRateLimiter

	// baseCtx parents every websocket feed and is cancelled by Shutdown.
	baseCtx     context.Context
	cancelFeeds context.CancelFunc
}

// New creates a configured HTTP server for the panel. agent may be nil.
func New(opts Options, backend Backend, roster Roster, agent AgentStatusSource) *Server {
	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic("static assets missing: " + err.Error())
	}
	if opts.DefaultSelection.Range == "" {
		opts.DefaultSelection = metrics.DefaultSelection()
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}

	baseCtx, cancelFeeds := context.WithCancel(context.Background())
	mux := http.NewServeMux()
	s := &Server{
		staticFS:    staticFS,
		opts:        opts,
		backend:     backend,
		roster:      roster,
		agent:       agent,
		limiter:     newIPRateLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		handler:     mux,
		baseCtx:     baseCtx,
		cancelFeeds: cancelFeeds,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.registerRoutes(mux)
	return s
}

// Handler exposes the routed handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown closes the websocket feeds, including their upstream log tails
// and aggregators, then gracefully shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelFeeds()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("GET /api/worlds", s.handleListWorlds)
	mux.Handle("POST /api/worlds", s.limited(s.handleCreateWorld))
	mux.HandleFunc("GET /api/worlds/{id}", s.handleGetWorld)
	mux.Handle("POST /api/worlds/{id}/{action}", s.limited(s.handleControl))
	mux.Handle("POST /api/worlds/{id}/port", s.limited(s.handleSetPort))
	mux.Handle("POST /api/worlds/{id}/ram", s.limited(s.handleSetRAM))
	mux.HandleFunc("GET /api/worlds/{id}/properties", s.handleGetProperties)
	mux.Handle("PUT /api/worlds/{id}/properties", s.limited(s.handleUpdateProperties))
	mux.HandleFunc("GET /api/worlds/{id}/players", s.handlePlayers)
	mux.Handle("POST /api/worlds/{id}/players/{username}/{list}", s.limited(s.handleSetPlayerList))
	mux.HandleFunc("GET /api/worlds/{id}/datapacks", s.handleDatapacks)
	mux.Handle("POST /api/worlds/{id}/datapacks", s.limited(s.handleUploadDatapack))
	mux.Handle("DELETE /api/worlds/{id}/datapacks/{name}", s.limited(s.handleDeleteDatapack))
	mux.HandleFunc("GET /api/worlds/{id}/backup", s.handleArchive("backup"))
	mux.HandleFunc("GET /api/worlds/{id}/download", s.handleArchive("download"))

	mux.HandleFunc("GET /api/properties/definitions", s.handlePropertyDefinitions)
	mux.HandleFunc("GET /api/metrics/ranges", s.handleMetricRanges)
	mux.HandleFunc("GET /api/agent/status", s.handleAgentStatus)
	mux.HandleFunc("GET /api/versions", s.handleVersions)

	mux.HandleFunc("GET /ws/worlds/{id}/logs", s.handleLogsWS)
	mux.HandleFunc("GET /ws/metrics", s.handleMetricsWS)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data, err := fs.ReadFile(s.staticFS, "index.html")
	if err != nil {
		http.Error(w, "index missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

type errorResponse struct {
	Error    string            `json:"error"`
	Field    string            `json:"field,omitempty"`
	Problems map[string]string `json:"problems,omitempty"`
}

// writeError maps validation failures to 400, upstream failures to the
// upstream status and transport failures to 502.
func writeError(w http.ResponseWriter, err error) {
	var (
		verr    *validate.Error
		perr    *properties.ValidationError
		apiErr  *api.Error
		bodyErr *requestError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
	case errors.As(err, &perr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: perr.Error(), Problems: perr.Problems})
	case errors.As(err, &bodyErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: bodyErr.Error()})
	case errors.As(err, &apiErr):
		writeJSON(w, apiErr.StatusCode, errorResponse{Error: apiErr.Message})
	default:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil {
		return &requestError{msg: "invalid request body: " + err.Error()}
	}
	return nil
}
