package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"worldpanel/internal/logstream"
	"worldpanel/internal/metrics"
	"worldpanel/internal/models"
)

const (
	feedWriteTimeout = 5 * time.Second
	feedPongWait     = 60 * time.Second
	feedPingPeriod   = (feedPongWait * 9) / 10
	feedFlushPeriod  = 250 * time.Millisecond
	feedReadLimit    = 4096
)

var feedUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type logFeedPayload struct {
	WorldID string             `json:"world_id"`
	Status  logstream.Status   `json:"status"`
	Error   string             `json:"error,omitempty"`
	Records []models.LogRecord `json:"records"`
}

type metricsFeedPayload struct {
	metrics.Snapshot
	Unit string `json:"unit"`
}

func writeFeedPayload(conn *websocket.Conn, payload any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return conn.WriteJSON(payload)
}

func writePing(conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteTimeout))
}

// readLoop consumes client frames until the connection fails. Frames are
// handed to onMessage when it is non-nil.
func readLoop(conn *websocket.Conn, onMessage func([]byte)) <-chan struct{} {
	done := make(chan struct{})
	conn.SetReadLimit(feedReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
			if onMessage != nil {
				onMessage(data)
			}
		}
	}()
	return done
}

// handleLogsWS tails one world's log for the lifetime of the browser
// connection.
func (s *Server) handleLogsWS(w http.ResponseWriter, r *http.Request) {
	worldID := r.PathValue("id")
	client, err := logstream.New(s.opts.AgentURL, worldID, logstream.Options{
		Capacity:       s.opts.LogBufferSize,
		ReconnectDelay: s.opts.ReconnectDelay,
		Active:         s.worldActive(worldID),
	})
	if err != nil {
		writeError(w, &requestError{msg: err.Error()})
		return
	}

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()
	client.Start(ctx)
	defer client.Close()

	done := readLoop(conn, nil)
	snapshot := func() logFeedPayload {
		return logFeedPayload{
			WorldID: worldID,
			Status:  client.Status(),
			Error:   client.LastError(),
			Records: client.Records(),
		}
	}
	if err := writeFeedPayload(conn, snapshot()); err != nil {
		return
	}

	flush := time.NewTicker(feedFlushPeriod)
	defer flush.Stop()
	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()

	dirty := false
	for {
		select {
		case <-client.Updates():
			dirty = true
		case <-flush.C:
			// The tail stops while the world is inactive. Resume it once the
			// roster reports the world running again.
			if loopStopped(client) && s.roster != nil && s.roster.IsActive(worldID) {
				client.Start(ctx)
			}
			if !dirty {
				continue
			}
			dirty = false
			if err := writeFeedPayload(conn, snapshot()); err != nil {
				return
			}
		case <-ping.C:
			if err := writePing(conn); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func loopStopped(client *logstream.Client) bool {
	select {
	case <-client.Done():
		return true
	default:
		return false
	}
}

func (s *Server) worldActive(worldID string) func() bool {
	if s.roster == nil {
		return nil
	}
	return func() bool { return s.roster.IsActive(worldID) }
}

// handleMetricsWS runs one aggregator per connection. The browser may send a
// selection object at any time to switch range, category or sub-metric.
func (s *Server) handleMetricsWS(w http.ResponseWriter, r *http.Request) {
	if s.opts.MetricsSource == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "metrics api is not configured"})
		return
	}
	sel, err := selectionFromQuery(s.opts.DefaultSelection, r.URL.Query())
	if err != nil {
		writeError(w, &requestError{msg: err.Error()})
		return
	}
	agg, err := metrics.NewAggregator(s.opts.MetricsSource, sel, metrics.Options{})
	if err != nil {
		writeError(w, &requestError{msg: err.Error()})
		return
	}

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()
	go agg.Run(ctx)

	rejected := make(chan string, 1)
	done := readLoop(conn, func(data []byte) {
		if err := applySelection(agg, data); err != nil {
			select {
			case rejected <- err.Error():
			default:
			}
		}
	})

	if err := writeFeedPayload(conn, metricsPayload(agg.Snapshot())); err != nil {
		return
	}

	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-agg.Updates():
			if err := writeFeedPayload(conn, metricsPayload(agg.Snapshot())); err != nil {
				return
			}
		case msg := <-rejected:
			if err := writeFeedPayload(conn, errorResponse{Error: msg}); err != nil {
				return
			}
		case <-ping.C:
			if err := writePing(conn); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func metricsPayload(snap metrics.Snapshot) metricsFeedPayload {
	return metricsFeedPayload{Snapshot: snap, Unit: snap.Descriptor.UnitLabel}
}

// selectionFromQuery overlays range, category and type parameters on base.
// type applies to the chosen category.
func selectionFromQuery(base metrics.Selection, q url.Values) (metrics.Selection, error) {
	sel := base
	if v := q.Get("range"); v != "" {
		sel.Range = v
	}
	if v := q.Get("category"); v != "" {
		sel.Category = metrics.Category(v)
	}
	if v := q.Get("type"); v != "" {
		switch sel.Category {
		case metrics.CategoryDisk:
			sel.Disk = metrics.SubMetric(v)
		case metrics.CategoryNetwork:
			sel.Network = metrics.SubMetric(v)
		}
	}
	return sel, sel.Validate()
}

// applySelection merges a partial selection from the browser into the
// aggregator's current one.
func applySelection(agg *metrics.Aggregator, data []byte) error {
	sel := agg.Selection()
	if err := json.Unmarshal(data, &sel); err != nil {
		return fmt.Errorf("invalid selection: %w", err)
	}
	return agg.SetSelection(sel)
}
