package server

import (
	"net/http"
	"time"

	"worldpanel/internal/metrics"
	"worldpanel/internal/models"
	"worldpanel/internal/properties"
)

func (s *Server) handlePropertyDefinitions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"definitions": properties.Definitions()})
}

func (s *Server) handleMetricRanges(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ranges":    metrics.Ranges(),
		"default":   s.opts.DefaultSelection,
		"available": s.opts.MetricsSource != nil,
	})
}

type agentStatusResponse struct {
	Latest      *models.AgentStatus  `json:"latest"`
	History     []models.AgentStatus `json:"history"`
	GeneratedAt time.Time            `json:"generated_at"`
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	resp := agentStatusResponse{
		History:     []models.AgentStatus{},
		GeneratedAt: time.Now().UTC(),
	}
	if s.agent == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var cutoff time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, &requestError{msg: "since must be an RFC 3339 timestamp"})
			return
		}
		cutoff = parsed
	}

	if latest, ok := s.agent.Latest(); ok {
		resp.Latest = &latest
	}
	if history := s.agent.History(cutoff); history != nil {
		resp.History = history
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.backend.ReleaseVersions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}
