package models

import "time"

// AgentStatus captures the outcome of a reachability probe against the agent host.
type AgentStatus struct {
	Target    string    `json:"target"`
	Address   string    `json:"address"`
	OK        bool      `json:"ok"`
	LatencyMs int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
