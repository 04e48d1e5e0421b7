package monitor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"sync"
	"time"

	"worldpanel/internal/models"
)

const (
	defaultProbeInterval = 60 * time.Second
	defaultProbeTimeout  = 4 * time.Second
)

// AgentProbe periodically TCP-dials the log agent and keeps a bounded history
// of reachability samples.
type AgentProbe struct {
	target     string
	address    string
	interval   time.Duration
	timeout    time.Duration
	maxHistory int
	dialer     net.Dialer

	mu      sync.RWMutex
	latest  *models.AgentStatus
	history []models.AgentStatus

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// AgentAddress derives host:port from the agent URL, defaulting the port by
// scheme.
func AgentAddress(agentURL string) (string, error) {
	u, err := url.Parse(agentURL)
	if err != nil {
		return "", fmt.Errorf("parse agent url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("agent url %q has no host", agentURL)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https", "wss":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(host, port), nil
}

// NewAgentProbe configures a probe against the agent URL.
func NewAgentProbe(agentURL string, interval, timeout time.Duration) (*AgentProbe, error) {
	address, err := AgentAddress(agentURL)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	// one day of samples plus slack
	historyCap := int(24*time.Hour/interval) + 16
	const maxCap = 10000
	if historyCap > maxCap {
		historyCap = maxCap
	}

	return &AgentProbe{
		target:     agentURL,
		address:    address,
		interval:   interval,
		timeout:    timeout,
		maxHistory: historyCap,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Start launches the probe loop.
func (p *AgentProbe) Start() {
	go p.run()
}

// Stop requests the probe loop to terminate.
func (p *AgentProbe) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}

// Latest returns the most recent sample.
func (p *AgentProbe) Latest() (models.AgentStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.latest == nil {
		return models.AgentStatus{}, false
	}
	return *p.latest, true
}

// History returns samples whose timestamp is >= cutoff; a zero cutoff returns
// everything retained.
func (p *AgentProbe) History(cutoff time.Time) []models.AgentStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	idx := 0
	if !cutoff.IsZero() {
		idx = sort.Search(len(p.history), func(i int) bool {
			return !p.history[i].CheckedAt.Before(cutoff)
		})
	}
	if idx >= len(p.history) {
		return nil
	}
	out := make([]models.AgentStatus, len(p.history)-idx)
	copy(out, p.history[idx:])
	return out
}

// Probe performs one reachability check and records it.
func (p *AgentProbe) Probe(ctx context.Context) models.AgentStatus {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", p.address)

	status := models.AgentStatus{
		Target:    p.target,
		Address:   p.address,
		CheckedAt: time.Now().UTC(),
	}
	if err != nil {
		status.Error = err.Error()
	} else {
		status.OK = true
		status.LatencyMs = int64(time.Since(started) / time.Millisecond)
		_ = conn.Close()
	}

	p.mu.Lock()
	p.latest = &status
	p.history = append(p.history, status)
	if len(p.history) > p.maxHistory {
		p.history = p.history[len(p.history)-p.maxHistory:]
	}
	p.mu.Unlock()
	return status
}

func (p *AgentProbe) run() {
	defer close(p.doneCh)

	p.Probe(context.Background())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Probe(context.Background())
		case <-p.stopCh:
			return
		}
	}
}
