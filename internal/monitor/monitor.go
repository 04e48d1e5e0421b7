package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"worldpanel/internal/models"
)

const (
	defaultRefreshInterval = 30 * time.Second
	refreshTimeout         = 15 * time.Second
)

// WorldLister is the part of the backend client the monitor needs.
type WorldLister interface {
	ListWorlds(ctx context.Context) ([]models.World, error)
}

// WorldMonitor periodically refreshes the world roster and answers whether a
// world is currently active.
type WorldMonitor struct {
	lister   WorldLister
	interval time.Duration

	mu        sync.RWMutex
	loaded    bool
	worlds    []models.World
	byID      map[string]models.World
	updatedAt time.Time
	lastErr   string

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWorldMonitor creates a monitor polling lister at the given interval.
func NewWorldMonitor(lister WorldLister, interval time.Duration) *WorldMonitor {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &WorldMonitor{
		lister:   lister,
		interval: interval,
		byID:     map[string]models.World{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the refresh loop in a goroutine.
func (m *WorldMonitor) Start() {
	go m.run()
}

// Stop requests loop termination and waits until it is done.
func (m *WorldMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

// RunOnce fetches the roster and replaces the cached copy. A failed refresh
// keeps the previous roster.
func (m *WorldMonitor) RunOnce(ctx context.Context) ([]models.World, error) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	worlds, err := m.lister.ListWorlds(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.lastErr = err.Error()
		return nil, err
	}

	byID := make(map[string]models.World, len(worlds))
	for _, w := range worlds {
		byID[w.ID] = w
	}
	m.worlds = worlds
	m.byID = byID
	m.loaded = true
	m.updatedAt = time.Now().UTC()
	m.lastErr = ""
	return worlds, nil
}

// Worlds returns the cached roster.
func (m *WorldMonitor) Worlds() []models.World {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.World, len(m.worlds))
	copy(out, m.worlds)
	return out
}

// World returns one cached world.
func (m *WorldMonitor) World(id string) (models.World, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.byID[id]
	return w, ok
}

// IsActive reports whether the world is running. Until the first successful
// refresh every world counts as active so log tails are not abandoned on
// startup.
func (m *WorldMonitor) IsActive(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		return true
	}
	return m.byID[id].IsActive
}

// UpdatedAt returns the time of the last successful refresh.
func (m *WorldMonitor) UpdatedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updatedAt
}

// LastError returns the message of the last failed refresh, if the latest
// refresh failed.
func (m *WorldMonitor) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *WorldMonitor) run() {
	defer close(m.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-m.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := m.RunOnce(ctx); err != nil {
		log.Printf("initial world refresh failed: %v", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
				log.Printf("world refresh failed: %v", err)
			}
		case <-m.stopCh:
			return
		}
	}
}
