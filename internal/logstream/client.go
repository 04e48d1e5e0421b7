// Package logstream tails a world's server log over the agent's WebSocket feed.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"worldpanel/internal/models"
	"worldpanel/internal/window"
)

const (
	// DefaultCapacity is the number of records kept in memory.
	DefaultCapacity = 500
	// DefaultReconnectDelay is the fixed wait before reconnecting.
	DefaultReconnectDelay = 5 * time.Second

	handshakeTimeout = 10 * time.Second
)

// Status describes the connection state of a Client.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Options tune a Client. Zero values select the defaults.
type Options struct {
	Capacity       int
	ReconnectDelay time.Duration
	// Active reports whether the world is still running. Reconnects are only
	// attempted while it returns true. Nil means always active.
	Active func() bool
	Dialer *websocket.Dialer
	Now    func() time.Time
}

// Client keeps a live, bounded tail of one world's log.
type Client struct {
	worldID        string
	url            string
	dialer         *websocket.Dialer
	active         func() bool
	reconnectDelay time.Duration
	now            func() time.Time

	records *window.Window[models.LogRecord]
	updates chan struct{}

	mu       sync.RWMutex
	status   Status
	lastErr  string
	attempts int
	received uint64
	running  bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// StreamURL builds the log feed address for a world from the agent base URL.
func StreamURL(agentURL, worldID string) (string, error) {
	u, err := url.Parse(agentURL)
	if err != nil {
		return "", fmt.Errorf("parse agent url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported agent url scheme %q", u.Scheme)
	}
	if worldID == "" {
		return "", errors.New("world id is required")
	}
	escaped := strings.TrimSuffix(u.EscapedPath(), "/")
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/logs/" + worldID
	u.RawPath = escaped + "/ws/logs/" + url.PathEscape(worldID)
	return u.String(), nil
}

// New creates a client for the given world. Call Start to connect.
func New(agentURL, worldID string, opts Options) (*Client, error) {
	streamURL, err := StreamURL(agentURL, worldID)
	if err != nil {
		return nil, err
	}

	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	active := opts.Active
	if active == nil {
		active = func() bool { return true }
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		worldID:        worldID,
		url:            streamURL,
		dialer:         dialer,
		active:         active,
		reconnectDelay: delay,
		now:            now,
		records:        window.New[models.LogRecord](capacity),
		updates:        make(chan struct{}, 1),
		status:         StatusDisconnected,
	}, nil
}

// URL returns the feed address the client dials.
func (c *Client) URL() string { return c.url }

// Start connects in the background. It is a no-op while the client is already
// running or after Close. A client that stopped because its world went
// inactive can be started again.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	go c.run(runCtx, c.done)
}

// Close disconnects, cancels any pending reconnect and discards the buffer.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.records.Reset()
	c.setStatus(StatusDisconnected)
}

// Done is closed when the connection loop has stopped. It is nil before Start.
func (c *Client) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// LastError returns the most recent transport error, cleared on connect.
func (c *Client) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Attempts returns how many times the feed has been dialled.
func (c *Client) Attempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts
}

// Records returns the buffered records, oldest first.
func (c *Client) Records() []models.LogRecord {
	return c.records.Snapshot()
}

// Since returns the buffered records received after sequence number seq,
// together with the sequence number of the newest record. Records already
// evicted from the buffer are skipped.
func (c *Client) Since(seq uint64) ([]models.LogRecord, uint64) {
	c.mu.RLock()
	records := c.records.Snapshot()
	total := c.received
	c.mu.RUnlock()

	if seq >= total {
		return nil, total
	}
	n := total - seq
	if n > uint64(len(records)) {
		n = uint64(len(records))
	}
	return records[uint64(len(records))-n:], total
}

// Updates signals after each status change or batch of new records. Signals
// are coalesced; read Records and Status after receiving one.
func (c *Client) Updates() <-chan struct{} {
	return c.updates
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(done)
	}()

	for {
		err := c.session(ctx)
		c.setStatus(StatusDisconnected)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.setError(err.Error())
			log.Printf("log stream %s: %v", c.worldID, err)
		}
		if !c.active() {
			return
		}

		timer := time.NewTimer(c.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if !c.active() {
			return
		}
	}
}

// session dials the feed and reads until the connection ends. A nil error
// means the peer closed normally or the caller cancelled.
func (c *Client) session(ctx context.Context) error {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()
	c.setStatus(StatusConnecting)

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	c.setError("")
	c.setStatus(StatusConnected)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.receive(string(data))
	}
}

func (c *Client) receive(frame string) {
	now := c.now()
	lines := splitFrame(frame)
	batch := make([]models.LogRecord, 0, len(lines))
	for _, line := range lines {
		batch = append(batch, ParseLine(line, now))
	}
	c.mu.Lock()
	c.records.Append(batch...)
	c.received += uint64(len(batch))
	c.mu.Unlock()
	c.notify()
}

func (c *Client) setStatus(status Status) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

func (c *Client) setError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

func (c *Client) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}
