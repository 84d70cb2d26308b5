// Package relay keeps a single WebSocket to the desktop app alive and
// delivers frames over it.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/onkernel/aibridge/lib/protocol"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusOpen         Status = "open"
)

type Config struct {
	URL               string
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	WatchdogInterval  time.Duration
	DialTimeout       time.Duration
	WriteTimeout      time.Duration
}

// Conn is the subset of *websocket.Conn the manager uses.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

type DialFunc func(ctx context.Context, url string) (Conn, error)

// Handler receives inbound messages in arrival order on the read goroutine.
type Handler func(ctx context.Context, data []byte)

type Option func(*Manager)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d DialFunc) Option {
	return func(m *Manager) { m.dial = d }
}

const maxMessageSize = 16 << 20

func dialWebSocket(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(maxMessageSize)
	return c, nil
}

// Manager owns the connection to the desktop app. At most one socket is open
// or being dialed at any time, and at most one heartbeat and one pending
// reconnect exist.
type Manager struct {
	cfg  Config
	log  *slog.Logger
	dial DialFunc

	ctx     context.Context
	cancel  context.CancelFunc
	handler Handler
	wg      sync.WaitGroup

	mu            sync.Mutex
	status        Status
	conn          Conn
	connID        string
	reconnect     *time.Timer
	stopHeartbeat context.CancelFunc
	closed        bool

	writeMu sync.Mutex
}

func New(cfg Config, log *slog.Logger, opts ...Option) *Manager {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	m := &Manager{
		cfg:    cfg,
		log:    log.With("component", "relay"),
		dial:   dialWebSocket,
		status: StatusDisconnected,
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start dials the desktop app and starts the watchdog. It must be called once.
func (m *Manager) Start(ctx context.Context, h Handler) {
	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.handler = h
	m.wg.Add(1)
	m.mu.Unlock()

	go m.watchdog()
	m.Connect()
}

// Run starts the manager and closes it once ctx is done.
func (m *Manager) Run(ctx context.Context, h Handler) error {
	m.Start(ctx, h)
	<-ctx.Done()
	m.Close()
	return nil
}

// Connect dials the desktop app unless a socket is already open or being
// dialed. A failed dial schedules a reconnect.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.closed || m.status != StatusDisconnected {
		m.mu.Unlock()
		return
	}
	m.status = StatusConnecting
	ctx := m.ctx
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	conn, err := m.dial(dialCtx, m.cfg.URL)
	cancel()
	if err != nil {
		m.log.Debug("relay dial failed", "url", m.cfg.URL, "err", err)
		m.mu.Lock()
		m.status = StatusDisconnected
		if !m.closed {
			m.scheduleReconnectLocked()
		}
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if m.closed {
		m.status = StatusDisconnected
		m.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bridge closing")
		return
	}
	m.conn = conn
	m.connID = uuid.NewString()
	m.status = StatusOpen
	m.clearReconnectLocked()
	m.wg.Add(1)
	connID := m.connID
	m.mu.Unlock()

	m.log.Info("relay connected", "url", m.cfg.URL, "conn", connID)
	go m.readLoop(conn)

	m.Send(protocol.NewPing())

	m.mu.Lock()
	if m.conn == conn {
		m.startHeartbeatLocked()
	}
	m.mu.Unlock()
}

// Send writes frame as JSON. It reports whether the frame went out on an open
// socket. Frames are never queued or retried.
func (m *Manager) Send(frame any) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		m.log.Error("marshal frame", "err", err)
		return false
	}

	m.mu.Lock()
	conn, open, ctx := m.conn, m.status == StatusOpen, m.ctx
	m.mu.Unlock()
	if !open || conn == nil {
		return false
	}

	m.writeMu.Lock()
	wctx, cancel := context.WithTimeout(ctx, m.cfg.WriteTimeout)
	err = conn.Write(wctx, websocket.MessageText, data)
	cancel()
	m.writeMu.Unlock()
	if err != nil {
		m.log.Warn("relay write failed", "err", err)
		m.handleClose(conn, err)
		return false
	}
	return true
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ConnectionID identifies the currently open socket, or is empty.
func (m *Manager) ConnectionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connID
}

// Close tears everything down and waits for the manager's goroutines.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.clearReconnectLocked()
	m.stopHeartbeatLocked()
	conn := m.conn
	m.conn = nil
	m.connID = ""
	m.status = StatusDisconnected
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bridge closing")
	}
	m.wg.Wait()
}

func (m *Manager) readLoop(conn Conn) {
	defer m.wg.Done()
	for {
		_, data, err := conn.Read(m.ctx)
		if err != nil {
			m.handleClose(conn, err)
			return
		}
		if m.handler != nil {
			m.handler(m.ctx, data)
		}
	}
}

// handleClose reacts to a socket going away. Events for a socket that is no
// longer current are ignored.
func (m *Manager) handleClose(conn Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	connID := m.connID
	m.conn = nil
	m.connID = ""
	m.stopHeartbeatLocked()
	m.status = StatusDisconnected
	if !m.closed {
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()

	_ = conn.Close(websocket.StatusGoingAway, "")
	if m.ctx.Err() == nil {
		m.log.Info("relay disconnected", "conn", connID, "err", closeReason(err), "retry_in", m.cfg.ReconnectDelay)
	}
}

func closeReason(err error) any {
	if code := websocket.CloseStatus(err); code != -1 {
		return code.String()
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return err
}

// scheduleReconnectLocked arms the reconnect timer. The dial it starts is
// tracked in wg so Close does not return while it is in flight.
func (m *Manager) scheduleReconnectLocked() {
	m.clearReconnectLocked()
	m.reconnect = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.wg.Add(1)
		m.mu.Unlock()
		defer m.wg.Done()
		m.Connect()
	})
}

func (m *Manager) clearReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

func (m *Manager) startHeartbeatLocked() {
	m.stopHeartbeatLocked()
	ctx, cancel := context.WithCancel(m.ctx)
	m.stopHeartbeat = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t := time.NewTicker(m.cfg.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Send(protocol.NewPing())
			}
		}
	}()
}

func (m *Manager) stopHeartbeatLocked() {
	if m.stopHeartbeat != nil {
		m.stopHeartbeat()
		m.stopHeartbeat = nil
	}
}

func (m *Manager) watchdog() {
	defer m.wg.Done()
	t := time.NewTicker(m.cfg.WatchdogInterval)
	defer t.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
			if m.Status() != StatusOpen {
				m.Connect()
			}
		}
	}
}
