package client

import (
	"context"
	"errors"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle. Disconnected is both the initial state
// and re-enterable; pushes arrive only while Connected.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

type EventKind int

const (
	EventStateChange EventKind = iota
	EventPayload
)

// Event is emitted for every state transition and every inbound payload.
// The fallback poller and the UI layer both consume this stream.
type Event struct {
	Kind    EventKind
	State   State
	Payload *PushPayload
}

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrManagerClosed     = errors.New("connection manager closed")
)

// Conn is the subset of the websocket connection the manager uses; tests
// substitute an in-memory implementation.
type Conn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

type DialFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

type Options struct {
	// URL of the push endpoint, e.g. wss://host/api/v1/ws.
	URL string

	// Dial defaults to a gorilla dialer with a handshake timeout.
	Dial DialFunc

	HandshakeTimeout time.Duration // default 10s
	BackoffBase      time.Duration // default 1s, doubles per attempt
	BackoffMax       time.Duration // default 30s cap
	MaxRetries       int           // consecutive failures before giving up, default 8
	EventBuffer      int           // default 64
}

// Manager owns one logical push channel and re-establishes it after failure.
// After MaxRetries consecutive failures it stops retrying and requires an
// explicit Connect, which may carry a fresh credential.
type Manager struct {
	opts   Options
	events chan Event

	mu          sync.Mutex
	state       State
	conn        Conn
	cancelRetry context.CancelFunc
	attempts    int
	closed      bool
}

func NewManager(opts Options) *Manager {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 8
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Dial == nil {
		opts.Dial = gorillaDial(opts.HandshakeTimeout)
	}

	return &Manager{
		opts:   opts,
		events: make(chan Event, opts.EventBuffer),
		state:  StateDisconnected,
	}
}

func gorillaDial(handshakeTimeout time.Duration) DialFunc {
	return func(ctx context.Context, url string, header http.Header) (Conn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
		conn, _, err := dialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Events streams state transitions and inbound payloads. The channel is
// buffered; events are dropped rather than blocking the transport when no
// one is draining.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the channel with the supplied credential. An explicit call
// always cancels any pending reconnect timer first. A missing credential
// lands in Disconnected without retrying.
func (m *Manager) Connect(ctx context.Context, token string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.cancelRetry != nil {
		m.cancelRetry()
		m.cancelRetry = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.attempts = 0
	m.mu.Unlock()

	if token == "" {
		m.setState(StateDisconnected)
		return ErrMissingCredential
	}

	m.setState(StateConnecting)

	conn, err := m.dial(ctx, token)
	if err != nil {
		m.setState(StateDisconnected)
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return ErrManagerClosed
	}
	m.conn = conn
	m.mu.Unlock()

	m.setState(StateConnected)
	go m.readLoop(conn, token)
	return nil
}

// Close tears the session down: it cancels any reconnect timer, closes the
// channel and leaves the manager permanently Disconnected.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.cancelRetry != nil {
		m.cancelRetry()
		m.cancelRetry = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.setState(StateDisconnected)
}

func (m *Manager) dial(ctx context.Context, token string) (Conn, error) {
	url := m.opts.URL
	separator := "?"
	if strings.Contains(url, "?") {
		separator = "&"
	}
	url += separator + "token=" + neturl.QueryEscape(token)
	return m.opts.Dial(ctx, url, nil)
}

func (m *Manager) readLoop(conn Conn, token string) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			stale := m.conn != conn
			closed := m.closed
			if !stale {
				m.conn = nil
			}
			m.mu.Unlock()

			if stale || closed {
				return
			}
			m.scheduleReconnect(token)
			return
		}

		payload, err := decodePayload(raw)
		if err != nil {
			continue
		}
		m.emit(Event{Kind: EventPayload, Payload: payload})
	}
}

// scheduleReconnect runs the backoff loop after an unexpected closure. The
// loop is cancellable: an explicit Connect or Close aborts the pending wait.
func (m *Manager) scheduleReconnect(token string) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return
	}
	if m.cancelRetry != nil {
		m.cancelRetry()
	}
	m.cancelRetry = cancel
	m.mu.Unlock()

	m.setState(StateReconnecting)

	go func() {
		defer cancel()
		delay := m.opts.BackoffBase

		for {
			m.mu.Lock()
			attempts := m.attempts
			m.mu.Unlock()
			if attempts >= m.opts.MaxRetries {
				m.setState(StateDisconnected)
				return
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			conn, err := m.dial(ctx, token)

			m.mu.Lock()
			if m.closed || ctx.Err() != nil {
				m.mu.Unlock()
				if conn != nil {
					_ = conn.Close()
				}
				return
			}
			if err != nil {
				m.attempts++
				m.mu.Unlock()

				delay *= 2
				if delay > m.opts.BackoffMax {
					delay = m.opts.BackoffMax
				}
				continue
			}

			m.attempts = 0
			m.conn = conn
			m.cancelRetry = nil
			m.mu.Unlock()

			m.setState(StateConnected)
			go m.readLoop(conn, token)
			return
		}
	}()
}

func (m *Manager) setState(next State) {
	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	m.mu.Unlock()

	m.emit(Event{Kind: EventStateChange, State: next})
}

func (m *Manager) emit(event Event) {
	select {
	case m.events <- event:
	default:
	}
}
