package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	incoming  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 8),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.incoming:
		return 1, msg, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type scriptedDialer struct {
	mu      sync.Mutex
	results []func() (Conn, error)
	calls   int
	lastURL string
}

func (d *scriptedDialer) dial(_ context.Context, url string, _ http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastURL = url
	index := d.calls
	d.calls++
	if index >= len(d.results) {
		index = len(d.results) - 1
	}
	return d.results[index]()
}

func (d *scriptedDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func alwaysConn(conn Conn) func() (Conn, error) {
	return func() (Conn, error) { return conn, nil }
}

func alwaysErr(err error) func() (Conn, error) {
	return func() (Conn, error) { return nil, err }
}

func waitForState(t *testing.T, events <-chan Event, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Kind == EventStateChange && event.State == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func waitForPayload(t *testing.T, events <-chan Event) *PushPayload {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Kind == EventPayload {
				return event.Payload
			}
		case <-deadline:
			t.Fatal("timed out waiting for payload")
			return nil
		}
	}
}

func newTestManager(dialer *scriptedDialer, maxRetries int) *Manager {
	return NewManager(Options{
		URL:         "ws://realtime.test/api/v1/ws",
		Dial:        dialer.dial,
		BackoffBase: time.Millisecond,
		BackoffMax:  4 * time.Millisecond,
		MaxRetries:  maxRetries,
	})
}

func TestConnectWithoutCredentialStaysDisconnected(t *testing.T) {
	dialer := &scriptedDialer{results: []func() (Conn, error){alwaysConn(newFakeConn())}}
	manager := newTestManager(dialer, 3)
	defer manager.Close()

	err := manager.Connect(context.Background(), "")
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if manager.State() != StateDisconnected {
		t.Fatalf("expected Disconnected, got %v", manager.State())
	}
	if dialer.callCount() != 0 {
		t.Fatalf("expected no dial without credential, got %d calls", dialer.callCount())
	}
}

func TestConnectFailureDoesNotAutoRetry(t *testing.T) {
	dialer := &scriptedDialer{results: []func() (Conn, error){alwaysErr(errors.New("refused"))}}
	manager := newTestManager(dialer, 3)
	defer manager.Close()

	if err := manager.Connect(context.Background(), "token"); err == nil {
		t.Fatal("expected dial error")
	}
	if manager.State() != StateDisconnected {
		t.Fatalf("expected Disconnected, got %v", manager.State())
	}

	time.Sleep(20 * time.Millisecond)
	if dialer.callCount() != 1 {
		t.Fatalf("failed explicit connect must not retry, got %d calls", dialer.callCount())
	}
}

func TestConnectAppendsCredentialToURL(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{results: []func() (Conn, error){alwaysConn(conn)}}
	manager := newTestManager(dialer, 3)
	defer manager.Close()

	if err := manager.Connect(context.Background(), "se cret"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !strings.Contains(dialer.lastURL, "token=se+cret") {
		t.Fatalf("expected escaped token in URL, got %q", dialer.lastURL)
	}
}

func TestConnectDeliversPayloadsWhileConnected(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{results: []func() (Conn, error){alwaysConn(conn)}}
	manager := newTestManager(dialer, 3)
	defer manager.Close()

	if err := manager.Connect(context.Background(), "token"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, manager.Events(), StateConnected)

	raw, _ := json.Marshal(map[string]any{
		"id": 7, "title": "Booking confirmed", "message": "see you", "kind": 2,
	})
	conn.incoming <- raw

	payload := waitForPayload(t, manager.Events())
	if payload.ID != 7 || payload.Kind != KindBooking || payload.IsMessage() {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestUnexpectedCloseReconnectsWithBackoff(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &scriptedDialer{results: []func() (Conn, error){
		alwaysConn(first),
		alwaysConn(second),
	}}
	manager := newTestManager(dialer, 5)
	defer manager.Close()

	if err := manager.Connect(context.Background(), "token"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, manager.Events(), StateConnected)

	// Simulate the transport dropping.
	_ = first.Close()

	waitForState(t, manager.Events(), StateReconnecting)
	waitForState(t, manager.Events(), StateConnected)

	if dialer.callCount() != 2 {
		t.Fatalf("expected 2 dials, got %d", dialer.callCount())
	}

	// The re-established channel still delivers.
	raw, _ := json.Marshal(map[string]any{"id": 9, "conversation_id": 3, "sender_id": 2, "body": "hi"})
	second.incoming <- raw
	payload := waitForPayload(t, manager.Events())
	if !payload.IsMessage() || payload.ID != 9 {
		t.Fatalf("unexpected payload after reconnect: %+v", payload)
	}
}

func TestReconnectGivesUpAfterBoundedFailures(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{results: []func() (Conn, error){
		alwaysConn(conn),
		alwaysErr(errors.New("refused")),
	}}
	manager := newTestManager(dialer, 2)
	defer manager.Close()

	if err := manager.Connect(context.Background(), "token"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, manager.Events(), StateConnected)

	_ = conn.Close()
	waitForState(t, manager.Events(), StateReconnecting)
	waitForState(t, manager.Events(), StateDisconnected)

	// Initial dial plus both bounded retries, then nothing further.
	if got := dialer.callCount(); got != 3 {
		t.Fatalf("expected 3 dials, got %d", got)
	}
	time.Sleep(20 * time.Millisecond)
	if got := dialer.callCount(); got != 3 {
		t.Fatalf("auto-retry must stop after the bound, got %d dials", got)
	}
}

func TestCloseCancelsReconnectTimer(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{results: []func() (Conn, error){
		alwaysConn(conn),
		alwaysErr(errors.New("refused")),
	}}
	manager := NewManager(Options{
		URL:         "ws://realtime.test/api/v1/ws",
		Dial:        dialer.dial,
		BackoffBase: time.Hour, // would block forever if not cancelled
		MaxRetries:  10,
	})

	if err := manager.Connect(context.Background(), "token"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, manager.Events(), StateConnected)

	_ = conn.Close()
	waitForState(t, manager.Events(), StateReconnecting)

	manager.Close()
	if manager.State() != StateDisconnected {
		t.Fatalf("expected Disconnected after Close, got %v", manager.State())
	}
	if err := manager.Connect(context.Background(), "token"); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
	if got := dialer.callCount(); got != 1 {
		t.Fatalf("expected no dials after Close, got %d", got)
	}
}
