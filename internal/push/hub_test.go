package push

import (
	"encoding/json"
	"testing"
	"time"
)

type testPayload struct {
	ID int64 `json:"id"`
}

func receivePayload(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case raw, ok := <-client.send:
		if !ok {
			t.Fatal("send channel closed unexpectedly")
		}
		return raw
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestHubDispatchFansOutToAllChannelsOfUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tabOne := NewClient(hub, nil, 7)
	tabTwo := NewClient(hub, nil, 7)
	other := NewClient(hub, nil, 9)
	hub.Register(tabOne)
	hub.Register(tabTwo)
	hub.Register(other)

	hub.Dispatch(7, testPayload{ID: 11})

	for _, client := range []*Client{tabOne, tabTwo} {
		var got testPayload
		if err := json.Unmarshal(receivePayload(t, client), &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got.ID != 11 {
			t.Fatalf("expected payload id 11, got %d", got.ID)
		}
	}

	select {
	case raw := <-other.send:
		t.Fatalf("user 9 should not receive user 7's payload, got %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDispatchToUnknownUserIsNoOp(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Nothing registered; the dispatch must simply be dropped.
	hub.Dispatch(123, testPayload{ID: 1})

	registered := NewClient(hub, nil, 5)
	hub.Register(registered)
	hub.Dispatch(5, testPayload{ID: 2})

	var got testPayload
	if err := json.Unmarshal(receivePayload(t, registered), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ID != 2 {
		t.Fatalf("expected payload id 2, got %d", got.ID)
	}
}

func TestHubPreservesSubmissionOrderPerChannel(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, 3)
	hub.Register(client)

	for i := int64(1); i <= 10; i++ {
		hub.Dispatch(3, testPayload{ID: i})
	}

	for i := int64(1); i <= 10; i++ {
		var got testPayload
		if err := json.Unmarshal(receivePayload(t, client), &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got.ID != i {
			t.Fatalf("expected payload %d in order, got %d", i, got.ID)
		}
	}
}

func TestHubDropsClientWithSaturatedChannel(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	stale := NewClient(hub, nil, 4)
	hub.Register(stale)

	// One more dispatch than the send buffer holds; the overflowing send
	// unregisters the client instead of blocking or failing the dispatch.
	for i := 0; i <= cap(stale.send); i++ {
		hub.Dispatch(4, testPayload{ID: int64(i)})
	}

	// Barrier: the hub loop is serial, so once this probe's payload comes
	// back every dispatch above has been handled.
	probe := NewClient(hub, nil, 99)
	hub.Register(probe)
	hub.Dispatch(99, testPayload{ID: 0})
	receivePayload(t, probe)

	received := 0
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stale.send:
			if !ok {
				if received != cap(stale.send) {
					t.Fatalf("expected %d buffered payloads before close, got %d", cap(stale.send), received)
				}
				return
			}
			received++
		case <-deadline:
			t.Fatal("send channel never closed for saturated client")
		}
	}
}

func TestHubUnregisterRemovesOnlyThatClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	keep := NewClient(hub, nil, 8)
	drop := NewClient(hub, nil, 8)
	hub.Register(keep)
	hub.Register(drop)
	hub.Unregister(drop)

	hub.Dispatch(8, testPayload{ID: 21})

	var got testPayload
	if err := json.Unmarshal(receivePayload(t, keep), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ID != 21 {
		t.Fatalf("expected payload id 21, got %d", got.ID)
	}

	select {
	case _, ok := <-drop.send:
		if ok {
			t.Fatal("unregistered client received payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("unregistered client's channel was not closed")
	}
}
