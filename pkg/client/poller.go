package client

import (
	"context"
	"time"
)

// Fetcher is the pull path: the same retrieval endpoints the initial load
// uses, consumed here only while the push channel is down.
type Fetcher interface {
	UnreadCount(ctx context.Context) (int, error)
	ListNotifications(ctx context.Context) ([]PushPayload, error)
}

// Reconciler keeps local state consistent when push is unavailable. It owns
// the poll loop as a side effect of the connection state machine: entering
// Disconnected or Reconnecting starts polling, entering Connected cancels it,
// so there is never more than one loop.
type Reconciler struct {
	fetcher  Fetcher
	inbox    *Inbox
	interval time.Duration

	// OnAnnounce fires once per first-seen record, from push or poll.
	OnAnnounce func(PushPayload)

	// OnCount fires with the server's unread recount after each poll; the
	// value is authoritative and overrides any local optimistic counter.
	OnCount func(int)
}

func NewReconciler(fetcher Fetcher, inbox *Inbox, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reconciler{
		fetcher:  fetcher,
		inbox:    inbox,
		interval: interval,
	}
}

// Run consumes the manager's event stream until ctx is cancelled or the
// stream closes. Inbound payloads are merged into the inbox; state changes
// start and stop the fallback poll loop.
func (r *Reconciler) Run(ctx context.Context, events <-chan Event) {
	var pollCancel context.CancelFunc
	stopPolling := func() {
		if pollCancel != nil {
			pollCancel()
			pollCancel = nil
		}
	}
	defer stopPolling()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			switch event.Kind {
			case EventPayload:
				if event.Payload == nil || event.Payload.IsError() {
					continue
				}
				if r.inbox.Add(*event.Payload) && r.OnAnnounce != nil {
					r.OnAnnounce(*event.Payload)
				}
			case EventStateChange:
				switch event.State {
				case StateDisconnected, StateReconnecting:
					if pollCancel == nil {
						var pollCtx context.Context
						pollCtx, pollCancel = context.WithCancel(ctx)
						go r.pollLoop(pollCtx)
					}
				case StateConnected:
					stopPolling()
				}
			}
		}
	}
}

func (r *Reconciler) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Reconciler) pollOnce(ctx context.Context) {
	payloads, err := r.fetcher.ListNotifications(ctx)
	if err == nil {
		for _, payload := range payloads {
			if r.inbox.Add(payload) && r.OnAnnounce != nil {
				r.OnAnnounce(payload)
			}
		}
	}

	count, err := r.fetcher.UnreadCount(ctx)
	if err == nil && r.OnCount != nil {
		r.OnCount(count)
	}
}
