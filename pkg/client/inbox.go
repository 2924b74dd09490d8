package client

import "sync"

// Inbox is the identity-keyed local record of delivered payloads. Push is
// at-least-once, and the poll path can return records push already delivered,
// so Add reports whether a payload is first-seen: only first-seen records
// should be announced to the user.
type Inbox struct {
	mu   sync.Mutex
	seen map[string]PushPayload
}

func NewInbox() *Inbox {
	return &Inbox{seen: make(map[string]PushPayload)}
}

// Add merges a payload by identity. Duplicates refresh the stored record
// silently and return false.
func (in *Inbox) Add(payload PushPayload) bool {
	key := payload.Key()

	in.mu.Lock()
	defer in.mu.Unlock()

	_, exists := in.seen[key]
	in.seen[key] = payload
	return !exists
}

func (in *Inbox) Has(payload PushPayload) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	_, exists := in.seen[payload.Key()]
	return exists
}

func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.seen)
}

func (in *Inbox) All() []PushPayload {
	in.mu.Lock()
	defer in.mu.Unlock()

	payloads := make([]PushPayload, 0, len(in.seen))
	for _, payload := range in.seen {
		payloads = append(payloads, payload)
	}
	return payloads
}
