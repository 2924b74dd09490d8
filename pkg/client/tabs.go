package client

import "sync"

// TabRegistry is the process-wide observable keyed by user session that
// keeps unread counters aligned across concurrent UI instances. Local
// decrements are optimistic; Reconcile with a server recount is always
// authoritative.
type TabRegistry struct {
	mu       sync.Mutex
	sessions map[string]map[*Tab]struct{}
}

// Tab is one UI instance's view of the shared unread counter.
type Tab struct {
	registry   *TabRegistry
	sessionKey string

	mu     sync.Mutex
	unread int
}

func NewTabRegistry() *TabRegistry {
	return &TabRegistry{sessions: make(map[string]map[*Tab]struct{})}
}

// Join registers a new tab under the session and seeds it with the counter
// value its siblings currently hold.
func (r *TabRegistry) Join(sessionKey string) *Tab {
	tab := &Tab{registry: r, sessionKey: sessionKey}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[sessionKey]
	if !ok {
		set = make(map[*Tab]struct{})
		r.sessions[sessionKey] = set
	}
	for sibling := range set {
		tab.unread = sibling.snapshot()
		break
	}
	set[tab] = struct{}{}
	return tab
}

func (t *Tab) Leave() {
	r := t.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[t.sessionKey]
	if !ok {
		return
	}
	delete(set, t)
	if len(set) == 0 {
		delete(r.sessions, t.sessionKey)
	}
}

func (t *Tab) Unread() int {
	return t.snapshot()
}

func (t *Tab) snapshot() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unread
}

// Incremented broadcasts a new-notification increment to every tab of the
// session, including the caller.
func (t *Tab) Incremented(n int) {
	if n <= 0 {
		return
	}
	t.registry.broadcast(t.sessionKey, func(sibling *Tab) {
		sibling.adjust(n)
	})
}

// MarkedRead broadcasts an optimistic decrement for n notifications the user
// just read. Concurrent decrements from two tabs for the same notification
// can undershoot; the next Reconcile corrects that.
func (t *Tab) MarkedRead(n int) {
	if n <= 0 {
		return
	}
	t.registry.broadcast(t.sessionKey, func(sibling *Tab) {
		sibling.adjust(-n)
	})
}

// Reconcile overwrites every sibling with the server recount.
func (t *Tab) Reconcile(serverCount int) {
	if serverCount < 0 {
		serverCount = 0
	}
	t.registry.broadcast(t.sessionKey, func(sibling *Tab) {
		sibling.set(serverCount)
	})
}

func (r *TabRegistry) broadcast(sessionKey string, apply func(*Tab)) {
	r.mu.Lock()
	tabs := make([]*Tab, 0, len(r.sessions[sessionKey]))
	for tab := range r.sessions[sessionKey] {
		tabs = append(tabs, tab)
	}
	r.mu.Unlock()

	for _, tab := range tabs {
		apply(tab)
	}
}

func (t *Tab) adjust(delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.unread += delta
	if t.unread < 0 {
		t.unread = 0
	}
}

func (t *Tab) set(value int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unread = value
}
