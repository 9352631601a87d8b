package identity

import (
	"sync"

	"github.com/trezcool/hoaportal/core/auth"
)

// subscription delivers identity changes to one callback, in order, from its own goroutine.
// Undelivered changes coalesce: the callback always receives the latest state.
type subscription struct {
	id  uint64
	sid string
	cb  func(*auth.Identity)

	mu         sync.Mutex
	pending    *auth.Identity
	hasPending bool
	fetch      bool   // deliver the stored state instead of pending
	resolving  bool   // a fetch is reading the stored state
	uid        string // account of the latest state, delivered or pending

	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscription(id uint64, sid string, cb func(*auth.Identity)) *subscription {
	return &subscription{
		id:     id,
		sid:    sid,
		cb:     cb,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *subscription) notify() {
	select {
	case s.signal <- struct{}{}:
	default: // a delivery is already scheduled
	}
}

func (s *subscription) requestFetch() {
	s.mu.Lock()
	s.fetch = true
	s.hasPending = false
	s.pending = nil
	s.mu.Unlock()
	s.notify()
}

func (s *subscription) push(id *auth.Identity) {
	s.mu.Lock()
	s.pending = id
	s.hasPending = true
	s.fetch = false
	s.uid = uidOf(id)
	s.mu.Unlock()
	s.notify()
}

func (s *subscription) take() (id *auth.Identity, fetch, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, fetch, ok = s.pending, s.fetch, s.hasPending || s.fetch
	s.pending, s.hasPending, s.fetch = nil, false, false
	if fetch {
		s.resolving = true
	}
	return id, fetch, ok
}

// resolved records the state a fetch read.
func (s *subscription) resolved(id *auth.Identity) {
	s.mu.Lock()
	s.resolving = false
	s.uid = uidOf(id)
	s.mu.Unlock()
}

// holds reports whether the subscription's state may be signed in as uid.
func (s *subscription) holds(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolving || s.uid == uid
}

func uidOf(id *auth.Identity) string {
	if id == nil {
		return ""
	}
	return id.UID
}

func (s *subscription) cancel() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscription) cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// hub keeps the subscriptions per session id.
type hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]*subscription
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[uint64]*subscription)}
}

func (h *hub) add(sid string, cb func(*auth.Identity)) *subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := newSubscription(h.nextID, sid, cb)
	if h.subs[sid] == nil {
		h.subs[sid] = make(map[uint64]*subscription)
	}
	h.subs[sid][sub.id] = sub
	return sub
}

func (h *hub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subs[sub.sid]; ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(h.subs, sub.sid)
		}
	}
}

func (h *hub) publish(sid string, id *auth.Identity) {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs[sid]))
	for _, sub := range h.subs[sid] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.push(id)
	}
}

// refetch makes every subscription that may be signed in as uid read the stored state again.
func (h *hub) refetch(uid string) int {
	h.mu.Lock()
	subs := make([]*subscription, 0)
	for _, bySID := range h.subs {
		for _, sub := range bySID {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	var n int
	for _, sub := range subs {
		if sub.holds(uid) {
			sub.requestFetch()
			n++
		}
	}
	return n
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n int
	for _, subs := range h.subs {
		n += len(subs)
	}
	return n
}
