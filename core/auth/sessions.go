package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core"
)

var ErrSessionsClosed = errors.New("sessions closed")

// ClientFactory returns the provider client bound to a browser session.
type ClientFactory func(sessionID string) Client

type sessionEntry struct {
	ctx      *Context
	lastSeen time.Time
}

// Sessions owns one auth Context per browser session. Contexts are opened on first
// use and closed when idle for longer than the idle timeout, or on Close.
type Sessions struct {
	newClient   ClientFactory
	resolver    *RoleResolver
	logger      core.Logger
	idleTimeout time.Duration
	nowFunc     func() time.Time

	mu      sync.Mutex
	entries map[string]*sessionEntry
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

func NewSessions(newClient ClientFactory, resolver *RoleResolver, logger core.Logger, idleTimeout time.Duration) *Sessions {
	s := &Sessions{
		newClient:   newClient,
		resolver:    resolver,
		logger:      logger,
		idleTimeout: idleTimeout,
		nowFunc:     time.Now,
		entries:     make(map[string]*sessionEntry),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	if idleTimeout > 0 {
		go s.janitor()
	} else {
		close(s.done)
	}
	return s
}

// Get returns the auth context of session sid, opening it if needed.
func (s *Sessions) Get(sid string) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionsClosed
	}
	entry, ok := s.entries[sid]
	if !ok {
		entry = &sessionEntry{ctx: Open(s.newClient(sid), s.resolver, s.logger)}
		s.entries[sid] = entry
	}
	entry.lastSeen = s.nowFunc()
	return entry.ctx, nil
}

// Len returns the number of open contexts.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Evict closes the context of session sid, if open.
func (s *Sessions) Evict(sid string) {
	s.mu.Lock()
	entry, ok := s.entries[sid]
	delete(s.entries, sid)
	s.mu.Unlock()

	if ok {
		entry.ctx.Close()
	}
}

func (s *Sessions) evictIdle() int {
	deadline := s.nowFunc().Add(-s.idleTimeout)

	s.mu.Lock()
	idle := make([]*Context, 0)
	for sid, entry := range s.entries {
		if entry.lastSeen.Before(deadline) {
			idle = append(idle, entry.ctx)
			delete(s.entries, sid)
		}
	}
	s.mu.Unlock()

	for _, ctx := range idle {
		ctx.Close()
	}
	return len(idle)
}

func (s *Sessions) janitor() {
	defer close(s.done)

	interval := s.idleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.evictIdle(); n > 0 {
				s.logger.Debug(fmt.Sprintf("auth: evicted %d idle sessions", n))
			}
		case <-s.stop:
			return
		}
	}
}

// Close stops the janitor and closes every open context.
func (s *Sessions) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	entries := s.entries
	s.entries = make(map[string]*sessionEntry)
	close(s.stop)
	s.mu.Unlock()

	<-s.done
	for _, entry := range entries {
		entry.ctx.Close()
	}
}
