package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/trezcool/hoaportal/core"
)

// State is a snapshot of who is signed in and whether they are an admin.
// Identity and IsAdmin are only authoritative once Loading is false.
type State struct {
	Identity *Identity
	IsAdmin  bool
	Loading  bool
}

// SignedIn reports whether a resolved identity is present.
func (s State) SignedIn() bool { return !s.Loading && s.Identity != nil }

// Context holds the auth state of one session, refreshed by the provider's pushes.
// The provider callback is the only writer; any number of goroutines may read.
type Context struct {
	client   Client
	resolver *RoleResolver
	logger   core.Logger

	mu          sync.RWMutex
	state       State
	generation  uint64        // number of updates applied
	changed     chan struct{} // closed and replaced on every update
	closed      bool
	unsubscribe Unsubscribe

	activateOnce sync.Once
	closeOnce    sync.Once
}

// NewContext returns an inactive context in the loading state. Call Activate, or use Open.
func NewContext(client Client, resolver *RoleResolver, logger core.Logger) *Context {
	return &Context{
		client:   client,
		resolver: resolver,
		logger:   logger,
		state:    State{Loading: true},
		changed:  make(chan struct{}),
	}
}

// Open returns an activated context. The caller owns it and must Close it.
func Open(client Client, resolver *RoleResolver, logger core.Logger) *Context {
	c := NewContext(client, resolver, logger)
	c.Activate()
	return c
}

// Activate registers the change callback with the provider. Only the first call registers.
func (c *Context) Activate() {
	c.activateOnce.Do(func() {
		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}

		unsub := c.client.OnIdentityChanged(c.onIdentityChanged)

		c.mu.Lock()
		closed = c.closed
		if !closed {
			c.unsubscribe = unsub
		}
		c.mu.Unlock()

		// Close ran while registering and could not see the disposer
		if closed {
			unsub()
		}
	})
}

// Close deregisters the change callback exactly once. Pushes arriving afterwards are ignored.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		unsub := c.unsubscribe
		c.unsubscribe = nil
		c.mu.Unlock()

		if unsub != nil {
			unsub()
		}
	})
}

func (c *Context) onIdentityChanged(id *Identity) {
	var identity *Identity
	if id != nil {
		cp := *id
		identity = &cp
	}
	isAdmin := c.resolver.IsAdmin(identity)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = State{Identity: identity, IsAdmin: isAdmin, Loading: false}
	c.generation++
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()

	if identity != nil {
		c.logger.Debug(fmt.Sprintf("auth: identity changed: uid=%s admin=%t", identity.UID, isAdmin))
	} else {
		c.logger.Debug("auth: identity changed: signed out")
	}
}

// State returns the current snapshot.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Login asks the provider to sign in. The state changes only when the provider pushes the new identity.
func (c *Context) Login(ctx context.Context, email, password string) error {
	return c.client.SignIn(ctx, email, password)
}

// Logout asks the provider to sign out. The state changes only when the provider pushes.
func (c *Context) Logout(ctx context.Context) error {
	return c.client.SignOut(ctx)
}

// Generation returns the number of provider pushes applied so far.
func (c *Context) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// WaitForChange blocks until a push newer than generation since is applied or ctx is done.
func (c *Context) WaitForChange(ctx context.Context, since uint64) (State, error) {
	for {
		c.mu.RLock()
		state, gen, ch := c.state, c.generation, c.changed
		c.mu.RUnlock()

		if gen > since {
			return state, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// WaitUntil blocks until cond holds for the current state or ctx is done.
func (c *Context) WaitUntil(ctx context.Context, cond func(State) bool) (State, error) {
	for {
		c.mu.RLock()
		state, ch := c.state, c.changed
		c.mu.RUnlock()

		if cond(state) {
			return state, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// WaitResolved blocks until the first provider push arrived or ctx is done.
func (c *Context) WaitResolved(ctx context.Context) (State, error) {
	return c.WaitUntil(ctx, func(s State) bool { return !s.Loading })
}
