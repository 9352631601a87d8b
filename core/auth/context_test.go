package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(client Client) *Context {
	return NewContext(client, NewRoleResolver([]string{"president@willowcreek.test"}), nopLogger{})
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestContext_initialState(t *testing.T) {
	c := newTestContext(newFakeClient())
	assert.Equal(t, State{Loading: true}, c.State())
	assert.False(t, c.State().SignedIn())
}

func TestContext_resolution(t *testing.T) {
	tests := []struct {
		name string
		push *Identity
		want State
	}{
		{name: "signed out", push: nil, want: State{}},
		{
			name: "resident", push: &Identity{UID: "u1", Email: "a@b.com"},
			want: State{Identity: &Identity{UID: "u1", Email: "a@b.com"}},
		},
		{
			name: "keyword admin", push: &Identity{UID: "u2", Email: "Admin@willowcreek.test"},
			want: State{Identity: &Identity{UID: "u2", Email: "Admin@willowcreek.test"}, IsAdmin: true},
		},
		{
			name: "allow-listed admin", push: &Identity{UID: "u3", Email: "president@willowcreek.test"},
			want: State{Identity: &Identity{UID: "u3", Email: "president@willowcreek.test"}, IsAdmin: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			c := newTestContext(client)
			c.Activate()
			defer c.Close()

			client.push(tt.push)
			assert.Equal(t, tt.want, c.State())
			assert.Equal(t, tt.push != nil, c.State().SignedIn())
		})
	}
}

func TestContext_identityIsCopied(t *testing.T) {
	client := newFakeClient()
	c := newTestContext(client)
	c.Activate()
	defer c.Close()

	id := &Identity{UID: "u1", Email: "a@b.com"}
	client.push(id)
	id.Email = "admin@willowcreek.test"

	assert.Equal(t, "a@b.com", c.State().Identity.Email)
	assert.False(t, c.State().IsAdmin)
}

func TestContext_subscriptionLifecycle(t *testing.T) {
	client := newFakeClient()
	c := newTestContext(client)

	c.Activate()
	c.Activate()
	subscribed, unsubscribed, live := client.counts()
	assert.Equal(t, 1, subscribed, "registers one callback")
	assert.Equal(t, 0, unsubscribed)
	assert.Equal(t, 1, live)

	c.Close()
	c.Close()
	subscribed, unsubscribed, live = client.counts()
	assert.Equal(t, 1, subscribed)
	assert.Equal(t, 1, unsubscribed, "deregisters exactly once")
	assert.Equal(t, 0, live)

	// late pushes are ignored
	c.onIdentityChanged(&Identity{UID: "u1", Email: "a@b.com"})
	assert.Equal(t, State{Loading: true}, c.State())
}

func TestContext_closeBeforeActivate(t *testing.T) {
	client := newFakeClient()
	c := newTestContext(client)

	c.Close()
	c.Activate()

	subscribed, _, _ := client.counts()
	assert.Equal(t, 0, subscribed)
}

func TestContext_Login(t *testing.T) {
	client := newFakeClient()
	c := Open(client, NewRoleResolver(nil), nopLogger{})
	defer c.Close()

	client.push(nil)
	require.False(t, c.State().Loading)

	require.NoError(t, c.Login(context.Background(), "admin@willowcreek.test", "secret"))
	state, err := c.WaitUntil(waitCtx(t), func(s State) bool { return s.SignedIn() })
	require.NoError(t, err)
	assert.Equal(t, "admin@willowcreek.test", state.Identity.Email)
	assert.True(t, state.IsAdmin)

	require.NoError(t, c.Logout(context.Background()))
	state, err = c.WaitUntil(waitCtx(t), func(s State) bool { return !s.SignedIn() })
	require.NoError(t, err)
	assert.Equal(t, State{}, state)
}

func TestContext_LoginFailure(t *testing.T) {
	client := newFakeClient()
	client.signInErr = NewAuthFailure(CodeWrongPassword, "The password is invalid.")
	c := Open(client, NewRoleResolver(nil), nopLogger{})
	defer c.Close()
	client.push(nil)

	err := c.Login(context.Background(), "a@b.com", "nope")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeWrongPassword))
	assert.Equal(t, "Incorrect password. Please try again.", FriendlyMessage(err))
	assert.Equal(t, State{}, c.State(), "state only changes on a provider push")
}

func TestContext_LogoutFailure(t *testing.T) {
	client := newFakeClient()
	client.signOutErr = NewAuthFailure(CodeInternalError, "An internal error has occurred.")
	c := Open(client, NewRoleResolver(nil), nopLogger{})
	defer c.Close()
	client.push(&Identity{UID: "u1", Email: "a@b.com"})

	err := c.Logout(context.Background())
	require.Error(t, err)
	assert.Equal(t, "An internal error has occurred.", FriendlyMessage(err))
	assert.True(t, c.State().SignedIn())
}

func TestContext_WaitResolved(t *testing.T) {
	client := newFakeClient()
	c := Open(client, NewRoleResolver(nil), nopLogger{})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	state, err := c.WaitResolved(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, state.Loading)

	go client.push(nil)
	state, err = c.WaitResolved(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, State{}, state)
}

func TestContext_WaitForChange(t *testing.T) {
	client := newFakeClient()
	c := Open(client, NewRoleResolver(nil), nopLogger{})
	defer c.Close()
	assert.Equal(t, uint64(0), c.Generation())

	client.push(nil)
	since := c.Generation()
	assert.Equal(t, uint64(1), since)

	// nothing pushed yet
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.WaitForChange(ctx, since)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// a push of the same state still counts
	go client.push(nil)
	state, err := c.WaitForChange(waitCtx(t), since)
	require.NoError(t, err)
	assert.Equal(t, State{}, state)
	assert.Equal(t, uint64(2), c.Generation())

	// an older generation returns right away
	before := c.Generation()
	go client.push(&Identity{UID: "u1", Email: "a@b.com"})
	state, err = c.WaitForChange(waitCtx(t), before)
	require.NoError(t, err)
	assert.True(t, state.SignedIn())
	state, err = c.WaitForChange(waitCtx(t), since)
	require.NoError(t, err)
	assert.Equal(t, "u1", state.Identity.UID)

	// pushes after Close are not counted
	gen := c.Generation()
	c.Close()
	c.onIdentityChanged(nil)
	assert.Equal(t, gen, c.Generation())
}

func TestContext_concurrentReads(t *testing.T) {
	client := newFakeClient()
	c := Open(client, NewRoleResolver(nil), nopLogger{})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := c.State()
				if s.Loading {
					assert.Nil(t, s.Identity)
				}
			}
		}()
	}
	for j := 0; j < 50; j++ {
		if j%2 == 0 {
			client.push(&Identity{UID: "u1", Email: "admin@willowcreek.test"})
		} else {
			client.push(nil)
		}
	}
	wg.Wait()
	assert.False(t, c.State().Loading)
}

func TestFriendlyMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "user not found", err: NewAuthFailure(CodeUserNotFound, "There is no user record."), want: "No account was found with this email address."},
		{name: "invalid email", err: NewAuthFailure(CodeInvalidEmail, "badly formatted"), want: "Please enter a valid email address."},
		{name: "disabled", err: NewAuthFailure(CodeUserDisabled, ""), want: "This account has been disabled. Please contact the board."},
		{name: "unknown code", err: NewAuthFailure("auth/network-request-failed", "A network error has occurred."), want: "A network error has occurred."},
		{name: "unknown code, no message", err: NewAuthFailure("auth/quota-exceeded", ""), want: "auth/quota-exceeded"},
		{name: "not a provider failure", err: assert.AnError, want: assert.AnError.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FriendlyMessage(tt.err))
		})
	}
}
