package auth

import (
	"context"
	"sync"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// fakeClient is a provider client whose pushes are driven by the test.
type fakeClient struct {
	mu           sync.Mutex
	subs         map[int]func(*Identity)
	next         int
	subscribed   int
	unsubscribed int

	signInErr  error
	signOutErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{subs: make(map[int]func(*Identity))}
}

func (f *fakeClient) OnIdentityChanged(cb func(*Identity)) Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	id := f.next
	f.subs[id] = cb
	f.subscribed++

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			f.unsubscribed++
		}
	}
}

// push calls the registered callbacks synchronously.
func (f *fakeClient) push(id *Identity) {
	f.mu.Lock()
	cbs := make([]func(*Identity), 0, len(f.subs))
	for _, cb := range f.subs {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(id)
	}
}

func (f *fakeClient) SignIn(_ context.Context, email, _ string) error {
	if f.signInErr != nil {
		return f.signInErr
	}
	go f.push(&Identity{UID: "uid-" + email, Email: email})
	return nil
}

func (f *fakeClient) SignOut(context.Context) error {
	if f.signOutErr != nil {
		return f.signOutErr
	}
	go f.push(nil)
	return nil
}

func (f *fakeClient) counts() (subscribed, unsubscribed, live int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed, f.unsubscribed, len(f.subs)
}
