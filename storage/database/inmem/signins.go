package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/hoaportal/core/identity"
)

type signInStore struct {
	db      *signInTable
	nowFunc func() time.Time
}

var _ identity.SignInStore = (*signInStore)(nil) // interface compliance check

func NewSignInStore(db *DB) *signInStore {
	return &signInStore{db: db.signIns, nowFunc: time.Now}
}

func (store *signInStore) GetSignIn(_ context.Context, sid string) (string, error) {
	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()

	s, ok := store.db.t[sid]
	if !ok {
		return "", identity.ErrNotFound
	}
	if !s.expiresAt.IsZero() && !store.nowFunc().Before(s.expiresAt) {
		delete(store.db.t, sid)
		return "", identity.ErrNotFound
	}
	return s.uid, nil
}

func (store *signInStore) SetSignIn(_ context.Context, sid, uid string, ttl time.Duration) error {
	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()

	s := signIn{uid: uid}
	if ttl > 0 {
		s.expiresAt = store.nowFunc().Add(ttl)
	}
	store.db.t[sid] = s
	return nil
}

func (store *signInStore) DeleteSignIn(_ context.Context, sid string) error {
	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()
	delete(store.db.t, sid)
	return nil
}
