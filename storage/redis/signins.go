// Package redisstore keeps the identity provider's sign-ins in redis so they
// survive restarts and are shared between instances.
package redisstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/identity"
)

const signInKeyPrefix = "hoaportal:signin:"

type signInStore struct {
	rdb redis.Cmdable
}

var _ identity.SignInStore = (*signInStore)(nil) // interface compliance check

func NewSignInStore(rdb redis.Cmdable) *signInStore {
	return &signInStore{rdb: rdb}
}

// NewClient returns a redis client for conf and checks it answers.
func NewClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", conf.Redis.Addr)
	}
	return rdb, nil
}

func signInKey(sid string) string {
	return signInKeyPrefix + sid
}

func (store *signInStore) GetSignIn(ctx context.Context, sid string) (string, error) {
	uid, err := store.rdb.Get(ctx, signInKey(sid)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", identity.ErrNotFound
		}
		return "", errors.Wrap(err, "getting sign-in")
	}
	return uid, nil
}

// SetSignIn stores the sign-in; a zero ttl keeps it until deleted.
func (store *signInStore) SetSignIn(ctx context.Context, sid, uid string, ttl time.Duration) error {
	if err := store.rdb.Set(ctx, signInKey(sid), uid, ttl).Err(); err != nil {
		return errors.Wrap(err, "setting sign-in")
	}
	return nil
}

func (store *signInStore) DeleteSignIn(ctx context.Context, sid string) error {
	if err := store.rdb.Del(ctx, signInKey(sid)).Err(); err != nil {
		return errors.Wrap(err, "deleting sign-in")
	}
	return nil
}
