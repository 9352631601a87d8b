package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hoaportal/core/identity"
	redisstore "github.com/trezcool/hoaportal/storage/redis"
	"github.com/trezcool/hoaportal/tests"
)

func TestSignInStore(t *testing.T) {
	rdb := testutil.OpenRedis(t)
	store := redisstore.NewSignInStore(rdb)
	ctx := context.Background()
	sid, other := uuid.New().String(), uuid.New().String()
	t.Cleanup(func() {
		_ = store.DeleteSignIn(ctx, sid)
		_ = store.DeleteSignIn(ctx, other)
	})

	_, err := store.GetSignIn(ctx, sid)
	assert.ErrorIs(t, err, identity.ErrNotFound)

	require.NoError(t, store.SetSignIn(ctx, sid, "u1", time.Hour))
	require.NoError(t, store.SetSignIn(ctx, other, "u2", 50*time.Millisecond))

	uid, err := store.GetSignIn(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	ttl, err := rdb.TTL(ctx, "hoaportal:signin:"+sid).Result()
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)

	time.Sleep(100 * time.Millisecond)
	_, err = store.GetSignIn(ctx, other)
	assert.ErrorIs(t, err, identity.ErrNotFound, "expired")

	require.NoError(t, store.DeleteSignIn(ctx, sid))
	require.NoError(t, store.DeleteSignIn(ctx, sid))
	_, err = store.GetSignIn(ctx, sid)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}
