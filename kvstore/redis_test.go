package kvstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/puku-sh/puku-auth/kvstore"
)

func setupRedisStore(t *testing.T) (*kvstore.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := kvstore.NewRedisStoreWithClient(client)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestRedisStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := setupRedisStore(t)

	require.NoError(t, store.Put(ctx, "callback:abc", "puku://editor/cb", 10*time.Minute))

	value, err := store.Get(ctx, "callback:abc")
	require.NoError(t, err)
	require.Equal(t, "puku://editor/cb", value)

	require.NoError(t, store.Delete(ctx, "callback:abc"))

	_, err = store.Get(ctx, "callback:abc")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestRedisStoreGetAbsentKey(t *testing.T) {
	store, _ := setupRedisStore(t)

	_, err := store.Get(context.Background(), "session:missing")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t)

	require.NoError(t, store.Put(ctx, "callback:abc", "puku://editor/cb", 10*time.Minute))

	mr.FastForward(10*time.Minute - time.Second)
	_, err := store.Get(ctx, "callback:abc")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, err = store.Get(ctx, "callback:abc")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestRedisStoreDeleteAbsentKeyIsNotAnError(t *testing.T) {
	store, _ := setupRedisStore(t)
	require.NoError(t, store.Delete(context.Background(), "session:missing"))
}
