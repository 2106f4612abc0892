package idempotency

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), server
}

func TestRedisStore_ReserveLifecycle(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	first, err := store.Reserve(ctx, "key", "fp", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, first.State)

	second, err := store.Reserve(ctx, "key", "fp", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStatePending, second.State)

	_, err = store.Reserve(ctx, "key", "other", fixedTime, time.Hour)
	assert.ErrorIs(t, err, ErrFingerprintMismatch)

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Content-Length", "12")
	require.NoError(t, store.SaveResponse(ctx, "key", "fp", Response{
		Status:  http.StatusCreated,
		Headers: header,
		Body:    []byte(`{"ok":true}`),
	}, fixedTime, time.Hour))

	replay, err := store.Reserve(ctx, "key", "fp", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateCompleted, replay.State)
	assert.Equal(t, http.StatusCreated, replay.Record.ResponseStatus)
	assert.Equal(t, []byte(`{"ok":true}`), replay.Record.ResponseBody)
	assert.Equal(t, []string{"application/json"}, replay.Record.ResponseHeaders["Content-Type"])
	assert.NotContains(t, replay.Record.ResponseHeaders, "Content-Length")
}

func TestRedisStore_KeysExpire(t *testing.T) {
	ctx := context.Background()
	store, server := newRedisStore(t)

	_, err := store.Reserve(ctx, "key", "fp", fixedTime, time.Minute)
	require.NoError(t, err)
	server.FastForward(2 * time.Minute)

	again, err := store.Reserve(ctx, "key", "fp", fixedTime.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, again.State)
}

func TestRedisStore_ReleaseHonoursFingerprint(t *testing.T) {
	ctx := context.Background()
	store, server := newRedisStore(t)

	_, err := store.Reserve(ctx, "key", "fp", fixedTime, time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, "key", "intruder"))
	assert.True(t, server.Exists(redisKey("key")))

	require.NoError(t, store.Release(ctx, "key", "fp"))
	assert.False(t, server.Exists(redisKey("key")))

	require.NoError(t, store.Release(ctx, "missing", "fp"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, server := newRedisStore(t)
	server.Close()

	_, err := store.Reserve(context.Background(), "key", "fp", fixedTime, time.Hour)
	assert.Error(t, err)
}
