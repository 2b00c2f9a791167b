package redis_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/storage"
)

type fakeRedis struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, exp time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewStatusResult("", f.err)
	}
	f.data[key] = append([]byte(nil), value.([]byte)...)
	f.ttls[key] = exp
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func TestStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := newFakeRedis()
	s := redis.NewStore(fake, redis.WithKeyPrefix("nk:u1:"), redis.WithTTL(time.Hour))

	_, err := s.Get(ctx, "notifications")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "notifications", []byte(`[]`)))
	assert.Contains(t, fake.data, "nk:u1:notifications")
	assert.Equal(t, time.Hour, fake.ttls["nk:u1:notifications"])

	got, err := s.Get(ctx, "notifications")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, s.Delete(ctx, "notifications"))
	_, err = s.Get(ctx, "notifications")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, s.Set(ctx, "", nil), storage.ErrInvalidKey)
}

func TestStoreWrapsClientErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	s := redis.NewStoreWithConfig(fake, redis.Config{KeyPrefix: "nk:"})

	err := s.Set(ctx, "k", []byte("v"))
	assert.ErrorIs(t, err, redis.ErrStoreOperationFailed)
	assert.ErrorIs(t, err, fake.err)

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, redis.ErrStoreOperationFailed)
	assert.NotErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "k"), redis.ErrStoreOperationFailed)
}

func TestConnectValidation(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), redis.Config{})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)

	_, err = redis.Connect(context.Background(), redis.Config{ConnectionURL: "mysql://nope"})
	assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
}
