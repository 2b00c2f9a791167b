package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/notifykit/pkg/storage"
)

// Commander is the subset of the go-redis client used by Store.
// *redis.Client, *redis.ClusterClient and redis.UniversalClient satisfy it.
type Commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store implements storage.Store on top of Redis strings.
type Store struct {
	db     Commander
	prefix string
	ttl    time.Duration
}

var _ storage.Store = (*Store)(nil)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeyPrefix namespaces every key, e.g. "notifykit:user-42:".
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires stored keys after d. Zero means no expiration.
func WithTTL(d time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = d
	}
}

// NewStore wraps a Redis client.
func NewStore(db Commander, opts ...StoreOption) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreWithConfig applies the key prefix and TTL from cfg.
func NewStoreWithConfig(db Commander, cfg Config) *Store {
	return NewStore(db, WithKeyPrefix(cfg.KeyPrefix), WithTTL(cfg.KeyTTL))
}

// Get maps redis.Nil to storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, storage.ErrInvalidKey
	}
	val, err := s.db.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Join(ErrStoreOperationFailed, err)
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	if err := s.db.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return errors.Join(ErrStoreOperationFailed, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	if err := s.db.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreOperationFailed, err)
	}
	return nil
}
