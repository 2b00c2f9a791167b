package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/sqlite"
	"github.com/dmitrymomot/notifykit/pkg/storage"
)

// OpenStorage opens the backend named by cfg.Storage. The returned close
// function releases the backend's resources and is never nil.
func OpenStorage(ctx context.Context, cfg Config) (storage.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage {
	case "", StorageMemory:
		return storage.NewMemoryStore(), noop, nil

	case StorageFile:
		s, err := storage.NewFileStore(cfg.StorageDir)
		if err != nil {
			return nil, noop, errors.Join(ErrStorageOpen, err)
		}
		return s, noop, nil

	case StorageRedis:
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, errors.Join(ErrStorageOpen, err)
		}
		return redis.NewStoreWithConfig(client, cfg.Redis), client.Close, nil

	case StorageSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, errors.Join(ErrStorageOpen, err)
		}
		return s, s.Close, nil

	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownStorage, cfg.Storage)
	}
}
