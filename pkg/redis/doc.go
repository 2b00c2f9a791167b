// Package redis connects to Redis and exposes it as a storage.Store backend
// for the notification pipeline.
//
// The package wraps the go-redis client and adds:
//
//   - Connect, which retries the initial ping using the supplied configuration.
//   - Store, a storage.Store implementation with an optional key prefix and TTL.
//   - Healthcheck, a probe function for readiness checks.
//
// Configuration is described by the Config struct whose fields can be
// populated from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	store := redis.NewStoreWithConfig(client, cfg)
//	history := notifications.NewHistory(notifications.WithHistoryStore(store))
//
// # Errors
//
// Sentinel errors (ErrRedisNotReady, ErrStoreOperationFailed, ...) wrap the
// underlying go-redis errors using errors.Join. Missing keys are reported as
// storage.ErrNotFound.
package redis
