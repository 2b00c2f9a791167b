// Package pg bootstraps a PostgreSQL connection pool with pgx/v5 and applies
// goose migrations from an embedded filesystem.
//
// The development notification server uses it to keep push subscription
// registrations across restarts. Everything is optional: with an empty
// PG_CONN_URL the caller falls back to an in-memory registry.
//
//	cfg := config.MustLoad[pg.Config]()
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, ".", cfg, log); err != nil {
//		return err
//	}
//
// Healthcheck returns a func(context.Context) error suitable for readiness
// probes.
package pg
