// Package devserver is a reference notification source for local runs and
// integration tests.
//
// It speaks the same envelope protocol as pkg/realtime: clients connect to
// GET /ws?userId=..., send subscribe and updatePreferences messages, and
// receive domain events. A generator publishes mock fantasy-sports events on
// a fixed interval, and POST /api/events injects arbitrary ones. Push
// registrations posted by pkg/push land in a Registry, kept in memory or in
// Postgres when PG_CONN_URL is set.
//
//	srv := devserver.New(cfg, devserver.WithLogger(log))
//	go srv.RunGenerator(ctx)
//	err := httpserver.NewFromConfig(cfg.HTTP).Run(ctx, srv.Handler())
package devserver
