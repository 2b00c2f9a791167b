// Package httpserver runs an http.Handler with graceful shutdown.
//
// Run binds the listener, calls the start hooks with the bound address and
// serves until the context is canceled, SIGINT or SIGTERM arrives, or
// Shutdown is called. Binding to port 0 is supported; Addr reports the port
// that was picked, which is handy in tests.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.HealthCheckHandler(log))
//	if err := srv.Run(ctx, r); err != nil {
//		return err
//	}
//
// Listen failures are wrapped with ErrStart and shutdown failures with
// ErrShutdown.
package httpserver
