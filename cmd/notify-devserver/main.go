// Command notify-devserver serves mock fantasy-sports notifications over
// WebSocket and accepts push registrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/notifykit/internal/devserver"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run starts the server and blocks until ctx is done. ready, when not nil,
// receives the bound address once the listener is up.
func run(ctx context.Context, args []string, ready chan<- string) error {
	fs := flag.NewFlagSet("notify-devserver", flag.ContinueOnError)
	envFile := fs.String("env-file", ".env", "optional env file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := devserver.LoadConfig(*envFile)
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(devserver.RequestIDExtractor()),
	)
	logger.SetAsDefault(log)

	opts := []devserver.Option{devserver.WithLogger(log)}
	if cfg.PG.Enabled() {
		pool, err := pg.Connect(ctx, cfg.PG)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := devserver.MigrateRegistry(ctx, pool, cfg.PG, log); err != nil {
			return err
		}
		opts = append(opts,
			devserver.WithRegistry(devserver.NewPGRegistry(pool, nil)),
			devserver.WithReadinessCheck(pg.Healthcheck(pool)),
		)
	}

	srv := devserver.New(cfg, opts...)

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go srv.RunGenerator(genCtx)

	httpOpts := []httpserver.Option{httpserver.WithLogger(log), httpserver.WithoutSignals()}
	if ready != nil {
		httpOpts = append(httpOpts, httpserver.WithStartHook(func(_ context.Context, addr string) { ready <- addr }))
	}
	return httpserver.NewFromConfig(cfg.HTTP, httpOpts...).Run(ctx, srv.Handler())
}
