// Command notify-tail connects to a notification server as one user and
// prints toasts and connection state changes as they happen.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrymomot/notifykit/internal/pipeline"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
)

var errMissingUser = errors.New("user id is required (-user or NOTIFY_USER_ID)")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("notify-tail", flag.ContinueOnError)
	fs.SetOutput(stderr)
	userID := fs.String("user", os.Getenv("NOTIFY_USER_ID"), "user id to connect as")
	envFile := fs.String("env-file", ".env", "optional env file")
	asJSON := fs.Bool("json", false, "print one JSON object per line")
	markRead := fs.Bool("mark-read", false, "mark notifications read as they are printed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*userID) == "" {
		return errMissingUser
	}

	cfg, err := pipeline.LoadConfig(*envFile)
	if err != nil {
		return err
	}

	log := logger.New(logger.WithEnvironment(cfg.Env, cfg.ServiceName), logger.WithOutput(stderr))
	p, err := pipeline.New(ctx, cfg, pipeline.WithLogger(log))
	if err != nil {
		return err
	}
	defer p.Close(context.WithoutCancel(ctx))

	out := &printer{w: stdout, json: *asJSON}
	unsubToasts := p.Toaster().Subscribe(func(ctx context.Context, ev notifications.ToastEvent) {
		if ev.Kind != notifications.ToastShown {
			return
		}
		out.toast(ev.Toast, p.History().UnreadCount())
		if *markRead {
			p.History().MarkRead(ctx, ev.Toast.NotificationID)
		}
	})
	defer unsubToasts()
	unsubState := p.Connection().OnStateChange(func(_ context.Context, sc realtime.StateChange) {
		out.state(sc)
	})
	defer unsubState()

	if err := p.Connect(ctx, *userID); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// printer serialises output from the toast and state listeners.
type printer struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

type line struct {
	Type       string               `json:"type"`
	Toast      *notifications.Toast `json:"toast,omitempty"`
	Unread     *int                 `json:"unread,omitempty"`
	From       realtime.State       `json:"from,omitempty"`
	To         realtime.State       `json:"to,omitempty"`
	RetryCount int                  `json:"retryCount,omitempty"`
}

func (p *printer) toast(t notifications.Toast, unread int) {
	if p.json {
		p.encode(line{Type: "toast", Toast: &t, Unread: &unread})
		return
	}
	p.printf("[%s/%s] %s: %s (unread %d)\n", t.Category, t.Priority, t.Title, t.Message, unread)
}

func (p *printer) state(sc realtime.StateChange) {
	if p.json {
		p.encode(line{Type: "state", From: sc.From, To: sc.To, RetryCount: sc.RetryCount})
		return
	}
	if sc.To == realtime.StateReconnecting {
		p.printf("-- %s -> %s (retry %d)\n", sc.From, sc.To, sc.RetryCount)
		return
	}
	p.printf("-- %s -> %s\n", sc.From, sc.To)
}

func (p *printer) encode(l line) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = json.NewEncoder(p.w).Encode(l)
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}
