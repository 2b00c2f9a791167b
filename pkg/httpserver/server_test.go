package httpserver_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/httpserver"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func startServer(t *testing.T, ctx context.Context, srv *httpserver.Server) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, okHandler()) }()
	select {
	case <-srv.Started():
	case err := <-done:
		require.FailNow(t, "server exited before start", "%v", err)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "server did not start")
	}
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		require.FailNow(t, "run did not finish")
		return nil
	}
}

func TestServer_RunAndCancel(t *testing.T) {
	t.Parallel()

	var started, stopped atomic.Bool
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithoutSignals(),
		httpserver.WithShutdownTimeout(100*time.Millisecond),
		httpserver.WithStartHook(func(context.Context, string) { started.Store(true) }),
		httpserver.WithStopHook(func(context.Context, string) { stopped.Store(true) }),
	)
	assert.Empty(t, srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startServer(t, ctx, srv)

	addr := srv.Addr()
	require.NotEmpty(t, addr)
	assert.True(t, started.Load())

	resp, err := http.Get("http://" + addr)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, waitDone(t, done))
	assert.True(t, stopped.Load())
}

func TestServer_Shutdown(t *testing.T) {
	t.Parallel()

	t.Run("explicit shutdown stops run", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"), httpserver.WithoutSignals())
		done := startServer(t, context.Background(), srv)

		require.NoError(t, srv.Shutdown(context.Background()))
		require.NoError(t, srv.Shutdown(context.Background()))
		require.NoError(t, waitDone(t, done))
	})

	t.Run("before run is a no-op", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New()
		assert.NoError(t, srv.Shutdown(context.Background()))
	})
}

func TestServer_StartErrors(t *testing.T) {
	t.Parallel()

	t.Run("address in use", func(t *testing.T) {
		t.Parallel()
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer l.Close()

		srv := httpserver.New(httpserver.WithAddr(l.Addr().String()), httpserver.WithoutSignals())
		err = srv.Run(context.Background(), okHandler())
		require.Error(t, err)
		assert.ErrorIs(t, err, httpserver.ErrStart)
	})

	t.Run("second run is rejected", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"), httpserver.WithoutSignals())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := startServer(t, ctx, srv)

		err := srv.Run(ctx, okHandler())
		assert.ErrorIs(t, err, httpserver.ErrStart)
		assert.ErrorIs(t, err, httpserver.ErrAlreadyRunning)

		cancel()
		require.NoError(t, waitDone(t, done))
	})
}

func TestOptions_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { httpserver.WithAddr("") })
	assert.Panics(t, func() { httpserver.WithReadTimeout(0) })
	assert.Panics(t, func() { httpserver.WithWriteTimeout(-time.Second) })
	assert.Panics(t, func() { httpserver.WithIdleTimeout(0) })
	assert.Panics(t, func() { httpserver.WithShutdownTimeout(0) })
	assert.Panics(t, func() { httpserver.WithStartHook(nil) })
	assert.Panics(t, func() { httpserver.WithStopHook(nil) })
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	srv := httpserver.NewFromConfig(httpserver.Config{Addr: "127.0.0.1:0"}, httpserver.WithoutSignals())
	ctx, cancel := context.WithCancel(context.Background())
	done := startServer(t, ctx, srv)
	assert.NotEmpty(t, srv.Addr())
	cancel()
	require.NoError(t, waitDone(t, done))
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks []func(context.Context) error
		code   int
		body   string
	}{
		{name: "liveness", code: http.StatusOK, body: "ALIVE"},
		{
			name:   "ready",
			checks: []func(context.Context) error{func(context.Context) error { return nil }},
			code:   http.StatusOK,
			body:   "READY",
		},
		{
			name: "not ready",
			checks: []func(context.Context) error{
				func(context.Context) error { return nil },
				func(context.Context) error { return errors.New("db down") },
			},
			code: http.StatusServiceUnavailable,
			body: "NOT_READY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			httpserver.HealthCheckHandler(nil, tt.checks...).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.code, rec.Code)
			body, err := io.ReadAll(rec.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(body))
		})
	}
}
