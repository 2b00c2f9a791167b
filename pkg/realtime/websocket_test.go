package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
)

func TestNewWebSocketTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "ws", url: "ws://localhost:8080/ws"},
		{name: "wss", url: "wss://events.example.com/ws"},
		{name: "http", url: "http://127.0.0.1:9000/ws"},
		{name: "unsupported scheme", url: "ftp://example.com", wantErr: true},
		{name: "missing host", url: "ws:///ws", wantErr: true},
		{name: "unparsable", url: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr, err := realtime.NewWebSocketTransport(tt.url)
			if tt.wantErr {
				require.ErrorIs(t, err, realtime.ErrInvalidURL)
				assert.Nil(t, tr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, tr)
		})
	}
}

func TestWebSocketTransport_RoundTrip(t *testing.T) {
	t.Parallel()

	subscribed := make(chan realtime.SubscribePayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userId") != "u1" || r.Header.Get("X-Client") != "test" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		var env realtime.Envelope
		if err := wsjson.Read(ctx, c, &env); err != nil || env.Event != realtime.EventSubscribe {
			return
		}
		var sub realtime.SubscribePayload
		if err := json.Unmarshal(env.Data, &sub); err != nil {
			return
		}
		subscribed <- sub

		_ = wsjson.Write(ctx, c, realtime.Envelope{
			Event: "item:new",
			Data:  json.RawMessage(`{"itemId":"match-1","title":"Derby"}`),
		})
		// Hold the socket open until the client leaves.
		_, _, _ = c.Read(ctx)
	}))
	t.Cleanup(srv.Close)

	tr, err := realtime.NewWebSocketTransport(srv.URL, realtime.WithHeader("X-Client", "test"))
	require.NoError(t, err)

	d := &recordingDispatcher{}
	m := realtime.NewManager(tr, d, realtime.WithLogger(logger.Nop()))
	t.Cleanup(func() { m.Disconnect(context.Background()) })

	require.NoError(t, m.Connect(context.Background(), "u1"))
	waitState(t, m, realtime.StateConnected)

	select {
	case sub := <-subscribed:
		assert.Equal(t, "u1", sub.UserID)
		assert.Equal(t, realtime.DefaultChannels(), sub.Channels)
	case <-time.After(waitFor):
		t.Fatal("subscribe not received")
	}

	require.Eventually(t, func() bool { return len(d.Events()) == 1 }, waitFor, tick)
	assert.Equal(t, "item:new", d.Events()[0].Event)
	assert.JSONEq(t, `{"itemId":"match-1","title":"Derby"}`, string(d.Events()[0].Raw))
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	tr, err := realtime.NewWebSocketTransport(srv.URL)
	require.NoError(t, err)

	conn, err := tr.Dial(context.Background(), "u1")
	require.ErrorIs(t, err, realtime.ErrDialFailed)
	assert.Nil(t, conn)
}
