package devserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/internal/devserver"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/platform"
	"github.com/dmitrymomot/notifykit/pkg/push"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
)

const waitFor = 2 * time.Second

func newTestServer(t *testing.T, cfg devserver.Config, opts ...devserver.Option) (*devserver.Server, *httptest.Server) {
	t.Helper()
	if cfg.SessionBuffer == 0 {
		cfg.SessionBuffer = 16
	}
	srv := devserver.New(cfg, append([]devserver.Option{devserver.WithLogger(logger.Nop())}, opts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, method, url string, body any) (int, apiResponse) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			rd = bytes.NewReader(raw)
		}
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, devserver.Config{},
		devserver.WithReadinessCheck(func(context.Context) error { return errors.New("db down") }),
	)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(devserver.RequestIDHeader))

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_RequestID(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, devserver.Config{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(devserver.RequestIDHeader, "trace-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-123", resp.Header.Get(devserver.RequestIDHeader))

	req.Header.Set(devserver.RequestIDHeader, "not valid!")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, "not valid!", resp.Header.Get(devserver.RequestIDHeader))
	assert.NotEmpty(t, resp.Header.Get(devserver.RequestIDHeader))
}

func TestServer_PushSubscriptions(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, devserver.Config{})
	url := ts.URL + "/api/push/subscriptions"

	status, body := doJSON(t, http.MethodPost, url, registration("u1", "https://push.example.com/a"))
	require.Equal(t, http.StatusCreated, status)
	var rec devserver.Record
	require.NoError(t, json.Unmarshal(body.Data, &rec))
	assert.Equal(t, "u1", rec.UserID)
	assert.NotEmpty(t, rec.ID)

	status, body = doJSON(t, http.MethodGet, url+"?userId=u1", nil)
	require.Equal(t, http.StatusOK, status)
	var recs []devserver.Record
	require.NoError(t, json.Unmarshal(body.Data, &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, rec.ID, recs[0].ID)
	assert.EqualValues(t, 1, body.Meta["count"])

	tests := []struct {
		name   string
		method string
		url    string
		body   any
		status int
		code   string
	}{
		{name: "malformed json", method: http.MethodPost, url: url, body: "{", status: http.StatusBadRequest, code: "invalid_json"},
		{name: "missing keys", method: http.MethodPost, url: url, body: map[string]any{"userId": "u1", "subscription": map[string]any{"endpoint": "https://x"}}, status: http.StatusUnprocessableEntity, code: "invalid_registration"},
		{name: "list without user", method: http.MethodGet, url: url, status: http.StatusBadRequest, code: "missing_user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, tt.method, tt.url, tt.body)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

type supportedPush struct{}

func (supportedPush) Supported() bool                 { return true }
func (supportedPush) Permission() platform.Permission { return platform.PermissionGranted }
func (supportedPush) Ready(context.Context) error     { return nil }

func (supportedPush) RequestPermission(context.Context) (platform.Permission, error) {
	return platform.PermissionGranted, nil
}

func (supportedPush) Subscribe(context.Context, string) (platform.PushEndpoint, error) {
	return platform.PushEndpoint{
		Endpoint: "https://push.example.com/device-1",
		Keys:     platform.PushKeys{P256dh: "p256", Auth: "auth"},
	}, nil
}

func TestServer_PushManagerRegistration(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t, devserver.Config{})
	m := push.NewManager(supportedPush{},
		push.WithPublicKey("public-key"),
		push.WithEndpoint(ts.URL+"/api/push/subscriptions"),
		push.WithLogger(logger.Nop()),
	)

	require.Equal(t, push.StatusSubscribed, m.Init(context.Background(), "u1"))

	recs, err := srv.Registry().List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "https://push.example.com/device-1", recs[0].Endpoint)
}

func TestServer_SignedPushRegistration(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t, devserver.Config{PushSecret: "shh"})
	url := ts.URL + "/api/push/subscriptions"

	status, body := doJSON(t, http.MethodPost, url, registration("u1", "https://push.example.com/unsigned"))
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "invalid_signature", body.Error.Code)

	wrong := push.NewManager(supportedPush{},
		push.WithPublicKey("public-key"),
		push.WithEndpoint(url),
		push.WithSigningSecret("other"),
		push.WithLogger(logger.Nop()),
	)
	require.Equal(t, push.StatusSubscribed, wrong.Init(context.Background(), "u1"))
	recs, err := srv.Registry().List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, recs, "registration with the wrong secret is rejected")

	signed := push.NewManager(supportedPush{},
		push.WithPublicKey("public-key"),
		push.WithEndpoint(url),
		push.WithSigningSecret("shh"),
		push.WithLogger(logger.Nop()),
	)
	require.Equal(t, push.StatusSubscribed, signed.Init(context.Background(), "u1"))
	recs, err = srv.Registry().List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestServer_PostEvent(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, devserver.Config{})
	url := ts.URL + "/api/events"

	status, body := doJSON(t, http.MethodPost, url, map[string]any{
		"event": notifications.EventChallengeReceived,
		"data":  map[string]any{"challengeId": "c1", "from": "mia"},
	})
	require.Equal(t, http.StatusAccepted, status)
	var ev devserver.Event
	require.NoError(t, json.Unmarshal(body.Data, &ev))
	assert.Equal(t, "challenges", ev.Channel)

	status, body = doJSON(t, http.MethodPost, url, map[string]any{"event": "bogus", "data": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "unknown_event", body.Error.Code)

	status, body = doJSON(t, http.MethodPost, url, map[string]any{"event": notifications.EventItemNew})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "invalid_payload", body.Error.Code)
}

func TestServer_WebSocketRequiresUser(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, devserver.Config{})
	status, body := doJSON(t, http.MethodGet, ts.URL+"/ws", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "missing_user_id", body.Error.Code)
}

type inbound struct {
	event string
	raw   json.RawMessage
}

type recorder struct {
	mu     sync.Mutex
	events []inbound
}

func (r *recorder) Dispatch(_ context.Context, event string, raw json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, inbound{event: event, raw: raw})
	return nil
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.event)
	}
	return out
}

func connect(t *testing.T, ts *httptest.Server, userID string, opts ...realtime.Option) (*realtime.Manager, *recorder) {
	t.Helper()
	transport, err := realtime.NewWebSocketTransport(ts.URL + "/ws")
	require.NoError(t, err)

	rec := &recorder{}
	m := realtime.NewManager(transport, rec, append([]realtime.Option{realtime.WithLogger(logger.Nop())}, opts...)...)
	require.NoError(t, m.Connect(context.Background(), userID))
	t.Cleanup(func() { m.Disconnect(context.Background()) })

	require.Eventually(t, func() bool { return m.State() == realtime.StateConnected }, waitFor, 10*time.Millisecond)
	return m, rec
}

func TestServer_RealtimeRoundTrip(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t, devserver.Config{Welcome: true})
	ctx := context.Background()

	m, rec := connect(t, ts, "u1")
	_, other := connect(t, ts, "u2", realtime.WithChannels("system"))

	// The welcome notification confirms the subscribe message was processed.
	require.Eventually(t, func() bool { return len(rec.Events()) == 1 }, waitFor, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(other.Events()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, []string{notifications.EventNotification}, rec.Events())

	require.NoError(t, srv.Emit(ctx, devserver.Event{
		Name:   notifications.EventChallengeReceived,
		UserID: "u2",
		Data:   map[string]any{"challengeId": "c0", "from": "mia"},
	}))
	require.NoError(t, srv.Emit(ctx, devserver.Event{
		Name: notifications.EventItemNew,
		Data: map[string]any{"itemId": "i1", "question": "Who wins?"},
	}))
	require.NoError(t, srv.Emit(ctx, devserver.Event{
		Name:   notifications.EventChallengeReceived,
		UserID: "u1",
		Data:   map[string]any{"challengeId": "c1", "from": "mia"},
	}))

	require.Eventually(t, func() bool { return len(rec.Events()) == 3 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, []string{
		notifications.EventNotification,
		notifications.EventItemNew,
		notifications.EventChallengeReceived,
	}, rec.Events())
	assert.Equal(t, []string{notifications.EventNotification}, other.Events(), "u2 only subscribed to system")

	prefs := notifications.DefaultPreferences()
	prefs.Achievement = false
	require.NoError(t, m.Emit(ctx, realtime.EventUpdatePreferences, map[string]any{"userId": "u1", "preferences": prefs}))
	require.Eventually(t, func() bool {
		got, ok := srv.Hub().Preferences("u1")
		return ok && !got.Achievement
	}, waitFor, 10*time.Millisecond)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/api/users/u1/preferences", nil)
	require.Equal(t, http.StatusOK, status)
	var synced notifications.Preferences
	require.NoError(t, json.Unmarshal(body.Data, &synced))
	assert.Equal(t, prefs, synced)

	status, _ = doJSON(t, http.MethodGet, ts.URL+"/api/users/u9/preferences", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_UnknownClientEvent(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t, devserver.Config{Welcome: true})
	m, rec := connect(t, ts, "u1")
	require.Eventually(t, func() bool { return len(rec.Events()) == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, m.Emit(context.Background(), "bogus", map[string]any{}))
	require.NoError(t, srv.Emit(context.Background(), devserver.Event{
		Name: notifications.EventNotification,
		Data: map[string]any{"title": "Still here", "message": "after an error"},
	}))

	require.Eventually(t, func() bool { return len(rec.Events()) == 2 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, []string{notifications.EventNotification, notifications.EventNotification}, rec.Events())
	assert.Equal(t, realtime.StateConnected, m.State())
}

func TestServer_SessionDetachOnDisconnect(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t, devserver.Config{})
	m, _ := connect(t, ts, "u1")
	require.Eventually(t, func() bool { return srv.Hub().Sessions() == 1 }, waitFor, 10*time.Millisecond)

	m.Disconnect(context.Background())
	require.Eventually(t, func() bool { return srv.Hub().Sessions() == 0 }, waitFor, 10*time.Millisecond)
}
