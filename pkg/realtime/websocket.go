package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// DefaultReadLimit caps the size of a single inbound message.
const DefaultReadLimit = 1 << 20

// WebSocketTransport dials a JSON-over-WebSocket endpoint. Each message is
// one Envelope. The user id is passed as the userId query parameter.
type WebSocketTransport struct {
	url       *url.URL
	header    http.Header
	client    *http.Client
	readLimit int64
}

// WebSocketOption configures a WebSocketTransport.
type WebSocketOption func(*WebSocketTransport)

// WithHeader adds a header to the upgrade request.
func WithHeader(key, value string) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.header.Add(key, value)
	}
}

// WithHTTPClient sets the client used for the upgrade request.
func WithHTTPClient(c *http.Client) WebSocketOption {
	return func(t *WebSocketTransport) {
		if c != nil {
			t.client = c
		}
	}
}

func WithReadLimit(n int64) WebSocketOption {
	return func(t *WebSocketTransport) {
		if n > 0 {
			t.readLimit = n
		}
	}
}

// NewWebSocketTransport validates rawURL and returns a transport for it.
// ws, wss, http and https schemes are accepted.
func NewWebSocketTransport(rawURL string, opts ...WebSocketOption) (*WebSocketTransport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Join(ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	t := &WebSocketTransport{
		url:       u,
		header:    http.Header{},
		readLimit: DefaultReadLimit,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Dial implements Transport.
func (t *WebSocketTransport) Dial(ctx context.Context, userID string) (Conn, error) {
	u := *t.url
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	c, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPHeader: t.header.Clone(),
		HTTPClient: t.client,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Join(ErrDialFailed, err)
	}
	c.SetReadLimit(t.readLimit)
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) (Envelope, error) {
	var env Envelope
	if err := wsjson.Read(ctx, w.c, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (w *wsConn) Write(ctx context.Context, env Envelope) error {
	return wsjson.Write(ctx, w.c, env)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
