package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/realtime"
)

var errDialRefused = errors.New("connection refused")

type fakeConn struct {
	in     chan realtime.Envelope
	closed chan struct{}
	once   sync.Once
	// gate, when set, holds every Write until it is closed.
	gate chan struct{}

	mu      sync.Mutex
	written []realtime.Envelope
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan realtime.Envelope, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) (realtime.Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case <-c.closed:
		return realtime.Envelope{}, errors.New("connection closed")
	case <-ctx.Done():
		return realtime.Envelope{}, ctx.Err()
	}
}

func (c *fakeConn) Write(ctx context.Context, env realtime.Envelope) error {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-c.closed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) Written() []realtime.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]realtime.Envelope(nil), c.written...)
}

func (c *fakeConn) send(event string, payload any) {
	data, _ := json.Marshal(payload)
	c.in <- realtime.Envelope{Event: event, Data: data}
}

// fakeTransport hands out fakeConns. Dials fail while refuse is set and block
// while gate is non-nil. Conns dialled while writeGate is set hold their
// writes until it is closed.
type fakeTransport struct {
	mu        sync.Mutex
	refuse    bool
	gate      chan struct{}
	writeGate chan struct{}
	users     []string
	conns     []*fakeConn
}

func (t *fakeTransport) Dial(ctx context.Context, userID string) (realtime.Conn, error) {
	t.mu.Lock()
	t.users = append(t.users, userID)
	refuse, gate, writeGate := t.refuse, t.gate, t.writeGate
	t.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if refuse {
		return nil, errDialRefused
	}

	conn := newFakeConn()
	conn.gate = writeGate
	t.mu.Lock()
	t.conns = append(t.conns, conn)
	t.mu.Unlock()
	return conn, nil
}

func (t *fakeTransport) setRefuse(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refuse = v
}

func (t *fakeTransport) setGate(g chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gate = g
}

func (t *fakeTransport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.users)
}

func (t *fakeTransport) Users() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.users...)
}

func (t *fakeTransport) Conn(i int) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= len(t.conns) {
		return nil
	}
	return t.conns[i]
}

type received struct {
	Event string
	Raw   json.RawMessage
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []received
	err    error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event string, raw json.RawMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, received{Event: event, Raw: raw})
	return d.err
}

func (d *recordingDispatcher) Events() []received {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]received(nil), d.events...)
}

type stateRecorder struct {
	mu      sync.Mutex
	changes []realtime.StateChange
}

func (r *stateRecorder) handle(_ context.Context, c realtime.StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *stateRecorder) States() []realtime.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.State, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.To)
	}
	return out
}
