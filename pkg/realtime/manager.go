package realtime

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/backoff"
	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/clock"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/statemachine"
)

// Defaults for the reconnection policy and subscription.
const (
	DefaultMaxRetries  = 5
	DefaultDialTimeout = 10 * time.Second
)

// DefaultChannels returns the interest channels sent with the subscribe message.
func DefaultChannels() []string {
	return []string{"predictions", "results", "challenges", "achievements", "system"}
}

// Manager owns the lifecycle of one live connection: connect, disconnect and
// reconnect with backoff. Inbound domain events are handed to the Dispatcher
// by a single reader goroutine, in arrival order.
//
// Transport failures never surface as errors; they show up as state. After
// maxRetries consecutive failed attempts the Manager stays in StateFailed
// until Connect is called again.
type Manager struct {
	transport   Transport
	dispatcher  Dispatcher
	sched       clock.Scheduler
	strategy    backoff.Strategy
	maxRetries  int
	channels    []string
	dialTimeout time.Duration
	logger      *slog.Logger
	listeners   *broadcast.Listeners[StateChange]

	mu         sync.Mutex
	machine    *statemachine.Machine[State, trigger]
	userID     string
	epoch      uint64
	conn       Conn
	ctx        context.Context
	cancel     context.CancelFunc
	timer      clock.Timer
	retryCount int
}

// Option configures a Manager.
type Option func(*Manager)

// WithScheduler replaces the timer source used for reconnect delays.
func WithScheduler(s clock.Scheduler) Option {
	return func(m *Manager) {
		if s != nil {
			m.sched = s
		}
	}
}

// WithBackoff sets the reconnect delay strategy.
func WithBackoff(s backoff.Strategy) Option {
	return func(m *Manager) {
		if s != nil {
			m.strategy = s
		}
	}
}

// WithMaxRetries sets how many consecutive failed attempts are tolerated
// before giving up. Negative values are ignored.
func WithMaxRetries(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.maxRetries = n
		}
	}
}

// WithChannels sets the interest channels sent on subscribe.
func WithChannels(channels ...string) Option {
	return func(m *Manager) {
		if len(channels) > 0 {
			m.channels = slices.Clone(channels)
		}
	}
}

// WithDialTimeout bounds each connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.dialTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a disconnected Manager.
func NewManager(transport Transport, dispatcher Dispatcher, opts ...Option) *Manager {
	m := &Manager{
		transport:   transport,
		dispatcher:  dispatcher,
		sched:       clock.System{},
		strategy:    backoff.Reconnect(),
		maxRetries:  DefaultMaxRetries,
		channels:    DefaultChannels(),
		dialTimeout: DefaultDialTimeout,
		logger:      slog.Default(),
		machine:     newMachine(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("realtime"))
	m.listeners = broadcast.NewListeners[StateChange](
		broadcast.WithLogger(m.logger),
		broadcast.WithName("realtime"),
	)
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	return m.machine.Current()
}

// RetryCount returns the number of reconnect attempts scheduled since the
// last successful connection.
func (m *Manager) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCount
}

// UserID returns the user of the active or pending connection.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// OnStateChange registers a listener for state transitions.
func (m *Manager) OnStateChange(h broadcast.Handler[StateChange]) (unsubscribe func()) {
	return m.listeners.Subscribe(h)
}

// Connect starts connecting as userID and returns immediately; the state is
// StateConnecting when it returns. It is a no-op when already connected or
// connecting as the same user. Any other state, including failed and
// reconnecting, starts a fresh connection with the retry counter reset.
func (m *Manager) Connect(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	m.mu.Lock()
	state := m.machine.Current()
	if userID == m.userID && (state == StateConnected || state == StateConnecting) {
		m.mu.Unlock()
		return nil
	}

	var changes []StateChange
	if state == StateConnected || state == StateConnecting {
		m.teardownLocked()
		changes = m.transitionLocked(ctx, triggerDisconnect, changes)
	}
	m.teardownLocked()
	m.userID = userID
	changes = m.transitionLocked(ctx, triggerConnect, changes)

	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.ctx, m.cancel = connCtx, cancel
	epoch := m.epoch
	m.mu.Unlock()

	m.publish(ctx, changes)
	m.logger.LogAttrs(ctx, slog.LevelInfo, "connecting", logger.UserID(userID))

	go m.attempt(connCtx, epoch)
	return nil
}

// Disconnect cancels any pending reconnect timer, closes the transport and
// forgets the user.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	userID := m.userID
	m.teardownLocked()
	m.userID = ""
	var changes []StateChange
	if m.machine.Current() != StateDisconnected {
		changes = m.transitionLocked(ctx, triggerDisconnect, changes)
	}
	m.mu.Unlock()

	m.publish(ctx, changes)
	if len(changes) > 0 {
		m.logger.LogAttrs(ctx, slog.LevelInfo, "disconnected", logger.UserID(userID))
	}
}

// Emit sends an outbound message on the live connection.
func (m *Manager) Emit(ctx context.Context, event string, payload any) error {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}

	m.mu.Lock()
	conn := m.conn
	connected := m.machine.Current() == StateConnected
	m.mu.Unlock()

	if conn == nil || !connected {
		return ErrNotConnected
	}
	return conn.Write(ctx, env)
}

// attempt dials once for the given connection generation.
func (m *Manager) attempt(ctx context.Context, epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	userID := m.userID
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, m.dialTimeout)
	conn, err := m.transport.Dial(dialCtx, userID)
	cancel()

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		changes := m.failLocked(ctx, err)
		m.mu.Unlock()
		m.publish(ctx, changes)
		return
	}
	channels := m.channels
	m.mu.Unlock()

	// The subscription goes out before the connection is visible to Emit, so
	// it is always the first message of a session.
	env, err := NewEnvelope(EventSubscribe, SubscribePayload{UserID: userID, Channels: channels})
	if err == nil {
		err = conn.Write(ctx, env)
	}

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	if err != nil {
		changes := m.failLocked(ctx, err)
		m.mu.Unlock()
		_ = conn.Close()
		m.publish(ctx, changes)
		return
	}

	m.conn = conn
	m.retryCount = 0
	changes := m.transitionLocked(ctx, triggerConnected, nil)
	m.mu.Unlock()

	m.publish(ctx, changes)
	m.logger.LogAttrs(ctx, slog.LevelInfo, "connected", logger.UserID(userID))

	go m.readLoop(ctx, epoch, conn)
}

func (m *Manager) readLoop(ctx context.Context, epoch uint64, conn Conn) {
	for {
		env, err := conn.Read(ctx)
		if err != nil {
			m.dropped(ctx, epoch, conn, err)
			return
		}
		if !m.current(epoch) {
			return
		}

		switch env.Event {
		case EventError:
			m.logger.LogAttrs(ctx, slog.LevelWarn, "transport reported an error",
				slog.String("detail", string(env.Data)),
			)
		case EventDisconnect:
			m.dropped(ctx, epoch, conn, errors.New("server closed the session"))
			return
		default:
			if err := m.dispatcher.Dispatch(ctx, env.Event, env.Data); err != nil {
				m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to dispatch event",
					logger.Event(env.Event),
					logger.Error(err),
				)
			}
		}
	}
}

// dropped handles the loss of conn. Signals from stale connections are ignored.
func (m *Manager) dropped(ctx context.Context, epoch uint64, conn Conn, cause error) {
	m.mu.Lock()
	if epoch != m.epoch || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	_ = conn.Close()
	changes := m.failLocked(ctx, cause)
	m.mu.Unlock()

	m.publish(ctx, changes)
}

// failLocked moves to reconnecting and schedules the next attempt, or to
// failed when the retry budget is spent.
func (m *Manager) failLocked(ctx context.Context, cause error) []StateChange {
	m.logger.LogAttrs(ctx, slog.LevelWarn, "connection lost",
		logger.UserID(m.userID),
		logger.RetryCount(m.retryCount),
		logger.Error(cause),
	)

	var changes []StateChange
	if m.machine.Is(StateConnecting, StateConnected) {
		changes = m.transitionLocked(ctx, triggerDrop, changes)
	}
	return m.scheduleReconnectLocked(ctx, changes)
}

func (m *Manager) scheduleReconnectLocked(ctx context.Context, changes []StateChange) []StateChange {
	if m.timer != nil {
		return changes
	}
	if m.retryCount >= m.maxRetries {
		m.logger.LogAttrs(ctx, slog.LevelError, "reconnect attempts exhausted",
			logger.UserID(m.userID),
			logger.RetryCount(m.retryCount),
		)
		return m.transitionLocked(ctx, triggerExhausted, changes)
	}

	delay := m.strategy.Delay(m.retryCount)
	m.retryCount++
	epoch := m.epoch
	m.timer = m.sched.AfterFunc(delay, func() { m.reconnect(epoch) })

	m.logger.LogAttrs(ctx, slog.LevelInfo, "reconnect scheduled",
		logger.RetryCount(m.retryCount),
		logger.Duration(delay),
	)
	return changes
}

// reconnect is the timer callback. The state stays reconnecting until the
// attempt succeeds; the attempt runs on the timer's goroutine.
func (m *Manager) reconnect(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	ctx := m.ctx
	m.mu.Unlock()

	m.attempt(ctx, epoch)
}

func (m *Manager) current(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return epoch == m.epoch
}

// teardownLocked invalidates the current generation: pending timer, dial and
// reader goroutines, and the live connection.
func (m *Manager) teardownLocked() {
	m.epoch++
	m.retryCount = 0
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel, m.ctx = nil, nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

func (m *Manager) transitionLocked(ctx context.Context, t trigger, changes []StateChange) []StateChange {
	from := m.machine.Current()
	if err := m.machine.Fire(ctx, t, nil); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelDebug, "ignored connection event",
			logger.State(string(from)),
			logger.Event(string(t)),
			logger.Error(err),
		)
		return changes
	}
	to := m.machine.Current()
	if from == to {
		return changes
	}
	return append(changes, StateChange{From: from, To: to, UserID: m.userID, RetryCount: m.retryCount})
}

func (m *Manager) publish(ctx context.Context, changes []StateChange) {
	for _, c := range changes {
		m.logger.LogAttrs(ctx, slog.LevelDebug, "connection state changed",
			logger.Transition(string(c.From), string(c.To)),
		)
		m.listeners.Publish(ctx, c)
	}
}
