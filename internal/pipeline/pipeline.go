package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/async"
	"github.com/dmitrymomot/notifykit/pkg/backoff"
	"github.com/dmitrymomot/notifykit/pkg/clock"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/platform"
	"github.com/dmitrymomot/notifykit/pkg/push"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
	"github.com/dmitrymomot/notifykit/pkg/storage"
)

// Pipeline wires the connection manager, dispatcher, history, preferences,
// delivery channels and push manager into one unit with an explicit
// lifecycle: New, Connect, Disconnect, Close.
type Pipeline struct {
	cfg        Config
	logger     *slog.Logger
	store      storage.Store
	closeStore func() error
	device     platform.Device

	prefs      *notifications.PreferenceStore
	history    *notifications.History
	toaster    *notifications.Toaster
	dispatcher *notifications.Dispatcher
	conn       *realtime.Manager
	push       *push.Manager

	loadOnce   sync.Once
	unsubPrefs func()

	mu         sync.Mutex
	pushResult *async.Future[push.Status]
	closed     bool
}

// Option supplies a dependency that would otherwise be built from Config.
type Option func(*options)

type options struct {
	store      storage.Store
	device     *platform.Device
	transport  realtime.Transport
	scheduler  clock.Scheduler
	logger     *slog.Logger
	pushSender push.Sender
}

// WithStore uses s instead of opening the configured backend.
func WithStore(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

// WithDevice sets the device drivers. Capabilities are detected from it.
// Without it the pipeline runs headless.
func WithDevice(d platform.Device) Option {
	return func(o *options) { o.device = &d }
}

// WithTransport replaces the WebSocket transport built from NOTIFY_WS_URL.
func WithTransport(t realtime.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithScheduler sets the timer source for reconnects and toast expiry.
func WithScheduler(s clock.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPushSender replaces the HTTP sender used to register push subscriptions.
func WithPushSender(s push.Sender) Option {
	return func(o *options) { o.pushSender = s }
}

// New builds a Pipeline. Nothing is loaded or dialed until Start or Connect.
func New(ctx context.Context, cfg Config, opts ...Option) (*Pipeline, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	log := o.logger
	if log == nil {
		log = logger.New(logger.WithEnvironment(cfg.Env, cfg.ServiceName))
	}
	sched := o.scheduler
	if sched == nil {
		sched = clock.System{}
	}

	p := &Pipeline{
		cfg:        cfg,
		logger:     log,
		store:      o.store,
		closeStore: func() error { return nil },
	}

	if p.store == nil {
		store, closeFn, err := OpenStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.store, p.closeStore = store, closeFn
	}

	device := platform.HeadlessDevice()
	if o.device != nil {
		device = *o.device
	}
	p.device = platform.Detect(device, true)

	transport := o.transport
	if transport == nil {
		ws, err := realtime.NewWebSocketTransport(cfg.WSURL)
		if err != nil {
			_ = p.closeStore()
			return nil, errors.Join(ErrTransport, err)
		}
		transport = ws
	}

	p.prefs = notifications.NewPreferenceStore(
		notifications.WithPreferenceStorage(p.store),
		notifications.WithPreferenceLogger(log),
	)
	p.history = notifications.NewHistory(
		notifications.WithHistoryStorage(p.store),
		notifications.WithLimits(cfg.HistoryLimit, cfg.PersistLimit),
		notifications.WithHistoryLogger(log),
		notifications.WithHistoryClock(sched.Now),
	)
	p.toaster = notifications.NewToaster(log,
		notifications.WithToastScheduler(sched),
		notifications.WithToastDurations(cfg.ToastDuration, cfg.UrgentToast),
	)

	caps := p.device.Capabilities
	channels := notifications.NewMultiDeliverer([]notifications.Deliverer{
		p.toaster,
		notifications.NewSystemDeliverer(p.device.Notifier, caps),
		notifications.NewSoundDeliverer(p.device.Audio, cfg.SoundResource, log),
		notifications.NewVibrationDeliverer(p.device.Vibrator, caps),
	}, notifications.WithMultiDelivererLogger(log))

	p.dispatcher = notifications.NewDispatcher(p.history, p.prefs,
		notifications.WithDeliverer(channels),
		notifications.WithNormalizer(notifications.Normalizer{Now: sched.Now}),
		notifications.WithDispatcherLogger(log),
	)

	p.conn = realtime.NewManager(transport, p.dispatcher,
		realtime.WithScheduler(sched),
		realtime.WithBackoff(backoff.Exponential{
			Base:       cfg.ReconnectBase,
			Max:        cfg.ReconnectMax,
			Multiplier: 2,
		}),
		realtime.WithMaxRetries(cfg.ReconnectRetries),
		realtime.WithChannels(cfg.Channels...),
		realtime.WithDialTimeout(cfg.DialTimeout),
		realtime.WithLogger(log),
	)

	pushOpts := []push.Option{
		push.WithStorage(p.store),
		push.WithPublicKey(cfg.PushPublicKey),
		push.WithEndpoint(cfg.PushEndpoint),
		push.WithSigningSecret(cfg.PushSecret),
		push.WithClock(sched.Now),
		push.WithLogger(log),
	}
	if o.pushSender != nil {
		pushOpts = append(pushOpts, push.WithSender(o.pushSender))
	}
	var pushPlatform platform.PushPlatform
	if caps.CanPush {
		pushPlatform = p.device.Push
	}
	p.push = push.NewManager(pushPlatform, pushOpts...)

	p.unsubPrefs = p.prefs.OnChange(p.syncPreferences)
	return p, nil
}

// Start loads persisted history and preferences. Both loads run concurrently
// and neither can fail; unreadable data is logged and replaced by defaults.
// Start runs once; Connect calls it implicitly.
func (p *Pipeline) Start(ctx context.Context) {
	p.loadOnce.Do(func() {
		history := async.Go(ctx, func(ctx context.Context) (int, error) {
			return p.history.Load(ctx), nil
		})
		prefs := async.Go(ctx, func(ctx context.Context) (int, error) {
			p.prefs.Load(ctx)
			return 0, nil
		})
		if _, err := async.WaitAll(history, prefs); err != nil {
			p.logger.LogAttrs(ctx, slog.LevelError, "startup load failed", logger.Error(err))
		}
		p.logger.LogAttrs(ctx, slog.LevelInfo, "pipeline started",
			slog.Int("notifications", p.history.Len()),
			slog.Int("unread", p.history.UnreadCount()),
		)
	})
}

// Connect activates the pipeline for userID: it loads persisted state, opens
// the live connection and sets up push delivery in the background.
func (p *Pipeline) Connect(ctx context.Context, userID string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()

	p.Start(ctx)
	if err := p.conn.Connect(ctx, userID); err != nil {
		return err
	}

	p.mu.Lock()
	if p.pushResult == nil {
		pushCtx := context.WithoutCancel(ctx)
		p.pushResult = async.Go(pushCtx, func(ctx context.Context) (push.Status, error) {
			return p.push.Init(ctx, userID), nil
		})
	}
	p.mu.Unlock()
	return nil
}

// Disconnect closes the live connection. History and preferences stay loaded.
func (p *Pipeline) Disconnect(ctx context.Context) {
	p.conn.Disconnect(ctx)
}

// Close disconnects, cancels toast timers and releases the storage backend.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pending := p.pushResult
	p.mu.Unlock()

	p.conn.Disconnect(ctx)
	p.unsubPrefs()
	p.toaster.Close()
	if pending != nil {
		_, _ = pending.AwaitContext(ctx)
	}
	return p.closeStore()
}

// PushStatus waits for the background push setup started by Connect.
// It returns push.StatusIdle when Connect has not been called.
func (p *Pipeline) PushStatus(ctx context.Context) push.Status {
	p.mu.Lock()
	pending := p.pushResult
	p.mu.Unlock()

	if pending == nil {
		return push.StatusIdle
	}
	status, err := pending.AwaitContext(ctx)
	if err != nil {
		return p.push.Status()
	}
	return status
}

// Trigger admits a locally created notification through the same path as
// inbound events.
func (p *Pipeline) Trigger(ctx context.Context, n notifications.Notification) (notifications.Notification, error) {
	return p.dispatcher.Trigger(ctx, n)
}

// UpdatePreferences replaces the preferences. While connected the server is
// told about the change.
func (p *Pipeline) UpdatePreferences(ctx context.Context, prefs notifications.Preferences) error {
	return p.prefs.Update(ctx, prefs)
}

// ResetPreferences restores the defaults.
func (p *Pipeline) ResetPreferences(ctx context.Context) {
	p.prefs.Reset(ctx)
}

func (p *Pipeline) History() *notifications.History             { return p.history }
func (p *Pipeline) Preferences() *notifications.PreferenceStore { return p.prefs }
func (p *Pipeline) Toaster() *notifications.Toaster             { return p.toaster }
func (p *Pipeline) Dispatcher() *notifications.Dispatcher       { return p.dispatcher }
func (p *Pipeline) Connection() *realtime.Manager               { return p.conn }
func (p *Pipeline) Push() *push.Manager                         { return p.push }
func (p *Pipeline) Capabilities() platform.Capabilities         { return p.device.Capabilities }
func (p *Pipeline) Store() storage.Store                        { return p.store }

// preferencesUpdate is the payload of the updatePreferences message.
type preferencesUpdate struct {
	UserID      string                    `json:"userId"`
	Preferences notifications.Preferences `json:"preferences"`
}

func (p *Pipeline) syncPreferences(ctx context.Context, prefs notifications.Preferences) {
	if p.conn.State() != realtime.StateConnected {
		return
	}
	msg := preferencesUpdate{UserID: p.conn.UserID(), Preferences: prefs}
	if err := p.conn.Emit(ctx, realtime.EventUpdatePreferences, msg); err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "failed to sync preferences",
			logger.UserID(msg.UserID),
			logger.Error(err),
		)
	}
}
