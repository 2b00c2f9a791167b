package push

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/platform"
	"github.com/dmitrymomot/notifykit/pkg/storage"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

// Sender posts a JSON payload to an HTTP endpoint. *webhook.Sender implements it.
type Sender interface {
	Send(ctx context.Context, endpoint string, data any, opts ...webhook.SendOption) error
}

// Manager sets up background (push) delivery once per process.
// Every failure leaves the Manager inert; nothing else depends on it.
type Manager struct {
	platform  platform.PushPlatform
	store     storage.Store
	sender    Sender
	publicKey string
	endpoint  string
	secret    string
	now       func() time.Time
	logger    *slog.Logger

	once    sync.Once
	mu      sync.RWMutex
	status  Status
	current *Subscription
}

// Option configures a Manager.
type Option func(*Manager)

// WithStorage sets where descriptors are persisted. Without it descriptors
// live only in memory.
func WithStorage(s storage.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithPublicKey sets the application server key used to subscribe.
func WithPublicKey(key string) Option {
	return func(m *Manager) { m.publicKey = key }
}

// WithEndpoint sets the registration endpoint. Without it the descriptor is
// only persisted locally.
func WithEndpoint(url string) Option {
	return func(m *Manager) { m.endpoint = url }
}

// WithSigningSecret signs registration requests with HMAC-SHA256 so the
// endpoint can verify where they came from.
func WithSigningSecret(secret string) Option {
	return func(m *Manager) { m.secret = secret }
}

func WithSender(s Sender) Option {
	return func(m *Manager) {
		if s != nil {
			m.sender = s
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
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

// NewManager creates a Manager for the given platform. A nil platform means
// push is unsupported.
func NewManager(p platform.PushPlatform, opts ...Option) *Manager {
	m := &Manager{
		platform: p,
		now:      time.Now,
		logger:   slog.Default(),
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sender == nil {
		m.sender = webhook.NewSender()
	}
	m.logger = m.logger.With(logger.Component("push"))
	return m
}

// Init requests permission if undecided, subscribes, persists the descriptor
// and registers it with the endpoint. Only the first call does any work;
// later calls return the status it reached.
func (m *Manager) Init(ctx context.Context, userID string) Status {
	m.once.Do(func() {
		status, sub := m.setup(ctx, userID)
		m.mu.Lock()
		m.status, m.current = status, sub
		m.mu.Unlock()
	})
	return m.Status()
}

// Status returns the outcome of Init, or StatusIdle before it ran.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Current returns the descriptor created by Init.
func (m *Manager) Current() (Subscription, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Subscription{}, false
	}
	return *m.current, true
}

func (m *Manager) setup(ctx context.Context, userID string) (Status, *Subscription) {
	if m.platform == nil || !m.platform.Supported() {
		m.logger.LogAttrs(ctx, slog.LevelInfo, "push delivery not supported")
		return StatusUnsupported, nil
	}

	perm := m.platform.Permission()
	if perm == platform.PermissionDefault {
		var err error
		perm, err = m.platform.RequestPermission(ctx)
		if err != nil {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "push permission request failed", logger.Error(err))
			return StatusFailed, nil
		}
	}
	if !perm.Granted() {
		m.logger.LogAttrs(ctx, slog.LevelInfo, "push permission not granted",
			slog.String("permission", string(perm)),
		)
		return StatusDenied, nil
	}

	if m.publicKey == "" {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "push disabled", logger.Error(ErrMissingPublicKey))
		return StatusFailed, nil
	}

	if err := m.platform.Ready(ctx); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "push agent not ready", logger.Error(err))
		return StatusFailed, nil
	}

	ep, err := m.platform.Subscribe(ctx, m.publicKey)
	if err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "push subscribe failed",
			logger.Error(errors.Join(ErrSubscribeFailed, err)),
		)
		return StatusFailed, nil
	}

	sub := &Subscription{
		ID:        uuid.NewString(),
		Endpoint:  ep.Endpoint,
		Keys:      ep.Keys,
		CreatedAt: m.now(),
	}
	if err := m.persist(ctx, sub); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to persist push subscription", logger.Error(err))
	}

	m.register(ctx, ep, userID)
	return StatusSubscribed, sub
}

// persist adds sub to the stored set. A descriptor already stored for the same
// endpoint keeps its id.
func (m *Manager) persist(ctx context.Context, sub *Subscription) error {
	if m.store == nil {
		return nil
	}

	set, err := m.load(ctx)
	if err != nil {
		return errors.Join(ErrPersistFailed, err)
	}
	for id, existing := range set {
		if existing.Endpoint == sub.Endpoint {
			sub.ID = id
			sub.CreatedAt = existing.CreatedAt
			break
		}
	}
	set[sub.ID] = *sub

	if err := storage.SetJSON(ctx, m.store, SubscriptionsKey, set); err != nil {
		return errors.Join(ErrPersistFailed, err)
	}
	return nil
}

// register hands the descriptor to the endpoint once. Failures are logged and
// not retried; the local descriptor stays.
func (m *Manager) register(ctx context.Context, ep platform.PushEndpoint, userID string) {
	if m.endpoint == "" {
		return
	}

	opts := []webhook.SendOption{webhook.WithNoRetry()}
	if m.secret != "" {
		opts = append(opts, webhook.WithSignature(m.secret))
	}
	err := m.sender.Send(ctx, m.endpoint, Registration{Subscription: ep, UserID: userID}, opts...)
	if err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to register push subscription",
			logger.UserID(userID),
			logger.Error(errors.Join(ErrRegistrationFailed, err)),
		)
		return
	}
	m.logger.LogAttrs(ctx, slog.LevelInfo, "push subscription registered", logger.UserID(userID))
}

func (m *Manager) load(ctx context.Context) (map[string]Subscription, error) {
	set := map[string]Subscription{}
	err := storage.GetJSON(ctx, m.store, SubscriptionsKey, &set)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if set == nil {
		set = map[string]Subscription{}
	}
	return set, nil
}

// Subscriptions returns the persisted descriptors, oldest first.
func (m *Manager) Subscriptions(ctx context.Context) ([]Subscription, error) {
	if m.store == nil {
		if sub, ok := m.Current(); ok {
			return []Subscription{sub}, nil
		}
		return nil, nil
	}

	set, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Subscription, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Subscription) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Clear removes every persisted descriptor. The status reached by Init is kept.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, SubscriptionsKey)
}
