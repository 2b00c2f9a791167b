package notifications

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/cache"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// DefaultDedupeWindow is how many recently admitted ids the Dispatcher
// remembers beyond what the History holds.
const DefaultDedupeWindow = 512

// PreferenceSource supplies the preferences in force at dispatch time.
// *PreferenceStore implements it.
type PreferenceSource interface {
	Get() Preferences
}

// StaticPreferences is a PreferenceSource that never changes.
type StaticPreferences Preferences

func (p StaticPreferences) Get() Preferences { return Preferences(p) }

// Dispatcher normalizes inbound events, applies the preference filter, appends
// admitted notifications to the History and hands them to the delivery
// channels. Callers must dispatch events of one connection sequentially.
type Dispatcher struct {
	history    *History
	prefs      PreferenceSource
	deliverer  Deliverer
	normalizer Normalizer
	seen       *cache.LRU[string, struct{}]
	logger     *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDeliverer sets the delivery channels.
func WithDeliverer(d Deliverer) DispatcherOption {
	return func(disp *Dispatcher) {
		if d != nil {
			disp.deliverer = d
		}
	}
}

// WithNormalizer overrides the id and clock sources used for normalization.
func WithNormalizer(n Normalizer) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.normalizer = n
	}
}

// WithDedupeWindow sets how many admitted ids are remembered. Zero disables
// the window; the History still rejects ids it holds.
func WithDedupeWindow(size int) DispatcherOption {
	return func(disp *Dispatcher) {
		if size <= 0 {
			disp.seen = nil
			return
		}
		disp.seen = cache.New[string, struct{}](size)
	}
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(disp *Dispatcher) {
		if l != nil {
			disp.logger = l
		}
	}
}

// NewDispatcher wires a Dispatcher to its History and preference source.
// A nil prefs admits everything.
func NewDispatcher(history *History, prefs PreferenceSource, opts ...DispatcherOption) *Dispatcher {
	if prefs == nil {
		prefs = StaticPreferences(DefaultPreferences())
	}
	d := &Dispatcher{
		history:   history,
		prefs:     prefs,
		deliverer: NoOpDeliverer{},
		seen:      cache.New[string, struct{}](DefaultDedupeWindow),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch processes one inbound event. Unknown events and malformed payloads
// are returned as errors for the caller to log; preference drops and replays
// are not errors.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, raw json.RawMessage) error {
	n, err := d.normalizer.Normalize(event, raw)
	if err != nil {
		return err
	}
	_, _ = d.admit(ctx, n, event)
	return nil
}

// Trigger admits a locally created notification through the same path as
// inbound events. It returns the completed notification, ErrFiltered when the
// user's preferences drop it and ErrDuplicate when its id was already seen.
func (d *Dispatcher) Trigger(ctx context.Context, n Notification) (Notification, error) {
	if n.Category != "" && !n.Category.Valid() {
		return Notification{}, ErrUnknownCategory
	}
	n = d.normalizer.complete(n)
	return d.admit(ctx, n, "trigger")
}

func (d *Dispatcher) admit(ctx context.Context, n Notification, source string) (Notification, error) {
	if d.seen != nil && d.seen.Contains(n.ID) {
		d.logger.LogAttrs(ctx, slog.LevelDebug, "duplicate notification ignored",
			logger.Event(source),
			logger.NotificationID(n.ID),
		)
		return n, ErrDuplicate
	}

	prefs := d.prefs.Get()
	if !Admit(n, prefs) {
		d.logger.LogAttrs(ctx, slog.LevelDebug, "notification filtered by preferences",
			logger.Event(source),
			logger.NotificationID(n.ID),
			logger.Category(string(n.Category)),
		)
		return n, ErrFiltered
	}

	if !d.history.Append(ctx, n) {
		d.logger.LogAttrs(ctx, slog.LevelDebug, "duplicate notification ignored",
			logger.Event(source),
			logger.NotificationID(n.ID),
		)
		return n, ErrDuplicate
	}
	if d.seen != nil {
		d.seen.Put(n.ID, struct{}{})
	}

	if err := d.deliverer.Deliver(ctx, n, prefs); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "notification stored but delivery failed",
			logger.NotificationID(n.ID),
			logger.Error(err),
		)
	}
	return n, nil
}
