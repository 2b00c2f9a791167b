package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Deliverer performs one side effect for an admitted notification.
// Implementations check their own capability and preference gates and return
// nil when they have nothing to do.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification, prefs Preferences) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, n Notification, prefs Preferences) error

func (f DelivererFunc) Deliver(ctx context.Context, n Notification, prefs Preferences) error {
	return f(ctx, n, prefs)
}

// Named is implemented by deliverers that want a readable label in logs.
type Named interface {
	Name() string
}

// MultiDeliverer runs every channel in order. A failing or panicking channel
// is logged and does not stop the others.
type MultiDeliverer struct {
	deliverers []Deliverer
	logger     *slog.Logger
}

// MultiDelivererOption configures a MultiDeliverer.
type MultiDelivererOption func(*MultiDeliverer)

// WithMultiDelivererLogger sets the logger for the MultiDeliverer.
func WithMultiDelivererLogger(l *slog.Logger) MultiDelivererOption {
	return func(m *MultiDeliverer) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMultiDeliverer creates a multi-channel deliverer. Nil entries are skipped.
func NewMultiDeliverer(deliverers []Deliverer, opts ...MultiDelivererOption) *MultiDeliverer {
	m := &MultiDeliverer{logger: slog.Default()}
	for _, d := range deliverers {
		if d != nil {
			m.deliverers = append(m.deliverers, d)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Deliver always returns nil; failures are logged per channel.
func (m *MultiDeliverer) Deliver(ctx context.Context, n Notification, prefs Preferences) error {
	for i, d := range m.deliverers {
		if err := m.deliverOne(ctx, d, n, prefs); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "failed to deliver notification",
				logger.NotificationID(n.ID),
				logger.Channel(channelName(d, i)),
				logger.Error(err),
			)
		}
	}
	return nil
}

// Len returns the number of channels.
func (m *MultiDeliverer) Len() int {
	return len(m.deliverers)
}

func (m *MultiDeliverer) deliverOne(ctx context.Context, d Deliverer, n Notification, prefs Preferences) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrDeliveryPanicked, r)
		}
	}()
	return d.Deliver(ctx, n, prefs)
}

func channelName(d Deliverer, i int) string {
	if named, ok := d.(Named); ok {
		return named.Name()
	}
	return "deliverer-" + strconv.Itoa(i)
}

// NoOpDeliverer does nothing. Useful for tests or headless consumers.
type NoOpDeliverer struct{}

func (NoOpDeliverer) Deliver(context.Context, Notification, Preferences) error {
	return nil
}
