package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Handler receives one published value.
type Handler[T any] func(ctx context.Context, v T)

// Listeners is a synchronous, typed publish/subscribe registry.
//
// Publish iterates over a snapshot of the handlers taken when it starts:
// a handler subscribed during a publish is not called for that value, and a
// handler that panics is recovered and logged without affecting the rest.
// The zero value is not usable; use NewListeners.
type Listeners[T any] struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler[T]
	order    []uint64
	nextID   uint64
	logger   *slog.Logger
	name     string
}

// Option configures Listeners.
type Option func(*options)

type options struct {
	logger *slog.Logger
	name   string
}

// WithLogger sets the logger used to report recovered handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithName labels log records produced by this registry.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// NewListeners creates an empty registry.
func NewListeners[T any](opts ...Option) *Listeners[T] {
	o := &options{logger: slog.Default(), name: "broadcast"}
	for _, opt := range opts {
		opt(o)
	}
	return &Listeners[T]{
		handlers: make(map[uint64]Handler[T]),
		logger:   o.logger,
		name:     o.name,
	}
}

// Subscribe registers h and returns a function that removes it.
// The returned function is idempotent.
func (l *Listeners[T]) Subscribe(h Handler[T]) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}

	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.handlers[id] = h
	l.order = append(l.order, id)
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

// Publish calls every handler registered before the call started, in
// subscription order.
func (l *Listeners[T]) Publish(ctx context.Context, v T) {
	for _, h := range l.snapshot() {
		l.invoke(ctx, h, v)
	}
}

// Len returns the number of registered handlers.
func (l *Listeners[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.handlers)
}

// Clear removes all handlers.
func (l *Listeners[T]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.handlers)
	l.order = nil
}

func (l *Listeners[T]) snapshot() []Handler[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()

	hs := make([]Handler[T], 0, len(l.order))
	for _, id := range l.order {
		if h, ok := l.handlers[id]; ok {
			hs = append(hs, h)
		}
	}
	return hs
}

func (l *Listeners[T]) invoke(ctx context.Context, h Handler[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.LogAttrs(ctx, slog.LevelError, "listener panicked",
				logger.Component(l.name),
				logger.Error(fmt.Errorf("%w: %v", ErrHandlerPanic, r)),
			)
		}
	}()
	h(ctx, v)
}

func (l *Listeners[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.handlers, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}
