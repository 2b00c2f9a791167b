package notifications

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/clock"
)

// Default toast lifetimes.
const (
	DefaultToastDuration = 5 * time.Second
	UrgentToastDuration  = 8 * time.Second
)

// Toast is the on-screen representation of a notification.
type Toast struct {
	NotificationID string        `json:"notificationId"`
	Category       Category      `json:"category"`
	Priority       Priority      `json:"priority"`
	Title          string        `json:"title"`
	Message        string        `json:"message"`
	ActionURL      string        `json:"actionUrl,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// ToastEventKind tells UI subscribers whether to show or hide a toast.
type ToastEventKind string

const (
	ToastShown     ToastEventKind = "shown"
	ToastDismissed ToastEventKind = "dismissed"
)

// ToastEvent is published to UI subscribers.
type ToastEvent struct {
	Kind  ToastEventKind `json:"kind"`
	Toast Toast          `json:"toast"`
}

// Toaster is the in-app toast channel. It is always available: it hands the
// toast to UI subscribers and owns the auto-dismiss timers, which Close
// cancels.
type Toaster struct {
	mu       sync.Mutex
	active   map[string]activeToast
	closed   bool
	seq      uint64
	sched    clock.Scheduler
	duration time.Duration
	urgent   time.Duration
	events   *broadcast.Listeners[ToastEvent]
}

type activeToast struct {
	toast Toast
	timer clock.Timer
	seq   uint64
}

// ToasterOption configures a Toaster.
type ToasterOption func(*Toaster)

// WithToastScheduler replaces the timer source.
func WithToastScheduler(s clock.Scheduler) ToasterOption {
	return func(t *Toaster) {
		if s != nil {
			t.sched = s
		}
	}
}

// WithToastDurations sets how long regular and high priority toasts stay
// visible. Zero disables auto-dismiss for that class.
func WithToastDurations(regular, urgent time.Duration) ToasterOption {
	return func(t *Toaster) {
		t.duration = regular
		t.urgent = urgent
	}
}

func NewToaster(l *slog.Logger, opts ...ToasterOption) *Toaster {
	if l == nil {
		l = slog.Default()
	}
	t := &Toaster{
		active:   make(map[string]activeToast),
		sched:    clock.System{},
		duration: DefaultToastDuration,
		urgent:   UrgentToastDuration,
		events:   broadcast.NewListeners[ToastEvent](broadcast.WithLogger(l), broadcast.WithName("toast")),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Toaster) Name() string { return "toast" }

// Subscribe registers a UI listener.
func (t *Toaster) Subscribe(h broadcast.Handler[ToastEvent]) (unsubscribe func()) {
	return t.events.Subscribe(h)
}

// Deliver shows a toast for n. A toast already visible for the same
// notification is replaced and its timer restarted.
func (t *Toaster) Deliver(ctx context.Context, n Notification, _ Preferences) error {
	toast := Toast{
		NotificationID: n.ID,
		Category:       n.Category,
		Priority:       n.Priority,
		Title:          n.Title,
		Message:        n.Message,
		ActionURL:      n.ActionURL,
		Duration:       t.duration,
	}
	if n.Priority == PriorityHigh {
		toast.Duration = t.urgent
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	if prev, ok := t.active[n.ID]; ok && prev.timer != nil {
		prev.timer.Stop()
	}
	t.seq++
	entry := activeToast{toast: toast, seq: t.seq}
	if toast.Duration > 0 {
		id, seq := n.ID, t.seq
		entry.timer = t.sched.AfterFunc(toast.Duration, func() {
			t.expire(context.WithoutCancel(ctx), id, seq)
		})
	}
	t.active[n.ID] = entry
	t.mu.Unlock()

	t.events.Publish(ctx, ToastEvent{Kind: ToastShown, Toast: toast})
	return nil
}

// Dismiss hides the toast for a notification id. It reports whether one was visible.
func (t *Toaster) Dismiss(ctx context.Context, notificationID string) bool {
	return t.remove(ctx, notificationID, 0)
}

// expire is the auto-dismiss callback; it ignores toasts that were replaced
// after its timer was armed.
func (t *Toaster) expire(ctx context.Context, notificationID string, seq uint64) {
	t.remove(ctx, notificationID, seq)
}

func (t *Toaster) remove(ctx context.Context, notificationID string, seq uint64) bool {
	t.mu.Lock()
	entry, ok := t.active[notificationID]
	if ok && seq != 0 && entry.seq != seq {
		ok = false
	}
	if ok {
		delete(t.active, notificationID)
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	t.mu.Unlock()

	if ok {
		t.events.Publish(ctx, ToastEvent{Kind: ToastDismissed, Toast: entry.toast})
	}
	return ok
}

// Active returns the visible toasts in the order they were shown, newest last.
func (t *Toaster) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]activeToast, 0, len(t.active))
	for _, a := range t.active {
		entries = append(entries, a)
	}
	slices.SortFunc(entries, func(a, b activeToast) int { return cmp.Compare(a.seq, b.seq) })

	out := make([]Toast, 0, len(entries))
	for _, a := range entries {
		out = append(out, a.toast)
	}
	return out
}

// Close cancels every pending auto-dismiss timer and stops accepting toasts.
func (t *Toaster) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, a := range t.active {
		if a.timer != nil {
			a.timer.Stop()
		}
		delete(t.active, id)
	}
	t.closed = true
}
