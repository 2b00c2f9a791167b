package notifications

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/storage"
)

const (
	// HistoryKey is the storage key of the persisted history snapshot.
	HistoryKey = "notifications"

	DefaultHistoryLimit = 100
	DefaultPersistLimit = 50
)

// ChangeKind tags a History change event.
type ChangeKind string

const (
	ChangeAppended ChangeKind = "appended"
	ChangeRead     ChangeKind = "read"
	ChangeArchived ChangeKind = "archived"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeCleared  ChangeKind = "cleared"
	ChangeLoaded   ChangeKind = "loaded"
)

// Change is published to History subscribers after every mutation.
// Notification is empty for ChangeCleared and ChangeLoaded.
type Change struct {
	Kind         ChangeKind
	Notification Notification
	UnreadCount  int
}

// Snapshot is the persisted form of the History.
type Snapshot struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

// History is the bounded, newest-first notification list with an unread
// counter. The counter always equals the number of records that are neither
// read nor archived. Archived records stay in the list, hidden from All, until
// deleted or evicted.
//
// Persistence failures are logged and never returned; memory stays
// authoritative for the session.
type History struct {
	mu     sync.Mutex
	items  []Notification
	unread int

	limit        int
	persistLimit int
	store        storage.Store
	key          string
	now          func() time.Time
	logger       *slog.Logger
	listeners    *broadcast.Listeners[Change]

	// pending holds changes in mutation order until the draining goroutine
	// hands them to listeners. Both fields are guarded by mu.
	pending  []Change
	draining bool

	persistMu  sync.Mutex
	version    uint64
	persistedV uint64
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithHistoryStorage persists snapshots in s.
func WithHistoryStorage(s storage.Store) HistoryOption {
	return func(h *History) {
		h.store = s
	}
}

// WithHistoryKey overrides the storage key.
func WithHistoryKey(key string) HistoryOption {
	return func(h *History) {
		if key != "" {
			h.key = key
		}
	}
}

// WithLimits sets the in-memory and persisted caps. Non-positive values keep
// the defaults; the persisted cap never exceeds the in-memory one.
func WithLimits(memory, persisted int) HistoryOption {
	return func(h *History) {
		if memory > 0 {
			h.limit = memory
		}
		if persisted > 0 {
			h.persistLimit = persisted
		}
	}
}

func WithHistoryLogger(l *slog.Logger) HistoryOption {
	return func(h *History) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithHistoryClock sets the time source used for read timestamps.
func WithHistoryClock(now func() time.Time) HistoryOption {
	return func(h *History) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHistory creates an empty History.
func NewHistory(opts ...HistoryOption) *History {
	h := &History{
		limit:        DefaultHistoryLimit,
		persistLimit: DefaultPersistLimit,
		key:          HistoryKey,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.persistLimit = min(h.persistLimit, h.limit)
	h.listeners = broadcast.NewListeners[Change](
		broadcast.WithLogger(h.logger),
		broadcast.WithName("history"),
	)
	return h
}

// Load replaces the in-memory list with the persisted snapshot.
// The unread counter is recomputed from the loaded records. It returns the
// number of records loaded.
func (h *History) Load(ctx context.Context) int {
	if h.store == nil {
		return 0
	}

	var snap Snapshot
	if err := storage.GetJSON(ctx, h.store, h.key, &snap); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.LogAttrs(ctx, slog.LevelWarn, "failed to load notification history",
				logger.Key(h.key),
				logger.Error(err),
			)
		}
		return 0
	}

	seen := make(map[string]struct{}, len(snap.Notifications))
	items := make([]Notification, 0, min(len(snap.Notifications), h.limit))
	for _, n := range snap.Notifications {
		if n.ID == "" || len(items) == h.limit {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		items = append(items, n)
	}

	h.mu.Lock()
	h.items = items
	h.unread = countUnread(items)
	h.pending = append(h.pending, Change{Kind: ChangeLoaded, UnreadCount: h.unread})
	h.mu.Unlock()

	h.drain(ctx)
	return len(items)
}

// Append inserts n at the front. It reports false, changing nothing, when a
// notification with the same id is already present. Records past the
// in-memory cap are evicted from the tail.
func (h *History) Append(ctx context.Context, n Notification) bool {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n = n.clone()

	h.mu.Lock()
	if h.indexLocked(n.ID) >= 0 {
		h.mu.Unlock()
		return false
	}

	h.items = slices.Insert(h.items, 0, n)
	if n.Unread() {
		h.unread++
	}
	for len(h.items) > h.limit {
		last := len(h.items) - 1
		if h.items[last].Unread() {
			h.unread--
		}
		h.items = h.items[:last]
	}
	h.pending = append(h.pending, Change{Kind: ChangeAppended, Notification: n.clone(), UnreadCount: h.unread})
	snap, v := h.snapshotLocked()
	h.mu.Unlock()

	h.drain(ctx)
	h.persist(ctx, snap, v)
	return true
}

// MarkRead marks one record as read. Repeated calls are no-ops; it reports
// whether anything changed.
func (h *History) MarkRead(ctx context.Context, id string) bool {
	return h.mutate(ctx, id, ChangeRead, func(n *Notification) bool {
		if n.Read {
			return false
		}
		n.markRead(h.now())
		return true
	})
}

// MarkAllRead marks every unread, unarchived record as read, restricted to the
// given categories when any are passed. It returns how many were marked.
func (h *History) MarkAllRead(ctx context.Context, categories ...Category) int {
	now := h.now()

	h.mu.Lock()
	changed := 0
	for i := range h.items {
		n := &h.items[i]
		if !n.Unread() {
			continue
		}
		if len(categories) > 0 && !slices.Contains(categories, n.Category) {
			continue
		}
		n.markRead(now)
		h.unread--
		changed++
		h.pending = append(h.pending, Change{Kind: ChangeRead, Notification: n.clone(), UnreadCount: h.unread})
	}
	if changed == 0 {
		h.mu.Unlock()
		return 0
	}
	snap, v := h.snapshotLocked()
	h.mu.Unlock()

	h.drain(ctx)
	h.persist(ctx, snap, v)
	return changed
}

// Archive hides a record from All. It reports whether anything changed.
func (h *History) Archive(ctx context.Context, id string) bool {
	return h.mutate(ctx, id, ChangeArchived, func(n *Notification) bool {
		if n.Archived {
			return false
		}
		n.Archived = true
		return true
	})
}

// Delete removes a record entirely. It reports whether it existed.
func (h *History) Delete(ctx context.Context, id string) bool {
	h.mu.Lock()
	i := h.indexLocked(id)
	if i < 0 {
		h.mu.Unlock()
		return false
	}
	removed := h.items[i]
	h.items = slices.Delete(h.items, i, i+1)
	if removed.Unread() {
		h.unread--
	}
	h.pending = append(h.pending, Change{Kind: ChangeDeleted, Notification: removed.clone(), UnreadCount: h.unread})
	snap, v := h.snapshotLocked()
	h.mu.Unlock()

	h.drain(ctx)
	h.persist(ctx, snap, v)
	return true
}

// Clear removes every record, archived ones included.
func (h *History) Clear(ctx context.Context) {
	h.mu.Lock()
	h.items = nil
	h.unread = 0
	h.pending = append(h.pending, Change{Kind: ChangeCleared})
	snap, v := h.snapshotLocked()
	h.mu.Unlock()

	h.drain(ctx)
	h.persist(ctx, snap, v)
}

// All returns the non-archived records, newest first.
func (h *History) All() []Notification {
	return h.filter(func(n Notification) bool { return !n.Archived })
}

// Archived returns the archived records, newest first.
func (h *History) Archived() []Notification {
	return h.filter(func(n Notification) bool { return n.Archived })
}

// Get returns the record with the given id, archived or not.
func (h *History) Get(id string) (Notification, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if i := h.indexLocked(id); i >= 0 {
		return h.items[i].clone(), true
	}
	return Notification{}, false
}

// UnreadCount returns the number of records that are neither read nor archived.
func (h *History) UnreadCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unread
}

// Len returns the number of records held in memory, archived ones included.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Subscribe registers a change listener. Changes reach listeners one at a time
// in the order the mutations happened, so the UnreadCount of the last change
// delivered always matches UnreadCount. Listeners run outside the History lock
// and may call back into the History. A change made while another goroutine is
// delivering is handed over to that goroutine, so the mutating call can return
// before its listeners have run.
func (h *History) Subscribe(fn broadcast.Handler[Change]) (unsubscribe func()) {
	return h.listeners.Subscribe(fn)
}

func (h *History) mutate(ctx context.Context, id string, kind ChangeKind, fn func(*Notification) bool) bool {
	h.mu.Lock()
	i := h.indexLocked(id)
	if i < 0 {
		h.mu.Unlock()
		return false
	}

	n := &h.items[i]
	wasUnread := n.Unread()
	if !fn(n) {
		h.mu.Unlock()
		return false
	}
	switch isUnread := n.Unread(); {
	case wasUnread && !isUnread:
		h.unread--
	case !wasUnread && isUnread:
		h.unread++
	}
	h.pending = append(h.pending, Change{Kind: kind, Notification: n.clone(), UnreadCount: h.unread})
	snap, v := h.snapshotLocked()
	h.mu.Unlock()

	h.drain(ctx)
	h.persist(ctx, snap, v)
	return true
}

// drain delivers queued changes unless another goroutine already is.
func (h *History) drain(ctx context.Context) {
	h.mu.Lock()
	if h.draining {
		h.mu.Unlock()
		return
	}
	h.draining = true
	for len(h.pending) > 0 {
		batch := h.pending
		h.pending = nil
		h.mu.Unlock()
		for _, c := range batch {
			h.listeners.Publish(ctx, c)
		}
		h.mu.Lock()
	}
	h.draining = false
	h.mu.Unlock()
}

func (h *History) filter(keep func(Notification) bool) []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Notification, 0, len(h.items))
	for _, n := range h.items {
		if keep(n) {
			out = append(out, n.clone())
		}
	}
	return out
}

func (h *History) indexLocked(id string) int {
	return slices.IndexFunc(h.items, func(n Notification) bool { return n.ID == id })
}

// snapshotLocked copies the persisted prefix of the list and stamps it with a
// version so out-of-order writers can be discarded.
func (h *History) snapshotLocked() (Snapshot, uint64) {
	h.version++
	items := make([]Notification, 0, min(len(h.items), h.persistLimit))
	for _, n := range h.items[:min(len(h.items), h.persistLimit)] {
		items = append(items, n.clone())
	}
	return Snapshot{Notifications: items, UnreadCount: countUnread(items)}, h.version
}

func (h *History) persist(ctx context.Context, snap Snapshot, v uint64) {
	if h.store == nil {
		return
	}

	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	if v <= h.persistedV {
		return
	}
	if err := storage.SetJSON(ctx, h.store, h.key, snap); err != nil {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "failed to persist notification history",
			logger.Key(h.key),
			logger.Error(err),
		)
		return
	}
	h.persistedV = v
}

func countUnread(items []Notification) int {
	c := 0
	for _, n := range items {
		if n.Unread() {
			c++
		}
	}
	return c
}
