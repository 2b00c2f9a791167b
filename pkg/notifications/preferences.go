package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/storage"
)

// PreferencesKey is the storage key of the persisted preferences.
const PreferencesKey = "notification-preferences"

// EmailDigest is how often a summary email is sent.
type EmailDigest string

const (
	DigestNone   EmailDigest = "none"
	DigestDaily  EmailDigest = "daily"
	DigestWeekly EmailDigest = "weekly"
)

// Valid reports whether d is a known digest frequency.
func (d EmailDigest) Valid() bool {
	switch d {
	case DigestNone, DigestDaily, DigestWeekly:
		return true
	}
	return false
}

// Preferences are the user's delivery settings.
// Category keys are singular; the plural spellings are accepted when decoding
// and never written.
type Preferences struct {
	Prediction       bool        `json:"prediction"`
	Result           bool        `json:"result"`
	Challenge        bool        `json:"challenge"`
	Achievement      bool        `json:"achievement"`
	System           bool        `json:"system"`
	SoundEnabled     bool        `json:"soundEnabled"`
	VibrationEnabled bool        `json:"vibrationEnabled"`
	EmailDigest      EmailDigest `json:"emailDigest"`
}

// DefaultPreferences enables every category, sound and vibration.
func DefaultPreferences() Preferences {
	return Preferences{
		Prediction:       true,
		Result:           true,
		Challenge:        true,
		Achievement:      true,
		System:           true,
		SoundEnabled:     true,
		VibrationEnabled: true,
		EmailDigest:      DigestNone,
	}
}

// Enabled reports whether notifications of category c are wanted.
// Unknown categories are never enabled.
func (p Preferences) Enabled(c Category) bool {
	switch c {
	case CategoryPrediction:
		return p.Prediction
	case CategoryResult:
		return p.Result
	case CategoryChallenge:
		return p.Challenge
	case CategoryAchievement:
		return p.Achievement
	case CategorySystem:
		return p.System
	}
	return false
}

// SetCategory toggles category c.
func (p *Preferences) SetCategory(c Category, enabled bool) error {
	switch c {
	case CategoryPrediction:
		p.Prediction = enabled
	case CategoryResult:
		p.Result = enabled
	case CategoryChallenge:
		p.Challenge = enabled
	case CategoryAchievement:
		p.Achievement = enabled
	case CategorySystem:
		p.System = enabled
	default:
		return ErrUnknownCategory
	}
	return nil
}

// Validate checks enum fields.
func (p Preferences) Validate() error {
	if !p.EmailDigest.Valid() {
		return ErrInvalidDigest
	}
	return nil
}

// UnmarshalJSON starts from the defaults so absent keys keep their default
// value, and falls back to plural category keys when the singular one is
// missing.
func (p *Preferences) UnmarshalJSON(data []byte) error {
	type plain Preferences
	out := plain(DefaultPreferences())
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	legacy := []struct {
		singular, plural string
		dst              *bool
	}{
		{"prediction", "predictions", &out.Prediction},
		{"result", "results", &out.Result},
		{"challenge", "challenges", &out.Challenge},
		{"achievement", "achievements", &out.Achievement},
	}
	for _, l := range legacy {
		if _, ok := raw[l.singular]; ok {
			continue
		}
		if v, ok := raw[l.plural]; ok {
			if err := json.Unmarshal(v, l.dst); err != nil {
				return err
			}
		}
	}

	if out.EmailDigest == "" {
		out.EmailDigest = DigestNone
	}
	*p = Preferences(out)
	return nil
}

// Admit reports whether n passes the user's category filter.
func Admit(n Notification, p Preferences) bool {
	return p.Enabled(n.Category)
}

// PreferenceStore owns the current preferences, persists every change and
// notifies change hooks.
type PreferenceStore struct {
	// writeMu serializes read-modify-persist cycles; mu guards prefs for readers.
	writeMu sync.Mutex
	mu      sync.RWMutex
	prefs   Preferences
	store   storage.Store
	key     string
	logger  *slog.Logger
	changes *broadcast.Listeners[Preferences]
}

// PreferenceOption configures a PreferenceStore.
type PreferenceOption func(*PreferenceStore)

// WithPreferenceStorage persists preferences in s.
func WithPreferenceStorage(s storage.Store) PreferenceOption {
	return func(ps *PreferenceStore) {
		ps.store = s
	}
}

// WithPreferenceKey overrides the storage key.
func WithPreferenceKey(key string) PreferenceOption {
	return func(ps *PreferenceStore) {
		if key != "" {
			ps.key = key
		}
	}
}

func WithPreferenceLogger(l *slog.Logger) PreferenceOption {
	return func(ps *PreferenceStore) {
		if l != nil {
			ps.logger = l
		}
	}
}

// NewPreferenceStore returns a store holding the defaults. Call Load to read
// persisted preferences.
func NewPreferenceStore(opts ...PreferenceOption) *PreferenceStore {
	ps := &PreferenceStore{
		prefs:  DefaultPreferences(),
		key:    PreferencesKey,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ps)
	}
	ps.changes = broadcast.NewListeners[Preferences](
		broadcast.WithLogger(ps.logger),
		broadcast.WithName("preferences"),
	)
	return ps
}

// Load reads persisted preferences. Missing preferences are created from the
// defaults and persisted; unreadable ones are logged and the defaults kept.
func (ps *PreferenceStore) Load(ctx context.Context) Preferences {
	if ps.store == nil {
		return ps.Get()
	}

	ps.writeMu.Lock()
	defer ps.writeMu.Unlock()

	var loaded Preferences
	err := storage.GetJSON(ctx, ps.store, ps.key, &loaded)
	switch {
	case err == nil && loaded.Validate() == nil:
		ps.mu.Lock()
		ps.prefs = loaded
		ps.mu.Unlock()
	case errors.Is(err, storage.ErrNotFound):
		ps.persist(ctx, ps.Get())
	default:
		if err == nil {
			err = loaded.Validate()
		}
		ps.logger.LogAttrs(ctx, slog.LevelWarn, "failed to load preferences, using defaults",
			logger.Key(ps.key),
			logger.Error(err),
		)
	}
	return ps.Get()
}

// Get returns the current preferences.
func (ps *PreferenceStore) Get() Preferences {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.prefs
}

// Update replaces the preferences.
func (ps *PreferenceStore) Update(ctx context.Context, p Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return ps.apply(ctx, func(Preferences) (Preferences, error) { return p, nil })
}

// SetCategory toggles one category.
func (ps *PreferenceStore) SetCategory(ctx context.Context, c Category, enabled bool) error {
	return ps.apply(ctx, func(p Preferences) (Preferences, error) {
		err := p.SetCategory(c, enabled)
		return p, err
	})
}

// Reset restores the defaults.
func (ps *PreferenceStore) Reset(ctx context.Context) {
	_ = ps.apply(ctx, func(Preferences) (Preferences, error) { return DefaultPreferences(), nil })
}

// OnChange registers a hook called after every change with the new preferences.
// Hooks run while the store holds its write lock and must not change the
// preferences themselves.
func (ps *PreferenceStore) OnChange(h broadcast.Handler[Preferences]) (unsubscribe func()) {
	return ps.changes.Subscribe(h)
}

// apply runs modify against the current preferences, then stores, persists
// and announces the result as one step with respect to other writers.
func (ps *PreferenceStore) apply(ctx context.Context, modify func(Preferences) (Preferences, error)) error {
	ps.writeMu.Lock()
	defer ps.writeMu.Unlock()

	p, err := modify(ps.Get())
	if err != nil {
		return err
	}

	ps.mu.Lock()
	changed := ps.prefs != p
	ps.prefs = p
	ps.mu.Unlock()

	if !changed {
		return nil
	}
	ps.persist(ctx, p)
	ps.changes.Publish(ctx, p)
	return nil
}

func (ps *PreferenceStore) persist(ctx context.Context, p Preferences) {
	if ps.store == nil {
		return
	}
	if err := storage.SetJSON(ctx, ps.store, ps.key, p); err != nil {
		ps.logger.LogAttrs(ctx, slog.LevelWarn, "failed to persist preferences",
			logger.Key(ps.key),
			logger.Error(err),
		)
	}
}
