package devserver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
)

// delivery is one envelope on its way to matching sessions.
// Empty userID matches any user; empty channel matches any subscription.
type delivery struct {
	channel string
	userID  string
	env     realtime.Envelope
}

// Hub routes envelopes to connected sessions and remembers the last
// preferences each user synced.
type Hub struct {
	listeners *broadcast.Listeners[delivery]
	logger    *slog.Logger

	mu    sync.RWMutex
	prefs map[string]notifications.Preferences
}

// NewHub returns an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		listeners: broadcast.NewListeners[delivery](broadcast.WithLogger(log), broadcast.WithName("devserver.hub")),
		logger:    log,
		prefs:     make(map[string]notifications.Preferences),
	}
}

// Publish sends env to every session of userID subscribed to channel.
// An empty userID reaches every subscribed session.
func (h *Hub) Publish(ctx context.Context, channel, userID string, env realtime.Envelope) {
	h.listeners.Publish(ctx, delivery{channel: channel, userID: userID, env: env})
}

// Sessions reports the number of attached sessions.
func (h *Hub) Sessions() int {
	return h.listeners.Len()
}

// SetPreferences records the preferences a user synced.
func (h *Hub) SetPreferences(userID string, p notifications.Preferences) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prefs[userID] = p
}

// Preferences returns the last preferences synced by userID.
func (h *Hub) Preferences(userID string) (notifications.Preferences, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.prefs[userID]
	return p, ok
}

// attach registers s and returns the function that removes it.
func (h *Hub) attach(s *session) (detach func()) {
	return h.listeners.Subscribe(func(ctx context.Context, d delivery) {
		if !s.wants(d) {
			return
		}
		if !s.enqueue(d.env) {
			h.logger.LogAttrs(ctx, slog.LevelWarn, "session buffer full, dropping event",
				logger.UserID(s.userID),
				logger.Event(d.env.Event),
				slog.String("session_id", s.id),
			)
		}
	})
}

// session is one websocket client. The user is fixed at connect time;
// channels are set by the client's subscribe message.
type session struct {
	id     string
	userID string
	out    chan realtime.Envelope

	mu         sync.RWMutex
	subscribed bool
	channels   map[string]struct{}
}

func newSession(id, userID string, buffer int) *session {
	if buffer < 1 {
		buffer = 1
	}
	return &session{
		id:       id,
		userID:   userID,
		out:      make(chan realtime.Envelope, buffer),
		channels: make(map[string]struct{}),
	}
}

// subscribe replaces the channel set. An empty list subscribes to every
// default channel.
func (s *session) subscribe(channels []string) {
	if len(channels) == 0 {
		channels = realtime.DefaultChannels()
	}
	set := make(map[string]struct{}, len(channels))
	for _, c := range channels {
		set[c] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = set
	s.subscribed = true
}

func (s *session) wants(d delivery) bool {
	if d.userID != "" && d.userID != s.userID {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.subscribed {
		return false
	}
	if d.channel == "" {
		return true
	}
	_, ok := s.channels[d.channel]
	return ok
}

func (s *session) enqueue(env realtime.Envelope) bool {
	select {
	case s.out <- env:
		return true
	default:
		return false
	}
}
