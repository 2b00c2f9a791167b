package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dmitrymomot/notifykit/pkg/clock"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/push"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

const (
	wsReadLimit  = 64 << 10
	maxBodyBytes = 64 << 10
	writeTimeout = 5 * time.Second

	signatureMaxAge = 5 * time.Minute
)

// Server is the development notification source.
type Server struct {
	cfg      Config
	hub      *Hub
	registry Registry
	gen      *Generator
	sched    clock.Scheduler
	logger   *slog.Logger
	checks   []func(context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithRegistry replaces the in-memory push registry.
func WithRegistry(r Registry) Option {
	return func(s *Server) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithGenerator replaces the seeded event generator.
func WithGenerator(g *Generator) Option {
	return func(s *Server) {
		if g != nil {
			s.gen = g
		}
	}
}

// WithScheduler drives the generator interval and timestamps.
func WithScheduler(c clock.Scheduler) Option {
	return func(s *Server) {
		if c != nil {
			s.sched = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReadinessCheck adds a check to GET /readyz.
func WithReadinessCheck(fn func(context.Context) error) Option {
	return func(s *Server) {
		if fn != nil {
			s.checks = append(s.checks, fn)
		}
	}
}

// New builds a Server from cfg.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		sched:  clock.System{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.logger)
	if s.registry == nil {
		s.registry = NewMemoryRegistry(s.sched.Now)
	}
	if s.gen == nil {
		s.gen = NewGenerator(cfg.Seed, s.sched.Now)
	}
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Registry() Registry { return s.registry }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthCheckHandler(s.logger))
	r.Get("/readyz", httpserver.HealthCheckHandler(s.logger, s.checks...))
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Route("/push/subscriptions", func(r chi.Router) {
			r.Post("/", s.registerPush)
			r.Get("/", s.listPush)
		})
		r.Post("/events", s.postEvent)
		r.Get("/users/{userID}/preferences", s.getPreferences)
	})
	return r
}

// Emit routes ev to the matching sessions. An empty channel is derived from
// the event name.
func (s *Server) Emit(ctx context.Context, ev Event) error {
	ch, ok := ChannelFor(ev.Name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Name)
	}
	if ev.Channel == "" {
		ev.Channel = ch
	}

	env, err := realtime.NewEnvelope(ev.Name, ev.Data)
	if err != nil {
		return errors.Join(realtime.ErrInvalidPayload, err)
	}
	s.hub.Publish(ctx, ev.Channel, ev.UserID, env)
	s.logger.LogAttrs(ctx, slog.LevelDebug, "event emitted",
		logger.Event(ev.Name),
		logger.Channel(ev.Channel),
		logger.UserID(ev.UserID),
	)
	return nil
}

// RunGenerator emits a generated event every EventInterval until ctx is done.
// It returns immediately when the interval is not positive.
func (s *Server) RunGenerator(ctx context.Context) {
	interval := s.cfg.EventInterval
	if interval <= 0 {
		return
	}

	var (
		mu    sync.Mutex
		timer clock.Timer
		tick  func()
	)
	tick = func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.Emit(ctx, s.gen.Next()); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "generated event rejected", logger.Error(err))
		}
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() == nil {
			timer = s.sched.AfterFunc(interval, tick)
		}
	}

	mu.Lock()
	timer = s.sched.AfterFunc(interval, tick)
	mu.Unlock()

	<-ctx.Done()
	mu.Lock()
	timer.Stop()
	mu.Unlock()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id", ErrMissingUserID)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.AllowedOrigins})
	if err != nil {
		s.logger.LogAttrs(r.Context(), slog.LevelWarn, "websocket accept failed", logger.UserID(userID), logger.Error(err))
		return
	}
	defer c.Close(websocket.StatusInternalError, "")
	c.SetReadLimit(wsReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	sess := newSession(uuid.NewString(), userID, s.cfg.SessionBuffer)
	detach := s.hub.attach(sess)
	s.logger.LogAttrs(ctx, slog.LevelInfo, "session opened", logger.UserID(userID), slog.String("session_id", sess.id))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		s.writeLoop(ctx, c, sess)
	}()

	err = s.readLoop(ctx, c, sess)
	detach()
	cancel()
	<-writerDone

	status := websocket.CloseStatus(err)
	s.logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "session closed",
		logger.UserID(userID),
		slog.String("session_id", sess.id),
		slog.Int("close_status", int(status)),
	)
	c.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) writeLoop(ctx context.Context, c *websocket.Conn, sess *session) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-sess.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c, env)
			cancel()
			if err != nil {
				s.logger.LogAttrs(ctx, slog.LevelDebug, "session write failed", logger.UserID(sess.userID), logger.Error(err))
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *websocket.Conn, sess *session) error {
	for {
		var env realtime.Envelope
		if err := wsjson.Read(ctx, c, &env); err != nil {
			return err
		}
		s.handleMessage(ctx, sess, env)
	}
}

type preferencesPayload struct {
	UserID      string                    `json:"userId"`
	Preferences notifications.Preferences `json:"preferences"`
}

func (s *Server) handleMessage(ctx context.Context, sess *session, env realtime.Envelope) {
	switch env.Event {
	case realtime.EventSubscribe:
		var p realtime.SubscribePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.reply(ctx, sess, "invalid_payload", err.Error())
			return
		}
		if p.UserID != "" && p.UserID != sess.userID {
			s.reply(ctx, sess, "user_mismatch", "subscribe userId does not match the connection")
			return
		}
		sess.subscribe(p.Channels)
		if s.cfg.Welcome {
			s.welcome(ctx, sess)
		}

	case realtime.EventUpdatePreferences:
		var p preferencesPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.reply(ctx, sess, "invalid_payload", err.Error())
			return
		}
		if err := p.Preferences.Validate(); err != nil {
			s.reply(ctx, sess, "invalid_preferences", err.Error())
			return
		}
		s.hub.SetPreferences(sess.userID, p.Preferences)
		s.logger.LogAttrs(ctx, slog.LevelDebug, "preferences synced", logger.UserID(sess.userID))

	default:
		s.reply(ctx, sess, "unknown_event", fmt.Sprintf("unsupported event %q", env.Event))
	}
}

func (s *Server) reply(ctx context.Context, sess *session, code, message string) {
	env, err := realtime.NewEnvelope(realtime.EventError, errorDetail{Code: code, Message: message})
	if err != nil {
		return
	}
	if !sess.enqueue(env) {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "session buffer full, dropping error reply", logger.UserID(sess.userID))
	}
}

func (s *Server) welcome(ctx context.Context, sess *session) {
	env, err := realtime.NewEnvelope(notifications.EventNotification, map[string]any{
		"id":        uuid.NewString(),
		"category":  notifications.CategorySystem,
		"priority":  notifications.PriorityLow,
		"title":     "Connected",
		"message":   "Live notifications are on.",
		"timestamp": s.sched.Now().UTC(),
	})
	if err != nil {
		return
	}
	if !sess.enqueue(env) {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "session buffer full, dropping welcome", logger.UserID(sess.userID))
	}
}

func (s *Server) registerPush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if s.cfg.PushSecret != "" {
		sig, err := webhook.SignatureFromHeader(r.Header)
		if err == nil {
			err = webhook.VerifySignature(s.cfg.PushSecret, body, sig, signatureMaxAge)
		}
		if err != nil {
			s.logger.LogAttrs(r.Context(), slog.LevelWarn, "rejected unsigned push registration", logger.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid_signature", err)
			return
		}
	}

	var reg push.Registration
	if err := json.Unmarshal(body, &reg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}

	rec, err := s.registry.Save(r.Context(), reg)
	switch {
	case errors.Is(err, ErrInvalidRegistration):
		writeError(w, http.StatusUnprocessableEntity, "invalid_registration", err)
		return
	case err != nil:
		s.logger.LogAttrs(r.Context(), slog.LevelError, "push registration failed", logger.UserID(reg.UserID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "registry_unavailable", ErrRegistryUnavailable)
		return
	}

	s.logger.LogAttrs(r.Context(), slog.LevelInfo, "push subscription registered",
		logger.UserID(rec.UserID),
		slog.String("subscription_id", rec.ID),
	)
	writeData(w, http.StatusCreated, rec)
}

func (s *Server) listPush(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id", ErrMissingUserID)
		return
	}

	recs, err := s.registry.List(r.Context(), userID)
	if err != nil {
		s.logger.LogAttrs(r.Context(), slog.LevelError, "list push subscriptions failed", logger.UserID(userID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "registry_unavailable", ErrRegistryUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{Data: recs, Meta: map[string]any{"count": len(recs)}})
}

func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if ev.Data == nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", errors.New("data is required"))
		return
	}

	if err := s.Emit(r.Context(), ev); err != nil {
		if errors.Is(err, ErrUnknownEvent) {
			writeError(w, http.StatusBadRequest, "unknown_event", err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_payload", err)
		return
	}
	if ev.Channel == "" {
		ev.Channel, _ = ChannelFor(ev.Name)
	}
	writeJSON(w, http.StatusAccepted, jsonResponse{
		Data: ev,
		Meta: map[string]any{"sessions": s.hub.Sessions()},
	})
}

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	p, ok := s.hub.Preferences(userID)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("no preferences synced for %q", userID))
		return
	}
	writeData(w, http.StatusOK, p)
}
