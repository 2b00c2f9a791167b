package devserver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/clock"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
)

func envelope(t *testing.T, event string) realtime.Envelope {
	t.Helper()
	env, err := realtime.NewEnvelope(event, map[string]string{"id": event})
	require.NoError(t, err)
	return env
}

func drain(s *session) []string {
	var events []string
	for {
		select {
		case env := <-s.out:
			events = append(events, env.Event)
		default:
			return events
		}
	}
}

func TestHub_Routing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("nothing before subscribe", func(t *testing.T) {
		t.Parallel()
		hub := NewHub(logger.Nop())
		s := newSession("s1", "u1", 8)
		defer hub.attach(s)()

		hub.Publish(ctx, "predictions", "", envelope(t, "item:new"))
		assert.Empty(t, drain(s))
	})

	t.Run("channel filter", func(t *testing.T) {
		t.Parallel()
		hub := NewHub(logger.Nop())
		s := newSession("s1", "u1", 8)
		defer hub.attach(s)()
		s.subscribe([]string{"results"})

		hub.Publish(ctx, "predictions", "", envelope(t, "item:new"))
		hub.Publish(ctx, "results", "", envelope(t, "item:resolved"))
		hub.Publish(ctx, "", "", envelope(t, "notification"))
		assert.Equal(t, []string{"item:resolved", "notification"}, drain(s))
	})

	t.Run("empty subscribe takes default channels", func(t *testing.T) {
		t.Parallel()
		hub := NewHub(logger.Nop())
		s := newSession("s1", "u1", 8)
		defer hub.attach(s)()
		s.subscribe(nil)

		for _, ch := range realtime.DefaultChannels() {
			hub.Publish(ctx, ch, "", envelope(t, ch))
		}
		assert.Equal(t, realtime.DefaultChannels(), drain(s))
	})

	t.Run("targeted user", func(t *testing.T) {
		t.Parallel()
		hub := NewHub(logger.Nop())
		a := newSession("s1", "u1", 8)
		b := newSession("s2", "u2", 8)
		defer hub.attach(a)()
		defer hub.attach(b)()
		a.subscribe(nil)
		b.subscribe(nil)

		hub.Publish(ctx, "challenges", "u2", envelope(t, "challenge:received"))
		assert.Empty(t, drain(a))
		assert.Equal(t, []string{"challenge:received"}, drain(b))
	})

	t.Run("full buffer drops without blocking", func(t *testing.T) {
		t.Parallel()
		hub := NewHub(logger.Nop())
		s := newSession("s1", "u1", 1)
		defer hub.attach(s)()
		s.subscribe(nil)

		hub.Publish(ctx, "system", "", envelope(t, "first"))
		hub.Publish(ctx, "system", "", envelope(t, "second"))
		assert.Equal(t, []string{"first"}, drain(s))
	})

	t.Run("detach", func(t *testing.T) {
		t.Parallel()
		hub := NewHub(logger.Nop())
		s := newSession("s1", "u1", 8)
		detach := hub.attach(s)
		s.subscribe(nil)
		assert.Equal(t, 1, hub.Sessions())

		detach()
		assert.Equal(t, 0, hub.Sessions())
		hub.Publish(ctx, "system", "", envelope(t, "notification"))
		assert.Empty(t, drain(s))
	})
}

func TestHub_Preferences(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	_, ok := hub.Preferences("u1")
	assert.False(t, ok)

	p := notifications.DefaultPreferences()
	p.Challenge = false
	hub.SetPreferences("u1", p)

	got, ok := hub.Preferences("u1")
	require.True(t, ok)
	assert.Equal(t, p, got)
}

func TestServer_RunGenerator(t *testing.T) {
	t.Parallel()

	sched := clock.NewManual()
	srv := New(Config{EventInterval: time.Second, Seed: 7, SessionBuffer: 16},
		WithScheduler(sched),
		WithLogger(logger.Nop()),
	)
	s := newSession("s1", "u1", 16)
	defer srv.hub.attach(s)()
	s.subscribe(nil)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.RunGenerator(ctx)
	}()

	require.Eventually(t, func() bool { return len(sched.Pending()) == 1 }, time.Second, 5*time.Millisecond)
	for range 3 {
		delay, ok := sched.FireNext()
		require.True(t, ok)
		assert.Equal(t, time.Second, delay)
	}
	assert.Len(t, drain(s), 3)
	assert.Len(t, sched.Pending(), 1)

	cancel()
	wg.Wait()
	assert.Empty(t, sched.Pending())
}

func TestServer_RunGeneratorDisabled(t *testing.T) {
	t.Parallel()

	srv := New(Config{}, WithScheduler(clock.NewManual()), WithLogger(logger.Nop()))
	done := make(chan struct{})
	go func() {
		srv.RunGenerator(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "generator should return when the interval is zero")
	}
}
