package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/clock"
)

func TestManual(t *testing.T) {
	t.Parallel()

	t.Run("advance fires due callbacks in order", func(t *testing.T) {
		m := clock.NewManual()
		var fired []string

		m.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
		m.AfterFunc(time.Second, func() { fired = append(fired, "a") })
		m.AfterFunc(5*time.Second, func() { fired = append(fired, "c") })

		start := m.Now()
		m.Advance(3 * time.Second)

		assert.Equal(t, []string{"a", "b"}, fired)
		assert.Equal(t, []time.Duration{5 * time.Second}, m.Pending())
		assert.Equal(t, start.Add(3*time.Second), m.Now())
	})

	t.Run("stopped callbacks never run", func(t *testing.T) {
		m := clock.NewManual()
		fired := false

		timer := m.AfterFunc(time.Second, func() { fired = true })
		assert.True(t, timer.Stop())
		assert.False(t, timer.Stop())

		m.Advance(time.Minute)
		assert.False(t, fired)
		assert.Empty(t, m.Pending())
	})

	t.Run("fire next", func(t *testing.T) {
		m := clock.NewManual()
		_, ok := m.FireNext()
		assert.False(t, ok)

		count := 0
		timer := m.AfterFunc(4*time.Second, func() { count++ })

		d, ok := m.FireNext()
		require.True(t, ok)
		assert.Equal(t, 4*time.Second, d)
		assert.Equal(t, 1, count)
		assert.False(t, timer.Stop())
	})

	t.Run("callbacks may schedule more callbacks", func(t *testing.T) {
		m := clock.NewManual()
		count := 0

		var tick func()
		tick = func() {
			count++
			if count < 3 {
				m.AfterFunc(time.Second, tick)
			}
		}
		m.AfterFunc(time.Second, tick)

		m.Advance(10 * time.Second)
		assert.Equal(t, 3, count)
	})
}

func TestSystem(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	clock.System{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not run")
	}
}
