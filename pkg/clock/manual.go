package clock

import (
	"slices"
	"sync"
	"time"
)

// Manual is a Scheduler whose time only moves when Advance or FireNext is called.
// Callbacks run synchronously on the caller's goroutine.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	m       *Manual
	seq     int
	at      time.Time
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

// NewManual returns a Manual clock starting at a fixed instant.
func NewManual() *Manual {
	return &Manual{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{m: m, seq: m.seq, at: m.now.Add(d), delay: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

// Pending returns the delays of callbacks that have neither fired nor been
// stopped, in scheduling order.
func (m *Manual) Pending() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []time.Duration
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.delay)
		}
	}
	return out
}

// Advance moves the clock forward by d and runs every callback that became due,
// earliest first.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.f()
	}

	m.mu.Lock()
	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
}

// FireNext jumps to the earliest pending callback and runs it.
// It reports false when nothing is pending.
func (m *Manual) FireNext() (time.Duration, bool) {
	m.mu.Lock()
	t := m.earliestLocked()
	if t == nil {
		m.mu.Unlock()
		return 0, false
	}
	t.fired = true
	if t.at.After(m.now) {
		m.now = t.at
	}
	m.mu.Unlock()

	t.f()
	return t.delay, true
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.earliestLocked()
	if t == nil || t.at.After(target) {
		return nil
	}
	t.fired = true
	if t.at.After(m.now) {
		m.now = t.at
	}
	return t
}

func (m *Manual) earliestLocked() *manualTimer {
	m.timers = slices.DeleteFunc(m.timers, func(t *manualTimer) bool {
		return t.stopped || t.fired
	})
	if len(m.timers) == 0 {
		return nil
	}
	return slices.MinFunc(m.timers, func(a, b *manualTimer) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return a.seq - b.seq
	})
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
