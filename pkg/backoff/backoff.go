package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry.
// Implementations must be safe for concurrent use.
type Strategy interface {
	// Delay returns the wait before the retry that follows retry previous
	// failures; retry starts at 0.
	Delay(retry int) time.Duration
}

// Exponential grows the delay geometrically up to Max.
//
//	delay = min(Base * Multiplier^retry * (1 ± Jitter), Max)
//
// Zero fields fall back to Base=1s, Max=30s, Multiplier=2. Zero Jitter keeps
// the sequence deterministic.
type Exponential struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (e Exponential) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}

	base := e.Base
	if base <= 0 {
		base = time.Second
	}
	maxDelay := e.Max
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	mult := e.Multiplier
	if mult <= 0 {
		mult = 2
	}

	interval := float64(base) * math.Pow(mult, float64(retry))
	if e.Jitter > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.Jitter
	}
	if interval > float64(maxDelay) || math.IsInf(interval, 0) || math.IsNaN(interval) {
		return maxDelay
	}
	return time.Duration(interval)
}

// Linear adds Interval per retry up to Max.
type Linear struct {
	Interval time.Duration
	Max      time.Duration
}

func (l Linear) Delay(retry int) time.Duration {
	interval := l.Interval
	if interval <= 0 {
		interval = time.Second
	}
	maxDelay := l.Max
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	d := interval * time.Duration(max(retry, 0)+1)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// Fixed always waits Interval.
type Fixed time.Duration

func (f Fixed) Delay(int) time.Duration {
	return time.Duration(f)
}

// Reconnect is the live-connection policy: 1s doubling to a 30s cap, no jitter.
func Reconnect() Strategy {
	return Exponential{Base: time.Second, Max: 30 * time.Second, Multiplier: 2}
}

// Default is the outbound HTTP retry policy: Reconnect with 10% jitter.
func Default() Strategy {
	return Exponential{Base: time.Second, Max: 30 * time.Second, Multiplier: 2, Jitter: 0.1}
}
