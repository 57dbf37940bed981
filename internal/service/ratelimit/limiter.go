package ratelimit

import (
	"sync"
	"time"
)

const (
	// cooldown imposed after a failed check, to stop thundering-herd retries.
	cooldown = time.Second

	maxWindow = time.Hour
)

// Caps holds the per-window request caps for one exchange. A zero cap
// disables that window.
type Caps struct {
	PerSecond int
	PerMinute int
	PerHour   int
}

type state struct {
	stamps       []time.Time // ascending
	blockedUntil time.Time
}

// Limiter enforces three nested sliding windows per exchange. It is a
// pure admission-control primitive: CanSend peeks, Record consumes, and
// callers are responsible for sleeping WaitTime between checks.
type Limiter struct {
	mu       sync.Mutex
	caps     map[string]Caps
	fallback Caps
	m        map[string]*state
	clock    func() time.Time
}

type Option func(*Limiter)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.clock = now }
}

// WithCaps sets the caps for a named exchange.
func WithCaps(exchange string, caps Caps) Option {
	return func(l *Limiter) { l.caps[exchange] = caps }
}

// WithDefaultCaps sets the caps applied to exchanges without their own.
func WithDefaultCaps(caps Caps) Option {
	return func(l *Limiter) { l.fallback = caps }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		caps:     make(map[string]Caps),
		fallback: Caps{PerSecond: 10, PerMinute: 300, PerHour: 5000},
		m:        make(map[string]*state),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CanSend reports whether a request to the exchange is admissible now.
// A failed check arms a short cooldown block regardless of window counts.
func (l *Limiter) CanSend(exchange string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	s := l.get(exchange)
	if now.Before(s.blockedUntil) {
		return false
	}

	s.prune(now)
	caps := l.capsFor(exchange)
	if atCap(s.stamps, now, time.Second, caps.PerSecond) ||
		atCap(s.stamps, now, time.Minute, caps.PerMinute) ||
		atCap(s.stamps, now, time.Hour, caps.PerHour) {
		s.blockedUntil = now.Add(cooldown)
		return false
	}
	return true
}

// Record appends the current time to the exchange's request history. It
// never checks limits; callers must CanSend first.
func (l *Limiter) Record(exchange string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.get(exchange)
	s.stamps = append(s.stamps, l.clock())
}

// WaitTime returns how long to wait before the next request can be sent:
// the maximum over the three windows of the time until the oldest
// in-window timestamp exits, floored at any active cooldown block.
func (l *Limiter) WaitTime(exchange string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	s := l.get(exchange)
	s.prune(now)
	caps := l.capsFor(exchange)

	wait := time.Duration(0)
	if until := s.blockedUntil.Sub(now); until > wait {
		wait = until
	}
	windows := []struct {
		window time.Duration
		limit  int
	}{
		{time.Second, caps.PerSecond},
		{time.Minute, caps.PerMinute},
		{time.Hour, caps.PerHour},
	}
	for _, w := range windows {
		if d := windowWait(s.stamps, now, w.window, w.limit); d > wait {
			wait = d
		}
	}
	return wait
}

func (l *Limiter) get(exchange string) *state {
	s, ok := l.m[exchange]
	if !ok {
		s = &state{}
		l.m[exchange] = s
	}
	return s
}

func (l *Limiter) capsFor(exchange string) Caps {
	if c, ok := l.caps[exchange]; ok {
		return c
	}
	return l.fallback
}

func (s *state) prune(now time.Time) {
	cutoff := now.Add(-maxWindow)
	i := 0
	for i < len(s.stamps) && !s.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.stamps = append(s.stamps[:0], s.stamps[i:]...)
	}
}

func atCap(stamps []time.Time, now time.Time, window time.Duration, limit int) bool {
	if limit <= 0 {
		return false
	}
	return countSince(stamps, now.Add(-window)) >= limit
}

// windowWait is the time until the oldest in-window timestamp exits the
// window, zero when the window has headroom.
func windowWait(stamps []time.Time, now time.Time, window time.Duration, limit int) time.Duration {
	if limit <= 0 {
		return 0
	}
	cutoff := now.Add(-window)
	if countSince(stamps, cutoff) < limit {
		return 0
	}
	for _, ts := range stamps {
		if ts.After(cutoff) {
			return ts.Add(window).Sub(now)
		}
	}
	return 0
}

func countSince(stamps []time.Time, cutoff time.Time) int {
	n := 0
	for i := len(stamps) - 1; i >= 0; i-- {
		if !stamps[i].After(cutoff) {
			break
		}
		n++
	}
	return n
}
