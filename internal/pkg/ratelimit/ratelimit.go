package ratelimit

import (
	"sync"
	"time"
)

// Limit bounds one source to Max requests per trailing Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// SlidingWindow is a per-source sliding-window request counter. A rejected
// request is not queued: Allow returns false immediately and the caller
// decides whether to wait for the window to roll. One instance is shared by
// all accounts of a given source and is safe for concurrent use.
type SlidingWindow struct {
	mu     sync.Mutex
	def    Limit
	perSrc map[string]Limit
	stamps map[string][]time.Time
	now    func() time.Time
}

// NewSlidingWindow creates a limiter with the given default limit.
func NewSlidingWindow(def Limit) *SlidingWindow {
	if def.Max <= 0 {
		def.Max = 10
	}
	if def.Window <= 0 {
		def.Window = time.Second
	}
	return &SlidingWindow{
		def:    def,
		perSrc: make(map[string]Limit),
		stamps: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// SetLimit overrides the limit for one source. Intended for startup wiring.
func (l *SlidingWindow) SetLimit(source string, limit Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit.Max > 0 && limit.Window > 0 {
		l.perSrc[source] = limit
	}
}

// Allow records and permits the request if fewer than the source's Max
// timestamps fall within the trailing window. Stale timestamps are pruned
// from the front of the queue on every check.
func (l *SlidingWindow) Allow(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.perSrc[source]
	if !ok {
		limit = l.def
	}

	now := l.now()
	cutoff := now.Add(-limit.Window)

	q := l.stamps[source]
	idx := 0
	for idx < len(q) && !q[idx].After(cutoff) {
		idx++
	}
	q = q[idx:]

	if len(q) >= limit.Max {
		l.stamps[source] = q
		return false
	}

	l.stamps[source] = append(q, now)
	return true
}

// Pending returns how many timestamps are currently inside the window for a
// source. Used by metrics and tests.
func (l *SlidingWindow) Pending(source string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.perSrc[source]
	if !ok {
		limit = l.def
	}
	cutoff := l.now().Add(-limit.Window)
	n := 0
	for _, ts := range l.stamps[source] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
