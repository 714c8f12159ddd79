package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow is the in-memory limiter used in direct mode and tests. Each
// key holds the timestamps of its requests inside the window; stale entries
// are pruned on every operation.
type SlidingWindow struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

func (l *SlidingWindow) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.prune(key, now)
	if len(kept) >= l.max {
		return false, nil
	}
	l.hits[key] = append(kept, now)
	return true, nil
}

func (l *SlidingWindow) Remaining(ctx context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.prune(key, l.now())
	l.hits[key] = kept
	r := l.max - len(kept)
	if r < 0 {
		r = 0
	}
	return r, nil
}

func (l *SlidingWindow) ResetSeconds(ctx context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.prune(key, now)
	l.hits[key] = kept
	if len(kept) < l.max {
		return 0, nil
	}
	return secondsUntil(kept[0], now, l.window), nil
}

// prune must be called with the lock held.
func (l *SlidingWindow) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	stamps := l.hits[key]
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	kept := stamps[i:]
	if len(kept) == 0 {
		delete(l.hits, key)
		return nil
	}
	return kept
}
