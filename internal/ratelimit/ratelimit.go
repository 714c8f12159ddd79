// Package ratelimit gates expensive job-creating operations with a per-client
// sliding window. Polling and artifact retrieval are never throttled.
package ratelimit

import (
	"context"
	"time"
)

// Limiter counts requests per client key within a sliding window.
type Limiter interface {
	// Allow records and admits the request if fewer than the limit of
	// requests happened within the window. Check and record are one atomic
	// step so two concurrent requests cannot both slip past the limit.
	Allow(ctx context.Context, key string) (bool, error)
	// Remaining reports how many requests the key may still make.
	Remaining(ctx context.Context, key string) (int, error)
	// ResetSeconds reports how long until the oldest counted request leaves
	// the window. Zero when the key is under the limit.
	ResetSeconds(ctx context.Context, key string) (int, error)
}

func secondsUntil(oldest, now time.Time, window time.Duration) int {
	s := int(oldest.Add(window).Sub(now).Seconds())
	if s < 0 {
		return 0
	}
	// Round up so callers never retry a moment too early.
	return s + 1
}
