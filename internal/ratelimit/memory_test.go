package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestSlidingWindowBoundary(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	l := NewSlidingWindow(3, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "client")
		if err != nil || !ok {
			t.Fatalf("request %d: allowed=%v err=%v", i+1, ok, err)
		}
	}

	// The (N+1)-th request inside the window is denied.
	ok, _ := l.Allow(ctx, "client")
	if ok {
		t.Fatal("4th request within window must be denied")
	}

	rem, _ := l.Remaining(ctx, "client")
	if rem != 0 {
		t.Fatalf("remaining = %d, want 0", rem)
	}
	reset, _ := l.ResetSeconds(ctx, "client")
	if reset <= 0 || reset > 61 {
		t.Fatalf("resetSeconds = %d, want (0, 61]", reset)
	}

	// Another client is unaffected.
	if ok, _ := l.Allow(ctx, "other"); !ok {
		t.Fatal("independent client must be admitted")
	}

	// After the window passes, the client is admitted again.
	now = now.Add(time.Minute + time.Second)
	if ok, _ := l.Allow(ctx, "client"); !ok {
		t.Fatal("request after window must be admitted")
	}
}

func TestSlidingWindowSlides(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	l := NewSlidingWindow(2, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow(ctx, "c") // t=0
	now = now.Add(40 * time.Second)
	l.Allow(ctx, "c") // t=40

	if ok, _ := l.Allow(ctx, "c"); ok {
		t.Fatal("limit reached, must deny")
	}

	// t=65: the t=0 hit has left the window, one slot frees up.
	now = now.Add(25 * time.Second)
	if ok, _ := l.Allow(ctx, "c"); !ok {
		t.Fatal("slot freed by sliding window must be admitted")
	}
	// The t=40 hit still counts.
	if ok, _ := l.Allow(ctx, "c"); ok {
		t.Fatal("window still holds two hits, must deny")
	}
}

func TestSlidingWindowRemainingFresh(t *testing.T) {
	l := NewSlidingWindow(5, time.Minute)
	rem, err := l.Remaining(context.Background(), "new")
	if err != nil || rem != 5 {
		t.Fatalf("remaining for fresh key = %d (err %v), want 5", rem, err)
	}
	reset, _ := l.ResetSeconds(context.Background(), "new")
	if reset != 0 {
		t.Fatalf("resetSeconds for fresh key = %d, want 0", reset)
	}
}
