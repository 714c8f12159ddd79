package frameclient

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned when a job never reaches a terminal state within
// the policy's ceiling. Distinct from a job failure: the job may still be
// running server-side.
var ErrPollTimeout = errors.New("timed out waiting for job")

// BackoffPolicy bounds a polling loop: start at Interval, multiply after each
// poll up to MaxInterval, give up after MaxWait total.
type BackoffPolicy struct {
	Interval    time.Duration
	Multiplier  float64
	MaxInterval time.Duration
	MaxWait     time.Duration
}

// DefaultBackoff suits transform jobs that run seconds to minutes.
var DefaultBackoff = BackoffPolicy{
	Interval:    time.Second,
	Multiplier:  1.5,
	MaxInterval: 10 * time.Second,
	MaxWait:     5 * time.Minute,
}

// PollAcquisition polls until the acquisition job is terminal.
func (c *Client) PollAcquisition(ctx context.Context, jobID string, policy BackoffPolicy) (*JobStatus, error) {
	return poll(ctx, policy, func(ctx context.Context) (*JobStatus, error) {
		return c.AcquisitionStatus(ctx, jobID)
	})
}

// PollTransform polls until the transform job is terminal.
func (c *Client) PollTransform(ctx context.Context, jobID string, policy BackoffPolicy) (*JobStatus, error) {
	return poll(ctx, policy, func(ctx context.Context) (*JobStatus, error) {
		return c.TransformStatus(ctx, jobID)
	})
}

// poll returns the first terminal status observed. A failed job is returned
// with a nil error; callers inspect Status. ErrPollTimeout means no terminal
// state arrived within MaxWait.
func poll(ctx context.Context, policy BackoffPolicy, fetch func(context.Context) (*JobStatus, error)) (*JobStatus, error) {
	deadline := time.Now().Add(policy.MaxWait)
	interval := policy.Interval

	for {
		status, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if status.Status == StatusCompleted || status.Status == StatusFailed {
			return status, nil
		}

		if time.Now().Add(interval).After(deadline) {
			return nil, ErrPollTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		interval = time.Duration(float64(interval) * policy.Multiplier)
		if interval > policy.MaxInterval {
			interval = policy.MaxInterval
		}
	}
}
