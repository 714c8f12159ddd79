// Package executor selects, once at startup, how jobs are run: enqueued to an
// asynq worker pool backed by Redis, or spawned as detached goroutines in the
// serving process when no broker is reachable. Callers above this boundary see
// one contract; only durability and retry semantics differ between the modes.
package executor

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frameshare/api/internal/model"
)

// Task identifies one job execution request.
type Task struct {
	JobID string        `json:"jobId"`
	Kind  model.JobKind `json:"kind"`
}

// Runner executes a task to completion. Run updates job progress and marks
// completion itself; a returned error means the attempt failed and the job has
// not been marked terminal.
type Runner interface {
	Run(ctx context.Context, task Task) error
}

// Backend dispatches job execution requests.
type Backend interface {
	Dispatch(ctx context.Context, task Task) error
	Mode() string
}

// Execution modes.
const (
	ModeDirect = "direct"
	ModeQueued = "queued"
)

// Probe checks broker reachability with a bounded timeout. It runs once at
// process start; the chosen mode is fixed for the process lifetime.
func Probe(redisClient *redis.Client, timeout time.Duration) bool {
	if redisClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Execution broker unreachable, falling back to direct mode: %v", err)
		return false
	}
	return true
}
