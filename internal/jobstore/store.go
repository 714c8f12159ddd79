package jobstore

import (
	"context"
	"errors"

	"github.com/frameshare/api/internal/model"
)

var (
	// ErrNotFound is returned when no job exists for the given id.
	ErrNotFound = errors.New("job not found")
	// ErrTerminal is returned by mutations against a completed or failed job.
	ErrTerminal = errors.New("job already in terminal state")
)

// Store tracks job records. Jobs are mutated by exactly one writer (the task
// currently executing them) and read by many request handlers, so
// implementations only need to guard individual operations, not sequences.
type Store interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	SetRunning(ctx context.Context, id string) error
	// UpdateProgress raises the job's progress. Values below the current one
	// are kept as-is so observed progress is always non-decreasing; values are
	// clamped to [0, 99] while running.
	UpdateProgress(ctx context.Context, id string, progress int) error
	// Complete marks the job completed with progress forced to 100. resultURL
	// may be empty when the artifact was not mirrored to object storage.
	Complete(ctx context.Context, id, resultPath, resultURL string) error
	Fail(ctx context.Context, id, message string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.Job, error)
}
