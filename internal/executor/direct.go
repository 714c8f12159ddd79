package executor

import (
	"context"
	"fmt"
	"log"

	"github.com/frameshare/api/internal/jobstore"
)

// DirectBackend runs each task as a detached goroutine in the serving
// process. Single attempt: a failed run marks the job failed immediately, no
// retries. Used when no queue broker is reachable.
type DirectBackend struct {
	runner Runner
	store  jobstore.Store
}

func NewDirectBackend(runner Runner, store jobstore.Store) *DirectBackend {
	return &DirectBackend{runner: runner, store: store}
}

func (b *DirectBackend) Mode() string { return ModeDirect }

// Dispatch returns immediately; the request handler never waits on execution.
func (b *DirectBackend) Dispatch(ctx context.Context, task Task) error {
	go func() {
		// Detached from the request context on purpose: the job outlives
		// the request that created it.
		runCtx := context.Background()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Job %s panicked: %v", task.JobID, r)
				b.store.Fail(runCtx, task.JobID, fmt.Sprintf("internal error: %v", r))
			}
		}()
		if err := b.runner.Run(runCtx, task); err != nil {
			log.Printf("Job %s failed: %v", task.JobID, err)
			if ferr := b.store.Fail(runCtx, task.JobID, err.Error()); ferr != nil && ferr != jobstore.ErrTerminal {
				log.Printf("Failed to mark job %s as failed: %v", task.JobID, ferr)
			}
		}
	}()
	return nil
}
