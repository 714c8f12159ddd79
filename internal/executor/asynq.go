package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/frameshare/api/internal/jobstore"
	"github.com/frameshare/api/internal/model"
)

// Asynq task types, one per job kind.
const (
	TaskTypeAcquire   = "acquire:process"
	TaskTypeTransform = "transform:process"
)

const maxRetry = 3

// AsynqBackend enqueues tasks to Redis-backed queues. Workers pull from the
// same queues, so execution scales horizontally and failed attempts are
// retried with asynq's exponential backoff up to maxRetry.
type AsynqBackend struct {
	client *asynq.Client
}

func NewAsynqBackend(client *asynq.Client) *AsynqBackend {
	return &AsynqBackend{client: client}
}

func (b *AsynqBackend) Mode() string { return ModeQueued }

func (b *AsynqBackend) Dispatch(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	taskType := TaskTypeAcquire
	queue := "acquire"
	if task.Kind == model.JobKindTransform {
		taskType = TaskTypeTransform
		queue = "transform"
	}

	_, err = b.client.EnqueueContext(ctx, asynq.NewTask(taskType, payload),
		asynq.Queue(queue),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// RunWorkers starts the asynq worker server and blocks until it stops. The
// job is only marked failed once the final attempt has been exhausted, so a
// retried attempt never resurrects a terminal record.
func RunWorkers(opt asynq.RedisClientOpt, runner Runner, store jobstore.Store, concurrency int) error {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"acquire":   4,
			"transform": 6,
		},
	})

	handle := func(kind model.JobKind) asynq.HandlerFunc {
		return func(ctx context.Context, t *asynq.Task) error {
			var task Task
			if err := json.Unmarshal(t.Payload(), &task); err != nil {
				return fmt.Errorf("failed to unmarshal task payload: %w", err)
			}
			task.Kind = kind

			if err := runner.Run(ctx, task); err != nil {
				retried, _ := asynq.GetRetryCount(ctx)
				max, _ := asynq.GetMaxRetry(ctx)
				if retried >= max {
					if ferr := store.Fail(ctx, task.JobID, err.Error()); ferr != nil && ferr != jobstore.ErrTerminal {
						log.Printf("Failed to mark job %s as failed: %v", task.JobID, ferr)
					}
				}
				return err
			}
			return nil
		}
	}

	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeAcquire, handle(model.JobKindAcquisition))
	mux.Handle(TaskTypeTransform, handle(model.JobKindTransform))

	return srv.Run(mux)
}
