package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frameshare/api/internal/model"
)

// RedisStore keeps job records as JSON in Redis so that queue workers running
// in other processes observe the same state as the API. Records carry a TTL
// matching the artifact TTL; the sweeper removes them alongside artifacts.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: redisClient, ttl: ttl}
}

// redisJob persists ResultPath, which the wire model deliberately omits.
type redisJob struct {
	model.Job
	ResultPath string `json:"resultPath,omitempty"`
}

func jobKey(id string) string { return fmt.Sprintf("job:%s", id) }

const jobIndexKey = "jobs:index"

func (s *RedisStore) Create(ctx context.Context, job *model.Job) error {
	if err := s.save(ctx, job); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, jobIndexKey, job.ID).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec redisJob
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	job := rec.Job
	job.ResultPath = rec.ResultPath
	return &job, nil
}

func (s *RedisStore) SetRunning(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(job *model.Job) {
		if job.Status == model.JobStatusPending {
			job.Status = model.JobStatusRunning
			now := time.Now()
			job.StartedAt = &now
		}
	})
}

func (s *RedisStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	return s.mutate(ctx, id, func(job *model.Job) {
		applyProgress(job, progress)
	})
}

func (s *RedisStore) Complete(ctx context.Context, id, resultPath, resultURL string) error {
	return s.mutate(ctx, id, func(job *model.Job) {
		markCompleted(job, resultPath, resultURL)
	})
}

func (s *RedisStore) Fail(ctx context.Context, id, message string) error {
	return s.mutate(ctx, id, func(job *model.Job) {
		markFailed(job, message)
	})
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, jobKey(id)).Err(); err != nil {
		return err
	}
	return s.redis.SRem(ctx, jobIndexKey, id).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]*model.Job, error) {
	ids, err := s.redis.SMembers(ctx, jobIndexKey).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err == ErrNotFound {
			// Record expired; drop the dangling index entry.
			s.redis.SRem(ctx, jobIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// mutate is a read-modify-write. The single-writer invariant (only the task
// executing a job mutates it) makes this safe without WATCH.
func (s *RedisStore) mutate(ctx context.Context, id string, fn func(*model.Job)) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrTerminal
	}
	fn(job)
	return s.save(ctx, job)
}

func (s *RedisStore) save(ctx context.Context, job *model.Job) error {
	rec := redisJob{Job: *job, ResultPath: job.ResultPath}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, s.ttl).Err()
}
