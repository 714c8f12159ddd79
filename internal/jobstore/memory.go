package jobstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/frameshare/api/internal/model"
)

// MemoryStore keeps job records in a mutex-guarded map. It is the store used
// in direct execution mode and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

func (s *MemoryStore) Create(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) SetRunning(ctx context.Context, id string) error {
	return s.mutate(id, func(job *model.Job) {
		if job.Status == model.JobStatusPending {
			job.Status = model.JobStatusRunning
			now := time.Now()
			job.StartedAt = &now
		}
	})
}

func (s *MemoryStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	return s.mutate(id, func(job *model.Job) {
		applyProgress(job, progress)
	})
}

func (s *MemoryStore) Complete(ctx context.Context, id, resultPath, resultURL string) error {
	return s.mutate(id, func(job *model.Job) {
		markCompleted(job, resultPath, resultURL)
	})
}

func (s *MemoryStore) Fail(ctx context.Context, id, message string) error {
	return s.mutate(id, func(job *model.Job) {
		markFailed(job, message)
	})
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	return jobs, nil
}

// mutate applies fn to the stored job under the write lock. Terminal jobs are
// rejected so a completed or failed job can never be resurrected.
func (s *MemoryStore) mutate(id string, fn func(*model.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrTerminal
	}
	fn(job)
	return nil
}

// Shared state transitions used by both store implementations.

func applyProgress(job *model.Job, progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 99 {
		progress = 99
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	if job.Status == model.JobStatusPending {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}
}

func markCompleted(job *model.Job, resultPath, resultURL string) {
	job.Status = model.JobStatusCompleted
	job.Progress = 100
	job.ResultPath = resultPath
	job.ResultURL = resultURL
	now := time.Now()
	job.CompletedAt = &now
}

func markFailed(job *model.Job, message string) {
	job.Status = model.JobStatusFailed
	job.Error = &message
	now := time.Now()
	job.CompletedAt = &now
}
