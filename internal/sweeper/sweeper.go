// Package sweeper deletes artifacts and job records past their TTL. Eligibility
// keys off last-modified time with a TTL well above any realistic job or
// download duration, so a file a running job still writes to is never removed.
package sweeper

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/frameshare/api/internal/client"
	"github.com/frameshare/api/internal/jobstore"
	"github.com/frameshare/api/internal/model"
)

type Sweeper struct {
	store    jobstore.Store
	storage  client.StorageClient // optional artifact mirror, may be nil
	dirs     []string
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func New(store jobstore.Store, storage client.StorageClient, dirs []string, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		storage:  storage,
		dirs:     dirs,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			files, jobs := s.SweepOnce(ctx)
			if files > 0 || jobs > 0 {
				log.Printf("Sweeper removed %d expired files, %d job records", files, jobs)
			}
		}
	}
}

// SweepOnce deletes expired files in the tracked directories and job records
// older than the TTL. It returns the counts of removed files and records.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, int) {
	cutoff := s.now().Add(-s.ttl)
	removedFiles := 0

	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				path := filepath.Join(dir, entry.Name())
				if err := os.Remove(path); err != nil {
					log.Printf("Sweeper failed to remove %s: %v", path, err)
					continue
				}
				removedFiles++
			}
		}
	}

	removedJobs := 0
	jobs, err := s.store.List(ctx)
	if err != nil {
		log.Printf("Sweeper failed to list jobs: %v", err)
		return removedFiles, 0
	}
	for _, job := range jobs {
		if job.CreatedAt.Before(cutoff) {
			if err := s.store.Delete(ctx, job.ID); err != nil {
				log.Printf("Sweeper failed to delete job %s: %v", job.ID, err)
				continue
			}
			removedJobs++
			s.deleteMirror(ctx, job)
		}
	}

	return removedFiles, removedJobs
}

// deleteMirror removes the mirrored copy of an expired transform artifact so
// the bucket follows the same TTL as the local store. ResultURL is only set
// when the artifact was mirrored. Mirror errors are logged, not fatal, same
// as on upload.
func (s *Sweeper) deleteMirror(ctx context.Context, job *model.Job) {
	if s.storage == nil || job.Kind != model.JobKindTransform || job.ResultURL == "" {
		return
	}
	key := client.TransformedKey(job.ID)
	if err := s.storage.Delete(ctx, key); err != nil {
		log.Printf("Sweeper failed to delete mirrored artifact %s: %v", key, err)
	}
}
