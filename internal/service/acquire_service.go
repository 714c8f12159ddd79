package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frameshare/api/internal/executor"
	"github.com/frameshare/api/internal/jobstore"
	"github.com/frameshare/api/internal/model"
)

// AcquireService creates and tracks jobs that produce a local media artifact
// from a remote source or an upload.
type AcquireService struct {
	store        jobstore.Store
	backend      executor.Backend
	mediaDir     string
	allowedHosts []string
}

func NewAcquireService(store jobstore.Store, backend executor.Backend, mediaDir string, allowedHosts []string) *AcquireService {
	return &AcquireService{
		store:        store,
		backend:      backend,
		mediaDir:     mediaDir,
		allowedHosts: allowedHosts,
	}
}

// Acquire validates the remote URL against the source allow-list, then
// creates a job and dispatches it. Unsupported sources fail synchronously
// without creating a job.
func (s *AcquireService) Acquire(ctx context.Context, rawURL string) (string, error) {
	if !s.SupportedSource(rawURL) {
		return "", ErrUnsupportedSource
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		Kind:      model.JobKindAcquisition,
		Status:    model.JobStatusPending,
		SourceRef: rawURL,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to save job: %w", err)
	}

	task := executor.Task{JobID: job.ID, Kind: model.JobKindAcquisition}
	if err := s.backend.Dispatch(ctx, task); err != nil {
		s.store.Fail(ctx, job.ID, "failed to dispatch job")
		return "", fmt.Errorf("failed to dispatch job: %w", err)
	}

	return job.ID, nil
}

// AcceptUpload copies a client-supplied file into the artifact store and
// marks the job completed immediately; uploads never enter running.
func (s *AcquireService) AcceptUpload(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".mp4" && ext != ".mov" && ext != ".webm" {
		return "", ErrUnsupportedMimeType
	}

	jobID := uuid.New().String()
	destPath := filepath.Join(s.mediaDir, jobID+ext)

	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}
	written, err := io.Copy(dest, r)
	dest.Close()
	if err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	if written == 0 {
		os.Remove(destPath)
		return "", ErrEmptyUpload
	}

	job := &model.Job{
		ID:        jobID,
		Kind:      model.JobKindAcquisition,
		Status:    model.JobStatusPending,
		SourceRef: filename,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("failed to save job: %w", err)
	}
	if err := s.store.Complete(ctx, jobID, destPath, ""); err != nil {
		return "", fmt.Errorf("failed to complete job: %w", err)
	}

	return jobID, nil
}

// GetStatus returns the polling view of an acquisition job.
func (s *AcquireService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Kind != model.JobKindAcquisition {
		return nil, jobstore.ErrNotFound
	}
	return model.StatusResponse(job), nil
}

// ArtifactPath resolves the local artifact of a completed acquisition.
func (s *AcquireService) ArtifactPath(ctx context.Context, jobID string) (string, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Kind != model.JobKindAcquisition || job.Status != model.JobStatusCompleted {
		return "", ErrArtifactNotReady
	}
	if _, err := os.Stat(job.ResultPath); err != nil {
		// Swept by TTL; a retrievable 404, not a crash.
		return "", ErrArtifactNotReady
	}
	return job.ResultPath, nil
}

// SupportedSource checks the URL host against the allow-list, matching
// either the host itself or any subdomain of an allowed entry.
func (s *AcquireService) SupportedSource(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range s.allowedHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
