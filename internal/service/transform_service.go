package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/frameshare/api/internal/executor"
	"github.com/frameshare/api/internal/jobstore"
	"github.com/frameshare/api/internal/model"
	"github.com/frameshare/api/internal/overlay"
)

// TransformService creates and tracks jobs that composite an overlay template
// onto a completed acquisition artifact.
type TransformService struct {
	store    jobstore.Store
	backend  executor.Backend
	overlays *overlay.Registry
}

func NewTransformService(store jobstore.Store, backend executor.Backend, overlays *overlay.Registry) *TransformService {
	return &TransformService{
		store:    store,
		backend:  backend,
		overlays: overlays,
	}
}

// Transform validates the overlay id and the upstream acquisition, then
// creates a job and dispatches it. Both checks fail synchronously without
// creating a job.
func (s *TransformService) Transform(ctx context.Context, acquisitionJobID, overlayID string) (string, error) {
	if _, ok := s.overlays.Get(overlayID); !ok {
		return "", ErrUnknownOverlay
	}

	src, err := s.store.Get(ctx, acquisitionJobID)
	if err != nil {
		return "", err
	}
	if src.Kind != model.JobKindAcquisition {
		return "", jobstore.ErrNotFound
	}
	if src.Status != model.JobStatusCompleted {
		return "", ErrSourceNotReady
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		Kind:      model.JobKindTransform,
		Status:    model.JobStatusPending,
		SourceRef: acquisitionJobID,
		OverlayID: overlayID,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to save job: %w", err)
	}

	task := executor.Task{JobID: job.ID, Kind: model.JobKindTransform}
	if err := s.backend.Dispatch(ctx, task); err != nil {
		s.store.Fail(ctx, job.ID, "failed to dispatch job")
		return "", fmt.Errorf("failed to dispatch job: %w", err)
	}

	return job.ID, nil
}

// GetStatus returns the polling view of a transform job.
func (s *TransformService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Kind != model.JobKindTransform {
		return nil, jobstore.ErrNotFound
	}
	return model.StatusResponse(job), nil
}

// ArtifactPath resolves the composited output of a completed transform.
func (s *TransformService) ArtifactPath(ctx context.Context, jobID string) (string, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Kind != model.JobKindTransform || job.Status != model.JobStatusCompleted {
		return "", ErrArtifactNotReady
	}
	if _, err := os.Stat(job.ResultPath); err != nil {
		return "", ErrArtifactNotReady
	}
	return job.ResultPath, nil
}

// Overlays lists the selectable overlay templates.
func (s *TransformService) Overlays() []model.OverlayInfo {
	return s.overlays.List()
}
