// Package worker executes acquisition and transform jobs. The same Processor
// runs behind both execution backends: as a detached goroutine in direct mode
// and as an asynq handler in queued mode.
package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/frameshare/api/internal/client"
	"github.com/frameshare/api/internal/executor"
	"github.com/frameshare/api/internal/jobstore"
	"github.com/frameshare/api/internal/media"
	"github.com/frameshare/api/internal/model"
	"github.com/frameshare/api/internal/overlay"
	"github.com/frameshare/api/internal/websocket"
)

type Processor struct {
	store          jobstore.Store
	downloader     *media.Downloader
	compositor     *media.Compositor
	overlays       *overlay.Registry
	mediaDir       string
	transformedDir string
	maxDimension   int
	hub            *websocket.Hub
	storage        client.StorageClient // optional artifact mirror, may be nil
}

func NewProcessor(
	store jobstore.Store,
	downloader *media.Downloader,
	compositor *media.Compositor,
	overlays *overlay.Registry,
	mediaDir, transformedDir string,
	maxDimension int,
	hub *websocket.Hub,
	storage client.StorageClient,
) *Processor {
	return &Processor{
		store:          store,
		downloader:     downloader,
		compositor:     compositor,
		overlays:       overlays,
		mediaDir:       mediaDir,
		transformedDir: transformedDir,
		maxDimension:   maxDimension,
		hub:            hub,
		storage:        storage,
	}
}

// Run executes one job attempt. A returned error means the attempt failed
// and the backend decides whether to retry or mark the job failed.
func (p *Processor) Run(ctx context.Context, task executor.Task) error {
	switch task.Kind {
	case model.JobKindAcquisition:
		return p.processAcquisition(ctx, task.JobID)
	case model.JobKindTransform:
		return p.processTransform(ctx, task.JobID)
	default:
		return fmt.Errorf("unknown job kind %q", task.Kind)
	}
}

func (p *Processor) processAcquisition(ctx context.Context, jobID string) error {
	job, err := p.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		// Retried attempt of a job that already settled.
		return nil
	}

	log.Printf("Starting acquisition job %s", jobID)
	if err := p.store.SetRunning(ctx, jobID); err != nil {
		return err
	}

	outPath, err := p.downloader.Download(ctx, job.SourceRef, p.mediaDir, jobID, func(pct int) {
		p.updateProgress(ctx, jobID, pct)
	})
	if err != nil {
		return err
	}

	if err := p.store.Complete(ctx, jobID, outPath, ""); err != nil {
		return err
	}
	p.hub.BroadcastComplete(jobID, model.JobCreatedResponse{JobID: jobID, Status: model.JobStatusCompleted})
	log.Printf("Acquisition job %s completed", jobID)
	return nil
}

func (p *Processor) processTransform(ctx context.Context, jobID string) error {
	job, err := p.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	src, err := p.store.Get(ctx, job.SourceRef)
	if err != nil {
		return fmt.Errorf("source job %s: %w", job.SourceRef, err)
	}
	tmpl, ok := p.overlays.Get(job.OverlayID)
	if !ok {
		return fmt.Errorf("unknown overlay %q", job.OverlayID)
	}

	log.Printf("Starting transform job %s (source %s, overlay %s)", jobID, src.ID, tmpl.ID)
	if err := p.store.SetRunning(ctx, jobID); err != nil {
		return err
	}

	info, err := p.compositor.Probe(ctx, src.ResultPath)
	if err != nil {
		return err
	}
	w, h := media.TargetDims(info.Width, info.Height, p.maxDimension)

	scaledOverlay := filepath.Join(p.transformedDir, jobID+".overlay.png")
	// The intermediate scaled overlay is removed on success and failure alike.
	defer os.Remove(scaledOverlay)

	if err := p.compositor.ScaleImage(ctx, tmpl.AssetPath, scaledOverlay, w, h); err != nil {
		return err
	}

	outPath := filepath.Join(p.transformedDir, jobID+".mp4")
	err = p.compositor.Composite(ctx, src.ResultPath, scaledOverlay, outPath, w, h, info.Duration, func(pct int) {
		p.updateProgress(ctx, jobID, pct)
	})
	if err != nil {
		return err
	}

	resultURL := p.mirrorArtifact(ctx, jobID, outPath)

	if err := p.store.Complete(ctx, jobID, outPath, resultURL); err != nil {
		return err
	}
	p.hub.BroadcastComplete(jobID, model.JobCreatedResponse{JobID: jobID, Status: model.JobStatusCompleted})
	log.Printf("Transform job %s completed", jobID)
	return nil
}

// mirrorArtifact uploads the composited output to object storage when a
// client is configured. Mirror failures are logged, not fatal: the local
// artifact is the source of truth.
func (p *Processor) mirrorArtifact(ctx context.Context, jobID, path string) string {
	if p.storage == nil {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		log.Printf("Failed to open artifact for mirroring: %v", err)
		return ""
	}
	defer f.Close()

	url, err := p.storage.Upload(ctx, client.TransformedKey(jobID), f, "video/mp4")
	if err != nil {
		log.Printf("Failed to mirror artifact %s: %v", jobID, err)
		return ""
	}
	return url
}

func (p *Processor) updateProgress(ctx context.Context, jobID string, pct int) {
	if err := p.store.UpdateProgress(ctx, jobID, pct); err != nil && err != jobstore.ErrTerminal {
		log.Printf("Failed to update progress for %s: %v", jobID, err)
	}
	p.hub.BroadcastProgress(jobID, pct, model.JobStatusRunning)
}
