package frameclient

import (
	"context"
	"errors"
	"fmt"
)

// Platform share outcomes.
var (
	// ErrShareUnsupported means the platform has no native share primitive;
	// callers fall back to a non-native path.
	ErrShareUnsupported = errors.New("native sharing not supported")
	// ErrShareCanceled means the user dismissed the share sheet. A normal,
	// silent outcome, not an error the orchestrator surfaces.
	ErrShareCanceled = errors.New("share canceled")
	// ErrNoSource means no acquisition is loaded to share.
	ErrNoSource = errors.New("no source loaded")
)

// ShareSink is the native share primitive. Implementations are only valid
// within the short gesture window after a user action, so the orchestrator
// calls Share as the direct continuation of the artifact fetch, never after
// waiting on a transform.
type ShareSink interface {
	Share(ctx context.Context, filename string, data []byte) error
}

// ArtifactAPI is the slice of Client the orchestrator needs.
type ArtifactAPI interface {
	FetchArtifact(ctx context.Context, jobID string) ([]byte, error)
	FetchTransformed(ctx context.Context, jobID string) ([]byte, error)
}

// ShareOrchestrator reconciles the platform's gesture window with slow
// renders: it shares the best artifact that is ready right now and warms the
// cache in the background so the next share gets the framed version.
type ShareOrchestrator struct {
	api   ArtifactAPI
	coord *RenderCoordinator
	sink  ShareSink
}

func NewShareOrchestrator(api ArtifactAPI, coord *RenderCoordinator, sink ShareSink) *ShareOrchestrator {
	return &ShareOrchestrator{api: api, coord: coord, sink: sink}
}

// Share runs one share action. It never blocks on a not-yet-complete
// transform: the cached framed result is used when its key matches the
// current selection, the untransformed source otherwise.
func (so *ShareOrchestrator) Share(ctx context.Context) error {
	source := so.coord.Source()
	if source == "" {
		return ErrNoSource
	}

	var data []byte
	var name string
	var err error

	if cached, ok := so.coord.CachedResult(); ok {
		data, err = so.api.FetchTransformed(ctx, cached.JobID)
		name = cached.JobID + ".mp4"
		if errors.Is(err, ErrNotFound) {
			// The framed artifact expired server-side; fall back to the
			// original rather than failing the share.
			data, err = so.api.FetchArtifact(ctx, source)
			name = source + ".mp4"
		}
	} else {
		data, err = so.api.FetchArtifact(ctx, source)
		name = source + ".mp4"
		// No framed result yet: kick off a background render so a later
		// share is fast. Its result goes through the coordinator's
		// staleness check like any other.
		so.coord.Refresh(context.WithoutCancel(ctx))
	}
	if err != nil {
		return fmt.Errorf("failed to fetch artifact: %w", err)
	}

	// Direct continuation of the user action; no long await in between.
	err = so.sink.Share(ctx, name, data)
	if errors.Is(err, ErrShareCanceled) {
		return nil
	}
	return err
}
