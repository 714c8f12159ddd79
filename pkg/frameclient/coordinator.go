package frameclient

import (
	"context"
	"sync"
)

// OverlayNone means no overlay is selected; selecting it never starts a render.
const OverlayNone = ""

// TransformAPI is the slice of Client the coordinator needs.
type TransformAPI interface {
	Transform(ctx context.Context, acquisitionJobID, overlayID string) (string, error)
	PollTransform(ctx context.Context, jobID string, policy BackoffPolicy) (*JobStatus, error)
}

// CachedResult is a committed render: valid only while its OverlayID equals
// the current selection.
type CachedResult struct {
	OverlayID string
	JobID     string
	ResultRef string
}

// RenderCoordinator decides when overlay selection triggers a background
// transform, deduplicates concurrent renders of the same (source, overlay)
// pair, and discards results that arrive after the user has moved on.
//
// The state machine is keyed by renderKey = source + "|" + overlay. A result
// is committed only if its key still matches the pending key and the current
// selection at completion time; anything else is a stale render and is
// dropped. Without that compare-before-commit, a slow render could overwrite
// state for a selection the user no longer has active.
type RenderCoordinator struct {
	mu sync.Mutex
	wg sync.WaitGroup

	api     TransformAPI
	backoff BackoffPolicy

	source     string // acquisition job id, "" when nothing is loaded
	selected   string
	pendingKey string
	cached     *CachedResult
	busy       bool // an explicit user-initiated operation is in progress

	// OnResult fires after a render is committed; OnNotice carries non-fatal
	// render failures (the original artifact stays usable). Both may be nil
	// and are called without the lock held.
	OnResult func(CachedResult)
	OnNotice func(string)
}

func NewRenderCoordinator(api TransformAPI, backoff BackoffPolicy) *RenderCoordinator {
	return &RenderCoordinator{api: api, backoff: backoff}
}

func renderKey(source, overlayID string) string {
	return source + "|" + overlayID
}

// SetSource loads a new acquisition as the current source, dropping any
// cached or pending render from the previous one.
func (rc *RenderCoordinator) SetSource(acquisitionJobID string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.source = acquisitionJobID
	rc.selected = OverlayNone
	rc.cached = nil
	rc.pendingKey = ""
}

// Source returns the current acquisition job id.
func (rc *RenderCoordinator) Source() string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.source
}

// SetBusy marks an explicit blocking operation; while set, selection changes
// do not auto-trigger renders.
func (rc *RenderCoordinator) SetBusy(busy bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.busy = busy
}

// SelectOverlay records the new selection and, when warranted, starts a
// background render for it.
func (rc *RenderCoordinator) SelectOverlay(ctx context.Context, overlayID string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.selected = overlayID
	rc.evaluateLocked(ctx)
}

// Refresh re-evaluates the current selection, starting a render if none is
// cached or pending. Used by the share path to warm the cache for the next
// share without blocking the current one.
func (rc *RenderCoordinator) Refresh(ctx context.Context) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.evaluateLocked(ctx)
}

// evaluateLocked applies the selection rules. Caller holds the lock.
func (rc *RenderCoordinator) evaluateLocked(ctx context.Context) {
	key := renderKey(rc.source, rc.selected)

	// Already satisfied: the cached result is for this very selection.
	if rc.cached != nil && rc.cached.OverlayID == rc.selected {
		return
	}
	// Identical render already in flight: do not start a duplicate.
	if rc.pendingKey == key {
		return
	}

	// The selection changed away from whatever was cached or pending:
	// invalidate both atomically, before any new render is considered.
	rc.cached = nil
	rc.pendingKey = ""

	if rc.selected == OverlayNone || rc.source == "" || rc.busy {
		return
	}

	rc.pendingKey = key
	rc.wg.Add(1)
	go rc.render(ctx, key, rc.source, rc.selected)
}

func (rc *RenderCoordinator) render(ctx context.Context, key, source, overlayID string) {
	defer rc.wg.Done()

	jobID, err := rc.api.Transform(ctx, source, overlayID)
	if err != nil {
		rc.renderFailed(key, err)
		return
	}
	status, err := rc.api.PollTransform(ctx, jobID, rc.backoff)
	if err != nil {
		rc.renderFailed(key, err)
		return
	}
	if status.Status == StatusFailed {
		msg := "transform failed"
		if status.Error != nil {
			msg = *status.Error
		}
		rc.renderFailed(key, &APIError{Code: "JOB_FAILED", Message: msg})
		return
	}

	rc.commit(key, overlayID, jobID)
}

// commit is the compare-before-commit step: the result is kept only when the
// render's key still matches both the pending key and the live selection.
func (rc *RenderCoordinator) commit(key, overlayID, jobID string) {
	rc.mu.Lock()
	if rc.pendingKey != key || renderKey(rc.source, rc.selected) != key {
		// Stale: the user switched away while this render ran.
		rc.mu.Unlock()
		return
	}
	result := CachedResult{
		OverlayID: overlayID,
		JobID:     jobID,
		ResultRef: "/api/transformed-artifact/" + jobID,
	}
	rc.cached = &result
	rc.pendingKey = ""
	onResult := rc.OnResult
	rc.mu.Unlock()

	if onResult != nil {
		onResult(result)
	}
}

func (rc *RenderCoordinator) renderFailed(key string, err error) {
	rc.mu.Lock()
	// Only this render's own pending key is cleared; a newer render started
	// after a selection switch keeps its slot.
	if rc.pendingKey == key {
		rc.pendingKey = ""
	}
	onNotice := rc.OnNotice
	rc.mu.Unlock()

	if onNotice != nil {
		onNotice("frame render failed: " + err.Error())
	}
}

// CachedResult returns the committed render for the current selection, if any.
func (rc *RenderCoordinator) CachedResult() (CachedResult, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.cached == nil || rc.cached.OverlayID != rc.selected {
		return CachedResult{}, false
	}
	return *rc.cached, true
}

// Wait blocks until all in-flight renders finish. Intended for shutdown and
// tests; results are still subject to the staleness check.
func (rc *RenderCoordinator) Wait() {
	rc.wg.Wait()
}
