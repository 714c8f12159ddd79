package frameclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeTransformAPI hands out job ids and blocks each poll until the test
// releases it, so tests control completion order exactly.
type fakeTransformAPI struct {
	mu         sync.Mutex
	nextID     int
	transforms int
	results    map[string]chan *JobStatus
	byOverlay  map[string]string
}

func newFakeTransformAPI() *fakeTransformAPI {
	return &fakeTransformAPI{
		results:   make(map[string]chan *JobStatus),
		byOverlay: make(map[string]string),
	}
}

func (f *fakeTransformAPI) Transform(ctx context.Context, acquisitionJobID, overlayID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transforms++
	f.nextID++
	id := fmt.Sprintf("tr-%d", f.nextID)
	f.results[id] = make(chan *JobStatus, 1)
	f.byOverlay[overlayID] = id
	return id, nil
}

func (f *fakeTransformAPI) PollTransform(ctx context.Context, jobID string, policy BackoffPolicy) (*JobStatus, error) {
	f.mu.Lock()
	ch := f.results[jobID]
	f.mu.Unlock()
	select {
	case status := <-ch:
		return status, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransformAPI) transformCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transforms
}

// waitForJob blocks until a Transform call for overlayID has been registered.
func (f *fakeTransformAPI) waitForJob(t *testing.T, overlayID string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		id, ok := f.byOverlay[overlayID]
		f.mu.Unlock()
		if ok {
			return id
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no transform started for overlay %q", overlayID)
	return ""
}

func (f *fakeTransformAPI) complete(t *testing.T, overlayID string) string {
	t.Helper()
	id := f.waitForJob(t, overlayID)
	f.mu.Lock()
	ch := f.results[id]
	f.mu.Unlock()
	ch <- &JobStatus{JobID: id, Status: StatusCompleted, Progress: 100}
	return id
}

func (f *fakeTransformAPI) fail(t *testing.T, overlayID, msg string) {
	t.Helper()
	id := f.waitForJob(t, overlayID)
	f.mu.Lock()
	ch := f.results[id]
	f.mu.Unlock()
	ch <- &JobStatus{JobID: id, Status: StatusFailed, Error: &msg}
}

func TestCoordinatorCommitsCompletedRender(t *testing.T) {
	api := newFakeTransformAPI()
	rc := NewRenderCoordinator(api, DefaultBackoff)

	var mu sync.Mutex
	var committed []CachedResult
	rc.OnResult = func(r CachedResult) {
		mu.Lock()
		committed = append(committed, r)
		mu.Unlock()
	}

	rc.SetSource("acq-1")
	rc.SelectOverlay(context.Background(), "gold")
	jobID := api.complete(t, "gold")
	rc.Wait()

	result, ok := rc.CachedResult()
	if !ok {
		t.Fatal("expected a cached result after completion")
	}
	if result.OverlayID != "gold" || result.JobID != jobID {
		t.Errorf("cached = %+v, want overlay gold job %s", result, jobID)
	}
	if want := "/api/transformed-artifact/" + jobID; result.ResultRef != want {
		t.Errorf("ResultRef = %q, want %q", result.ResultRef, want)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(committed) != 1 || committed[0].JobID != jobID {
		t.Errorf("OnResult calls = %+v, want one for %s", committed, jobID)
	}
}

func TestCoordinatorDropsStaleRender(t *testing.T) {
	api := newFakeTransformAPI()
	rc := NewRenderCoordinator(api, DefaultBackoff)

	var mu sync.Mutex
	var committed []CachedResult
	rc.OnResult = func(r CachedResult) {
		mu.Lock()
		committed = append(committed, r)
		mu.Unlock()
	}

	rc.SetSource("acq-1")
	rc.SelectOverlay(context.Background(), "gold")
	api.waitForJob(t, "gold")

	// User switches before the first render finishes.
	rc.SelectOverlay(context.Background(), "neon")
	neonJob := api.complete(t, "neon")
	// The old render finishes late; its result must be discarded.
	api.complete(t, "gold")
	rc.Wait()

	result, ok := rc.CachedResult()
	if !ok {
		t.Fatal("expected the current selection's result to be cached")
	}
	if result.OverlayID != "neon" || result.JobID != neonJob {
		t.Errorf("cached = %+v, want the neon render %s", result, neonJob)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(committed) != 1 || committed[0].OverlayID != "neon" {
		t.Errorf("OnResult calls = %+v, want exactly one for neon", committed)
	}
}

func TestCoordinatorDeduplicatesPendingRender(t *testing.T) {
	api := newFakeTransformAPI()
	rc := NewRenderCoordinator(api, DefaultBackoff)

	rc.SetSource("acq-1")
	rc.SelectOverlay(context.Background(), "gold")
	api.waitForJob(t, "gold")

	// Re-selecting the same overlay while its render is in flight must not
	// start a second one.
	rc.SelectOverlay(context.Background(), "gold")
	rc.Refresh(context.Background())

	if n := api.transformCount(); n != 1 {
		t.Fatalf("transform calls = %d, want 1", n)
	}

	api.complete(t, "gold")
	rc.Wait()
	if _, ok := rc.CachedResult(); !ok {
		t.Error("expected the single render to commit")
	}
}

func TestCoordinatorFailureClearsPendingAndNotifies(t *testing.T) {
	api := newFakeTransformAPI()
	rc := NewRenderCoordinator(api, DefaultBackoff)

	notices := make(chan string, 1)
	rc.OnNotice = func(msg string) { notices <- msg }

	rc.SetSource("acq-1")
	rc.SelectOverlay(context.Background(), "gold")
	api.fail(t, "gold", "encode blew up")
	rc.Wait()

	select {
	case msg := <-notices:
		if !strings.Contains(msg, "encode blew up") {
			t.Errorf("notice = %q, want the job's error in it", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a failure notice")
	}
	if _, ok := rc.CachedResult(); ok {
		t.Error("failed render must not leave a cached result")
	}

	// The pending slot is free again: the same selection can be retried.
	rc.Refresh(context.Background())
	if n := api.transformCount(); n != 2 {
		t.Errorf("transform calls after retry = %d, want 2", n)
	}
}

func TestCoordinatorSkipsWhenNotRenderable(t *testing.T) {
	api := newFakeTransformAPI()
	rc := NewRenderCoordinator(api, DefaultBackoff)

	// No source loaded.
	rc.SelectOverlay(context.Background(), "gold")
	// Clearing the selection.
	rc.SetSource("acq-1")
	rc.SelectOverlay(context.Background(), OverlayNone)
	// Busy with an explicit operation.
	rc.SetBusy(true)
	rc.SelectOverlay(context.Background(), "gold")

	if n := api.transformCount(); n != 0 {
		t.Fatalf("transform calls = %d, want 0", n)
	}

	// Once no longer busy, a refresh picks the selection up.
	rc.SetBusy(false)
	rc.Refresh(context.Background())
	if n := api.transformCount(); n != 1 {
		t.Errorf("transform calls after unbusy = %d, want 1", n)
	}
	api.complete(t, "gold")
	rc.Wait()
}

func TestCoordinatorNewSourceInvalidatesCache(t *testing.T) {
	api := newFakeTransformAPI()
	rc := NewRenderCoordinator(api, DefaultBackoff)

	rc.SetSource("acq-1")
	rc.SelectOverlay(context.Background(), "gold")
	api.complete(t, "gold")
	rc.Wait()
	if _, ok := rc.CachedResult(); !ok {
		t.Fatal("expected a cached result before the source change")
	}

	rc.SetSource("acq-2")
	if _, ok := rc.CachedResult(); ok {
		t.Error("cached result must not survive a source change")
	}
	if got := rc.Source(); got != "acq-2" {
		t.Errorf("Source() = %q, want acq-2", got)
	}
}
