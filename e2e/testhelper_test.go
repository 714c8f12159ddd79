package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/frameshare/api/internal/executor"
	"github.com/frameshare/api/internal/handler"
	"github.com/frameshare/api/internal/jobstore"
	"github.com/frameshare/api/internal/middleware"
	"github.com/frameshare/api/internal/model"
	"github.com/frameshare/api/internal/overlay"
	"github.com/frameshare/api/internal/ratelimit"
	"github.com/frameshare/api/internal/service"
)

// testApp holds all components needed for testing.
type testApp struct {
	app      *fiber.App
	store    *jobstore.MemoryStore
	mediaDir string
}

// stubRunner stands in for the media pipeline: it marks the job running and
// immediately completes it with a small placeholder artifact, so full
// request/poll/fetch flows run without yt-dlp, ffmpeg, or Redis.
type stubRunner struct {
	store          jobstore.Store
	mediaDir       string
	transformedDir string
}

func (r *stubRunner) Run(ctx context.Context, task executor.Task) error {
	if err := r.store.SetRunning(ctx, task.JobID); err != nil {
		return err
	}
	dir := r.mediaDir
	if task.Kind == model.JobKindTransform {
		dir = r.transformedDir
	}
	path := filepath.Join(dir, task.JobID+".mp4")
	if err := os.WriteFile(path, []byte("stub video "+task.JobID), 0o644); err != nil {
		return err
	}
	return r.store.Complete(ctx, task.JobID, path, "")
}

// setupApp wires a Fiber app like main.go does, but in direct mode with an
// in-memory store and the stub runner, so tests need no external services.
// jobLimit applies to the job-creating routes; tests that exercise the limit
// pass a small one.
func setupApp(t *testing.T, jobLimit int) *testApp {
	t.Helper()

	mediaDir := t.TempDir()
	transformedDir := t.TempDir()
	overlayDir := t.TempDir()
	for _, name := range []string{"gold_frame.png", "neon_glow.png"} {
		if err := os.WriteFile(filepath.Join(overlayDir, name), []byte("png"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	store := jobstore.NewMemoryStore()
	runner := &stubRunner{store: store, mediaDir: mediaDir, transformedDir: transformedDir}
	backend := executor.NewDirectBackend(runner, store)

	overlays, err := overlay.Load(overlayDir)
	if err != nil {
		t.Fatalf("failed to load overlays: %v", err)
	}

	validate := validator.New()

	acquireService := service.NewAcquireService(store, backend, mediaDir, []string{"tiktok.com", "vm.tiktok.com"})
	transformService := service.NewTransformService(store, backend, overlays)

	acquireHandler := handler.NewAcquireHandler(acquireService, validate)
	transformHandler := handler.NewTransformHandler(transformService, validate)

	limit := middleware.RateLimit(ratelimit.NewSlidingWindow(jobLimit, time.Minute))

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	tools := fiber.Map{}
	for _, tool := range []string{"yt-dlp", "ffmpeg", "ffprobe"} {
		_, err := exec.LookPath(tool)
		tools[strings.ReplaceAll(tool, "-", "")] = err == nil
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"mode":     backend.Mode(),
			"overlays": len(overlays.List()),
			"tools":    tools,
		})
	})

	api := app.Group("/api")
	api.Post("/acquire", limit, acquireHandler.Acquire)
	api.Post("/upload", limit, acquireHandler.Upload)
	api.Get("/acquisition-status/:jobId", acquireHandler.Status)
	api.Get("/artifact/:jobId", acquireHandler.Artifact)
	api.Get("/overlays", transformHandler.Overlays)
	api.Post("/transform", limit, transformHandler.Transform)
	api.Get("/transform-status/:jobId", transformHandler.Status)
	api.Get("/transformed-artifact/:jobId", transformHandler.Artifact)

	return &testApp{app: app, store: store, mediaDir: mediaDir}
}

// doRequest performs an HTTP request against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// createJob posts to a job-creating route and returns the new job id.
func createJob(t *testing.T, ta *testApp, path, body string, wantStatus int) string {
	t.Helper()
	resp, err := doRequest(ta.app, http.MethodPost, path, body, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, wantStatus)
	parsed := parseJSON(t, resp)
	jobID, _ := parsed["jobId"].(string)
	if jobID == "" {
		t.Fatalf("no jobId in response: %v", parsed)
	}
	return jobID
}

// waitForCompletion polls the status route until the job is terminal.
func waitForCompletion(t *testing.T, ta *testApp, statusPath string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doRequest(ta.app, http.MethodGet, statusPath, "", nil)
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusOK)
		parsed := parseJSON(t, resp)
		if s, _ := parsed["status"].(string); s == "completed" || s == "failed" {
			return parsed
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func jsonBody(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonUnmarshal(body string, out interface{}) error {
	return json.Unmarshal([]byte(body), out)
}
