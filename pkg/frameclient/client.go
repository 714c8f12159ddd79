// Package frameclient is the Go client kit for the frameshare API: a thin
// HTTP wrapper plus the render coordination and share orchestration logic a
// frontend needs to stay consistent with the server's asynchronous jobs.
package frameclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Job statuses as reported by the server.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound is returned for 404 responses: unknown jobs and artifacts that
// were swept by TTL. Callers fall back to the original artifact, they do not
// treat this as fatal.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response carrying the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// JobStatus mirrors the server's status responses.
type JobStatus struct {
	JobID     string  `json:"jobId"`
	Status    string  `json:"status"`
	Progress  int     `json:"progress"`
	ResultURL string  `json:"resultUrl,omitempty"`
	Error     *string `json:"error,omitempty"`
}

// Overlay mirrors one overlay template entry.
type Overlay struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	AssetRef string `json:"assetRef"`
}

// Client talks to the frameshare API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a client. A nil httpc uses a default with a request timeout
// sized for artifact fetches, not job completion.
func New(baseURL string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, httpc: httpc}
}

// Acquire starts an acquisition job for a remote URL.
func (c *Client) Acquire(ctx context.Context, url string) (string, error) {
	return c.createJob(ctx, "/api/acquire", map[string]string{"url": url})
}

// Transform starts a transform job for a completed acquisition.
func (c *Client) Transform(ctx context.Context, acquisitionJobID, overlayID string) (string, error) {
	return c.createJob(ctx, "/api/transform", map[string]string{
		"acquisitionJobId": acquisitionJobID,
		"overlayId":        overlayID,
	})
}

// AcquisitionStatus polls one acquisition job.
func (c *Client) AcquisitionStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	return c.getStatus(ctx, "/api/acquisition-status/"+jobID)
}

// TransformStatus polls one transform job.
func (c *Client) TransformStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	return c.getStatus(ctx, "/api/transform-status/"+jobID)
}

// Overlays lists the selectable overlay templates.
func (c *Client) Overlays(ctx context.Context) ([]Overlay, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/overlays", nil)
	if err != nil {
		return nil, err
	}
	var overlays []Overlay
	if err := c.do(req, &overlays); err != nil {
		return nil, err
	}
	return overlays, nil
}

// FetchArtifact reads a completed acquisition artifact into memory.
func (c *Client) FetchArtifact(ctx context.Context, jobID string) ([]byte, error) {
	return c.fetch(ctx, "/api/artifact/"+jobID)
}

// FetchTransformed reads a completed transform output into memory.
func (c *Client) FetchTransformed(ctx context.Context, jobID string) ([]byte, error) {
	return c.fetch(ctx, "/api/transformed-artifact/"+jobID)
}

func (c *Client) createJob(ctx context.Context, path string, body map[string]string) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var created struct {
		JobID string `json:"jobId"`
	}
	if err := c.do(req, &created); err != nil {
		return "", err
	}
	return created.JobID, nil
}

func (c *Client) getStatus(ctx context.Context, path string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	var status JobStatus
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       envelope.Error.Code,
		Message:    envelope.Error.Message,
	}
}
