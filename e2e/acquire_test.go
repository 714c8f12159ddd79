package e2e

import (
	"context"
	"net/http"
	"testing"
)

func TestAcquire_FullFlow(t *testing.T) {
	ta := setupApp(t, 10000)

	jobID := createJob(t, ta, "/api/acquire",
		jsonBody(map[string]string{"url": "https://www.tiktok.com/@user/video/123"}),
		http.StatusAccepted)

	status := waitForCompletion(t, ta, "/api/acquisition-status/"+jobID)
	if status["status"] != "completed" {
		t.Fatalf("job ended %v, want completed: %v", status["status"], status)
	}
	if progress, _ := status["progress"].(float64); progress != 100 {
		t.Errorf("progress = %v, want 100", status["progress"])
	}

	resp, err := doRequest(ta.app, http.MethodGet, "/api/artifact/"+jobID, "", nil)
	if err != nil {
		t.Fatalf("artifact request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if body := readBody(t, resp); body != "stub video "+jobID {
		t.Errorf("artifact body = %q", body)
	}
}

func TestAcquire_UnsupportedSource(t *testing.T) {
	ta := setupApp(t, 10000)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/acquire",
		jsonBody(map[string]string{"url": "https://example.com/watch?v=1"}), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)

	body := parseJSON(t, resp)
	errObj, _ := body["error"].(map[string]interface{})
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("error code = %v, want VALIDATION_ERROR", errObj["code"])
	}

	// Rejection must not leave a job behind.
	jobs, _ := ta.store.List(context.Background())
	if len(jobs) != 0 {
		t.Errorf("jobs after rejection = %d, want 0", len(jobs))
	}
}

func TestAcquire_MissingURL(t *testing.T) {
	ta := setupApp(t, 10000)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/acquire", "{}", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAcquisitionStatus_UnknownJob(t *testing.T) {
	ta := setupApp(t, 10000)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/acquisition-status/nope", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)

	body := parseJSON(t, resp)
	errObj, _ := body["error"].(map[string]interface{})
	if errObj["code"] != "NOT_FOUND" {
		t.Errorf("error code = %v, want NOT_FOUND", errObj["code"])
	}
}

func TestArtifact_NotReady(t *testing.T) {
	ta := setupApp(t, 10000)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/artifact/nope", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}
