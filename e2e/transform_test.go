package e2e

import (
	"net/http"
	"testing"
)

// completedAcquisition runs an acquisition to completion and returns its id.
func completedAcquisition(t *testing.T, ta *testApp) string {
	t.Helper()
	jobID := createJob(t, ta, "/api/acquire",
		jsonBody(map[string]string{"url": "https://vm.tiktok.com/ZMabc/"}),
		http.StatusAccepted)
	status := waitForCompletion(t, ta, "/api/acquisition-status/"+jobID)
	if status["status"] != "completed" {
		t.Fatalf("acquisition ended %v, want completed", status["status"])
	}
	return jobID
}

func TestTransform_FullFlow(t *testing.T) {
	ta := setupApp(t, 10000)
	acqID := completedAcquisition(t, ta)

	jobID := createJob(t, ta, "/api/transform",
		jsonBody(map[string]string{"acquisitionJobId": acqID, "overlayId": "gold_frame"}),
		http.StatusAccepted)

	status := waitForCompletion(t, ta, "/api/transform-status/"+jobID)
	if status["status"] != "completed" {
		t.Fatalf("transform ended %v, want completed: %v", status["status"], status)
	}

	resp, err := doRequest(ta.app, http.MethodGet, "/api/transformed-artifact/"+jobID, "", nil)
	if err != nil {
		t.Fatalf("artifact request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if body := readBody(t, resp); body != "stub video "+jobID {
		t.Errorf("artifact body = %q", body)
	}
}

func TestTransform_UnknownOverlay(t *testing.T) {
	ta := setupApp(t, 10000)
	acqID := completedAcquisition(t, ta)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/transform",
		jsonBody(map[string]string{"acquisitionJobId": acqID, "overlayId": "no_such"}), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)

	body := parseJSON(t, resp)
	errObj, _ := body["error"].(map[string]interface{})
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("error code = %v, want VALIDATION_ERROR", errObj["code"])
	}
}

func TestTransform_UnknownAcquisition(t *testing.T) {
	ta := setupApp(t, 10000)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/transform",
		jsonBody(map[string]string{"acquisitionJobId": "missing", "overlayId": "gold_frame"}), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestTransform_MissingFields(t *testing.T) {
	ta := setupApp(t, 10000)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/transform", "{}", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestOverlays_List(t *testing.T) {
	ta := setupApp(t, 10000)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/overlays", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := readBody(t, resp)
	var overlays []map[string]interface{}
	if err := jsonUnmarshal(body, &overlays); err != nil {
		t.Fatalf("failed to parse overlays: %v\nbody: %s", err, body)
	}
	if len(overlays) != 2 {
		t.Fatalf("overlays = %d, want 2", len(overlays))
	}
	if overlays[0]["id"] != "gold_frame" || overlays[0]["name"] != "Gold Frame" {
		t.Errorf("first overlay = %v", overlays[0])
	}
}
