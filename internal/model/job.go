package model

import "time"

// Job represents one unit of asynchronous work in the system.
type Job struct {
	ID       string    `json:"id"`
	Kind     JobKind   `json:"kind"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`

	// SourceRef holds the remote URL (or uploaded filename) for acquisition
	// jobs, and the upstream acquisition job id for transform jobs.
	SourceRef string `json:"sourceRef"`
	OverlayID string `json:"overlayId,omitempty"` // transform jobs only

	// ResultPath is set only once the job is completed.
	ResultPath string `json:"-"`
	// ResultURL is set when the artifact was mirrored to object storage.
	ResultURL string `json:"resultUrl,omitempty"`

	Error *string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// AcquireRequest is the body of POST /api/acquire.
type AcquireRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// TransformRequest is the body of POST /api/transform.
type TransformRequest struct {
	AcquisitionJobID string `json:"acquisitionJobId" validate:"required"`
	OverlayID        string `json:"overlayId" validate:"required"`
}

// JobCreatedResponse is returned by job-creating endpoints.
type JobCreatedResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// JobStatusResponse is returned by status-polling endpoints.
type JobStatusResponse struct {
	JobID       string     `json:"jobId"`
	Kind        JobKind    `json:"kind"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	ResultURL   string     `json:"resultUrl,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// StatusResponse builds the polling view of a job.
func StatusResponse(j *Job) *JobStatusResponse {
	return &JobStatusResponse{
		JobID:       j.ID,
		Kind:        j.Kind,
		Status:      j.Status,
		Progress:    j.Progress,
		ResultURL:   j.ResultURL,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
