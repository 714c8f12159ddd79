package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/frameshare/api/internal/jobstore"
	"github.com/frameshare/api/internal/model"
	"github.com/frameshare/api/internal/service"
	"github.com/frameshare/api/pkg/response"
)

type AcquireHandler struct {
	service   *service.AcquireService
	validator *validator.Validate
}

func NewAcquireHandler(svc *service.AcquireService, v *validator.Validate) *AcquireHandler {
	return &AcquireHandler{service: svc, validator: v}
}

// Acquire handles POST /api/acquire
// @Summary      Start acquisition job
// @Description  Fetch a remote video into the local artifact store
// @Tags         Acquire
// @Accept       json
// @Produce      json
// @Param        request body model.AcquireRequest true "Acquire request"
// @Success      202 {object} model.JobCreatedResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.RateLimitedResponse
// @Router       /api/acquire [post]
func (h *AcquireHandler) Acquire(c *fiber.Ctx) error {
	var req model.AcquireRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	jobID, err := h.service.Acquire(c.Context(), req.URL)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedSource) {
			return response.ValidationError(c, "Unsupported source", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.JobCreatedResponse{
		JobID:  jobID,
		Status: model.JobStatusPending,
	})
}

// Upload handles POST /api/upload
// @Summary      Upload a video file
// @Description  Store a client-supplied file as a completed acquisition
// @Tags         Acquire
// @Accept       multipart/form-data
// @Produce      json
// @Success      201 {object} model.JobCreatedResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.RateLimitedResponse
// @Router       /api/upload [post]
func (h *AcquireHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Missing file field", nil)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return response.ValidationError(c, "Unreadable upload", nil)
	}
	defer f.Close()

	jobID, err := h.service.AcceptUpload(c.Context(), fileHeader.Filename, f)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedMimeType):
			return response.ValidationError(c, "Unsupported file type", nil)
		case errors.Is(err, service.ErrEmptyUpload):
			return response.ValidationError(c, "Uploaded file is empty", nil)
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.Created(c, model.JobCreatedResponse{
		JobID:  jobID,
		Status: model.JobStatusCompleted,
	})
}

// Status handles GET /api/acquisition-status/:jobId
// @Summary      Get acquisition job status
// @Tags         Acquire
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobStatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/acquisition-status/{jobId} [get]
func (h *AcquireHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	status, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, status)
}

// Artifact handles GET /api/artifact/:jobId
// @Summary      Stream a completed acquisition artifact
// @Description  Byte stream with Range support for seek and preview
// @Tags         Acquire
// @Produce      video/mp4
// @Param        jobId path string true "Job ID"
// @Success      200 {file} binary
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/artifact/{jobId} [get]
func (h *AcquireHandler) Artifact(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	path, err := h.service.ArtifactPath(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) || errors.Is(err, service.ErrArtifactNotReady) {
			return response.NotFound(c, "Artifact not available")
		}
		return response.ServiceError(c, err.Error())
	}

	// SendFile serves byte ranges, which the preview player needs for seeking.
	return c.SendFile(path)
}
