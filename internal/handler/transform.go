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

type TransformHandler struct {
	service   *service.TransformService
	validator *validator.Validate
}

func NewTransformHandler(svc *service.TransformService, v *validator.Validate) *TransformHandler {
	return &TransformHandler{service: svc, validator: v}
}

// Transform handles POST /api/transform
// @Summary      Start transform job
// @Description  Composite an overlay template onto a completed acquisition
// @Tags         Transform
// @Accept       json
// @Produce      json
// @Param        request body model.TransformRequest true "Transform request"
// @Success      202 {object} model.JobCreatedResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.RateLimitedResponse
// @Router       /api/transform [post]
func (h *TransformHandler) Transform(c *fiber.Ctx) error {
	var req model.TransformRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	jobID, err := h.service.Transform(c.Context(), req.AcquisitionJobID, req.OverlayID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownOverlay):
			return response.ValidationError(c, "Unknown overlay", nil)
		case errors.Is(err, service.ErrSourceNotReady):
			return response.ValidationError(c, "Acquisition job is not completed", nil)
		case errors.Is(err, jobstore.ErrNotFound):
			return response.ValidationError(c, "Acquisition job not found", nil)
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.Accepted(c, model.JobCreatedResponse{
		JobID:  jobID,
		Status: model.JobStatusPending,
	})
}

// Status handles GET /api/transform-status/:jobId
// @Summary      Get transform job status
// @Tags         Transform
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobStatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/transform-status/{jobId} [get]
func (h *TransformHandler) Status(c *fiber.Ctx) error {
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

// Artifact handles GET /api/transformed-artifact/:jobId
// @Summary      Stream a completed transform output
// @Tags         Transform
// @Produce      video/mp4
// @Param        jobId path string true "Job ID"
// @Success      200 {file} binary
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/transformed-artifact/{jobId} [get]
func (h *TransformHandler) Artifact(c *fiber.Ctx) error {
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

	return c.SendFile(path)
}

// Overlays handles GET /api/overlays
// @Summary      List overlay templates
// @Tags         Transform
// @Produce      json
// @Success      200 {array} model.OverlayInfo
// @Router       /api/overlays [get]
func (h *TransformHandler) Overlays(c *fiber.Ctx) error {
	return response.OK(c, h.service.Overlays())
}
