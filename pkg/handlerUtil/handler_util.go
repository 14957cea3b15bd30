package handlerUtil

import (
	"CraneGuard/internal/pipeline"
	"CraneGuard/internal/safety"
	"CraneGuard/internal/zone"
	"CraneGuard/pkg/camera"
	"CraneGuard/pkg/log"
	"CraneGuard/pkg/response"
	"errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

type domainError struct {
	target  error
	status  int
	code    string
	message string
}

var domainErrors = []domainError{
	// Zone domain errors
	{zone.ErrZoneNotFound, fiber.StatusNotFound, "ZONE_NOT_FOUND", "Zone not found"},
	{zone.ErrInvalidCameraURL, fiber.StatusBadRequest, "INVALID_CAMERA_URL", "Camera source must be an http(s) URL or empty for the local device"},

	// Safety domain errors
	{safety.ErrInvalidWeight, fiber.StatusBadRequest, "INVALID_WEIGHT", "Weight must be a finite, non-negative number"},

	// Pipeline errors
	{pipeline.ErrBusy, fiber.StatusConflict, "DETECTION_IN_PROGRESS", "A detection is already in progress"},
	{pipeline.ErrSessionClosed, fiber.StatusServiceUnavailable, "SESSION_CLOSED", "Monitoring session is not running"},
	{camera.ErrNotRunning, fiber.StatusServiceUnavailable, "CAMERA_OFFLINE", "Camera feed is offline"},
	{camera.ErrNoFrame, fiber.StatusServiceUnavailable, "NO_FRAME", "Camera has not produced a frame yet"},
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"status":     respErr.Code,
			"reason":     respErr.Reason,
			"path":       path,
			"operation":  operation,
		}).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(ErrorResponse{
			Error: err.Error(),
			Code:  respErr.Reason,
		})
	}

	for _, de := range domainErrors {
		if !errors.Is(err, de.target) {
			continue
		}
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn(de.message)
		return c.Status(de.status).JSON(ErrorResponse{
			Error:   de.message,
			Code:    de.code,
			Details: err.Error(),
		})
	}

	var acqErr *camera.AcquisitionError
	if errors.As(err, &acqErr) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Camera unavailable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "Camera unavailable",
			Code:    "CAMERA_OFFLINE",
			Details: err.Error(),
		})
	}

	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}).Error("Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "An unexpected error occurred",
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Validation failed: " + err.Error(),
		"code":  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
