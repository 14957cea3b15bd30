package detectionHandler

import (
	"CraneGuard/internal/api/detection"
	contextPkg "CraneGuard/pkg/context"
	"CraneGuard/pkg/log"
	"CraneGuard/pkg/response"
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

func (h *DetectionHandler) DetectHumans(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"backend":    h.detectionService.Backend(),
	}).Debug("Processing human detection request")

	imageData, err := h.readImage(ctx)
	if err != nil {
		return h.fail(ctx, requestID, err, "read_image")
	}

	result, err := h.detectionService.DetectHumans(c, imageData)
	if err != nil {
		return h.fail(ctx, requestID, err, "detect_humans")
	}

	h.served(fiber.StatusOK)
	return ctx.Status(fiber.StatusOK).JSON(result)
}

// readImage accepts either a JSON body with imageData or a multipart upload
// in the "image" field.
func (h *DetectionHandler) readImage(ctx *fiber.Ctx) (string, error) {
	file, err := ctx.FormFile("image")
	if err == nil {
		if err := h.utils.ValidateImageFile(file); err != nil {
			return "", fmt.Errorf("%w: %v", detection.ErrInvalidImage, err)
		}

		fileContent, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: %v", detection.ErrInvalidImage, err)
		}
		defer fileContent.Close()

		dataURL, err := h.utils.ConvertFileToDataURL(fileContent)
		if err != nil {
			return "", fmt.Errorf("%w: %v", detection.ErrInvalidImage, err)
		}
		return dataURL, nil
	}

	var req detection.DetectHumansRequest
	if err := ctx.BodyParser(&req); err != nil {
		return "", fmt.Errorf("%w: %v", detection.ErrInvalidBody, err)
	}

	if err := h.validator.Struct(req); err != nil {
		return "", detection.ErrMissingImage
	}

	return req.ImageData, nil
}

func (h *DetectionHandler) fail(ctx *fiber.Ctx, requestID string, err error, operation string) error {
	status := fiber.StatusInternalServerError
	var respErr *response.Error
	if errors.As(err, &respErr) {
		status = respErr.Code
	}

	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"status":     status,
		"path":       ctx.Path(),
		"operation":  operation,
	}
	if status >= fiber.StatusInternalServerError {
		h.log.WithFields(fields).Error("Human detection failed")
	} else {
		h.log.WithFields(fields).Warn("Human detection request rejected")
	}

	h.served(status)
	return ctx.Status(status).JSON(detection.NewErrorResponse(err))
}

func (h *DetectionHandler) served(status int) {
	if h.recorder != nil {
		h.recorder.EndpointServed(fmt.Sprintf("%dxx", status/100))
	}
}
