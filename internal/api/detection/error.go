package detection

import (
	"CraneGuard/pkg/response"
	"net/http"
)

var (
	ErrInvalidBody     = response.NewError(http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	ErrMissingImage    = response.NewError(http.StatusBadRequest, "MISSING_IMAGE", "imageData is required")
	ErrInvalidImage    = response.NewError(http.StatusBadRequest, "INVALID_IMAGE", "invalid image data")
	ErrRateLimited     = response.NewError(http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
	ErrDetectionFailed = response.NewError(http.StatusInternalServerError, "DETECTION_FAILED", "detection failed")
)
