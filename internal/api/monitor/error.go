package monitor

import (
	"CraneGuard/pkg/response"
	"net/http"
)

var (
	ErrInvalidBody    = response.NewError(http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	ErrEncodeSnapshot = response.NewError(http.StatusInternalServerError, "ENCODE_FAILED", "failed to encode safety snapshot")
)
