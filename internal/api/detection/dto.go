package detection

import "CraneGuard/internal/entity"

type DetectHumansRequest struct {
	ImageData string `json:"imageData" validate:"required"`
}

// ErrorResponse keeps the detection fields alongside the error so callers
// that only read humanDetected still see a safe value.
type ErrorResponse struct {
	Error         string  `json:"error"`
	HumanDetected bool    `json:"humanDetected"`
	HumanCount    int     `json:"humanCount"`
	Confidence    float64 `json:"confidence"`
	Details       string  `json:"details"`
}

const ErrorDetails = "Error occurred during detection"

func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Error:   err.Error(),
		Details: ErrorDetails,
	}
}

type DetectHumansResponse = entity.DetectionResult
