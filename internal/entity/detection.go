package entity

const UnableToAnalyzeDetails = "Unable to analyze image properly"

type DetectionResult struct {
	HumanDetected bool    `json:"humanDetected"`
	HumanCount    int     `json:"humanCount"`
	Confidence    float64 `json:"confidence"`
	Details       string  `json:"details"`
}

// SafeDefault is the result used whenever a payload cannot be trusted.
func SafeDefault() DetectionResult {
	return DetectionResult{
		HumanDetected: false,
		HumanCount:    0,
		Confidence:    0,
		Details:       UnableToAnalyzeDetails,
	}
}

// Normalize keeps the human fields consistent: no count without a detection,
// and a detection reporting zero people counts as no detection.
func (r DetectionResult) Normalize() DetectionResult {
	if r.HumanCount < 0 {
		r.HumanCount = 0
	}
	if !r.HumanDetected || r.HumanCount == 0 {
		r.HumanDetected = false
		r.HumanCount = 0
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 100 {
		r.Confidence = 100
	}
	return r
}
