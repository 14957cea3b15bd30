package entity

import "time"

type SafetySnapshot struct {
	HumanDetected  bool      `json:"humanDetected"`
	HumanCount     int       `json:"humanCount"`
	Confidence     float64   `json:"confidence"`
	Details        string    `json:"details"`
	CurrentWeight  float64   `json:"currentWeight"`
	MaxWeight      float64   `json:"maxWeight"`
	WeightOverload bool      `json:"weightOverload"`
	LoadPercentage float64   `json:"loadPercentage"`
	LoadWarning    bool      `json:"loadWarning"`
	HasAlert       bool      `json:"hasAlert"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AlertReasons lists the operator-facing reasons behind HasAlert.
func (s SafetySnapshot) AlertReasons() []string {
	var reasons []string
	if s.HumanDetected {
		reasons = append(reasons, "HUMANS IN PATH")
	}
	if s.WeightOverload {
		reasons = append(reasons, "WEIGHT OVERLOAD")
	}
	return reasons
}

func (s SafetySnapshot) Headline() string {
	if s.HasAlert {
		return "⚠️ DANGER - STOP OPERATION"
	}
	return "✓ SAFE TO PROCEED"
}
