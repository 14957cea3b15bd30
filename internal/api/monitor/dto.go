package monitor

import "CraneGuard/internal/entity"

type ZonesResponse struct {
	Zones        []entity.Zone `json:"zones"`
	ActiveZoneID string        `json:"activeZoneId"`
}

type UpdateCameraRequest struct {
	CameraSourceURL string `json:"cameraSourceUrl" validate:"max=2048"`
}

type CurrentWeightRequest struct {
	CurrentWeight *float64 `json:"currentWeight" validate:"required"`
}

type MaxWeightRequest struct {
	MaxWeight *float64 `json:"maxWeight" validate:"required"`
}

type SafetyResponse struct {
	entity.SafetySnapshot
	Headline       string     `json:"headline"`
	AlertReasons   []string   `json:"alertReasons"`
	MaxWeightRange [2]float64 `json:"maxWeightRange"`
}

func NewSafetyResponse(snap entity.SafetySnapshot, minMax, maxMax float64) SafetyResponse {
	reasons := snap.AlertReasons()
	if reasons == nil {
		reasons = []string{}
	}
	return SafetyResponse{
		SafetySnapshot: snap,
		Headline:       snap.Headline(),
		AlertReasons:   reasons,
		MaxWeightRange: [2]float64{minMax, maxMax},
	}
}

type ScanResponse struct {
	Status string `json:"status"`
	ZoneID string `json:"zoneId"`
}

const (
	EventSafety       = "safety"
	EventNotification = "notification"
)

// Event is one message on the live websocket.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
