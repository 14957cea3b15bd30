package entity

import (
	"fmt"
	"time"
)

type NotificationKind string

const (
	NotificationHumanDetected  NotificationKind = "human_detected"
	NotificationRateLimited    NotificationKind = "rate_limited"
	NotificationDetectionError NotificationKind = "detection_error"
)

type Notification struct {
	ID          string           `json:"id"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	ZoneID      string           `json:"zoneId"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func HumanDetectedNotification(zoneID string, count int) Notification {
	noun := "people"
	if count == 1 {
		noun = "person"
	}
	return Notification{
		Kind:        NotificationHumanDetected,
		Title:       "⚠️ Human Detected",
		Description: fmt.Sprintf("%d %s in crane path", count, noun),
		ZoneID:      zoneID,
		CreatedAt:   time.Now(),
	}
}

func RateLimitedNotification(zoneID string) Notification {
	return Notification{
		Kind:        NotificationRateLimited,
		Title:       "Rate Limited",
		Description: "Detection paused by rate limit, retrying on next frame",
		ZoneID:      zoneID,
		CreatedAt:   time.Now(),
	}
}

func DetectionErrorNotification(zoneID string) Notification {
	return Notification{
		Kind:        NotificationDetectionError,
		Title:       "Detection Error",
		Description: "Unable to analyze camera feed",
		ZoneID:      zoneID,
		CreatedAt:   time.Now(),
	}
}
