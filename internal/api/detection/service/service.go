package detectionService

import (
	"CraneGuard/internal/entity"
	"CraneGuard/pkg/vision"
	"context"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"time"
)

type IDetectionService interface {
	DetectHumans(ctx context.Context, imageData string) (entity.DetectionResult, error)
	Backend() string
}

type detectionService struct {
	log      *logrus.Logger
	analyzer vision.Analyzer
	upstream *rate.Limiter
}

// NewDetectionService answers detection requests with the given backend.
// upstreamPerMinute caps calls to the backend across all clients; zero
// disables the cap.
func NewDetectionService(
	log *logrus.Logger,
	analyzer vision.Analyzer,
	upstreamPerMinute int,
) IDetectionService {
	var upstream *rate.Limiter
	if upstreamPerMinute > 0 {
		upstream = rate.NewLimiter(rate.Every(time.Minute/time.Duration(upstreamPerMinute)), upstreamPerMinute)
	}

	return &detectionService{
		log:      log,
		analyzer: analyzer,
		upstream: upstream,
	}
}
