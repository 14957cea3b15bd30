package detectionService

import (
	"CraneGuard/internal/api/detection"
	"CraneGuard/internal/entity"
	contextPkg "CraneGuard/pkg/context"
	"CraneGuard/pkg/detector"
	"CraneGuard/pkg/log"
	"CraneGuard/pkg/vision"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

func (s *detectionService) Backend() string {
	return s.analyzer.Name()
}

func (s *detectionService) DetectHumans(ctx context.Context, imageData string) (entity.DetectionResult, error) {
	if strings.TrimSpace(imageData) == "" {
		return entity.DetectionResult{}, detection.ErrMissingImage
	}

	img, err := vision.ParseDataURL(imageData)
	if err != nil {
		return entity.DetectionResult{}, fmt.Errorf("%w: %v", detection.ErrInvalidImage, err)
	}

	if s.upstream != nil && !s.upstream.Allow() {
		return entity.DetectionResult{}, fmt.Errorf("%w: upstream quota", detection.ErrRateLimited)
	}

	start := time.Now()
	text, err := s.analyzer.AnalyzeImage(ctx, img, vision.HumanDetectionPrompt)
	if err != nil {
		if errors.Is(err, vision.ErrRateLimited) {
			return entity.DetectionResult{}, fmt.Errorf("%w: %v", detection.ErrRateLimited, err)
		}
		return entity.DetectionResult{}, fmt.Errorf("%w: %v", detection.ErrDetectionFailed, err)
	}

	result, parseErr := detector.Parse(text)
	if parseErr != nil {
		s.log.WithFields(log.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"backend":    s.analyzer.Name(),
			"error":      parseErr.Error(),
		}).Warn("[detectionService.DetectHumans] backend reply did not match the detection schema")
		result = entity.SafeDefault()
	}

	s.log.WithFields(log.Fields{
		"request_id":     contextPkg.GetRequestID(ctx),
		"backend":        s.analyzer.Name(),
		"human_detected": result.HumanDetected,
		"human_count":    result.HumanCount,
		"confidence":     result.Confidence,
		"latency_ms":     time.Since(start).Milliseconds(),
	}).Info("[detectionService.DetectHumans] detection complete")

	return result, nil
}
