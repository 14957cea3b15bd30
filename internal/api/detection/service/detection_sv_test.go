package detectionService

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"testing"

	"CraneGuard/internal/api/detection"
	"CraneGuard/pkg/vision"
	"github.com/sirupsen/logrus"
)

type countingAnalyzer struct {
	calls int
}

func (c *countingAnalyzer) Name() string { return "counting" }

func (c *countingAnalyzer) AnalyzeImage(context.Context, vision.Image, string) (string, error) {
	c.calls++
	return `{"humanDetected":true,"humanCount":1,"confidence":70,"details":"one"}`, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDetectHumansUpstreamQuota(t *testing.T) {
	analyzer := &countingAnalyzer{}
	svc := NewDetectionService(quietLogger(), analyzer, 1)
	image := base64.StdEncoding.EncodeToString([]byte("frame"))

	if _, err := svc.DetectHumans(context.Background(), image); err != nil {
		t.Fatalf("first call error = %v", err)
	}
	_, err := svc.DetectHumans(context.Background(), image)
	if !errors.Is(err, detection.ErrRateLimited) {
		t.Errorf("second call error = %v, want ErrRateLimited", err)
	}
	if analyzer.calls != 1 {
		t.Errorf("backend calls = %d, want 1", analyzer.calls)
	}
}

func TestDetectHumansRejectsEmptyImage(t *testing.T) {
	svc := NewDetectionService(quietLogger(), &countingAnalyzer{}, 0)

	if _, err := svc.DetectHumans(context.Background(), "  "); !errors.Is(err, detection.ErrMissingImage) {
		t.Errorf("error = %v, want ErrMissingImage", err)
	}
	if _, err := svc.DetectHumans(context.Background(), "data:text/plain;base64,aGk="); !errors.Is(err, detection.ErrInvalidImage) {
		t.Errorf("error = %v, want ErrInvalidImage", err)
	}
}

func TestDetectHumansBareBase64(t *testing.T) {
	svc := NewDetectionService(quietLogger(), &countingAnalyzer{}, 0)
	result, err := svc.DetectHumans(context.Background(), base64.StdEncoding.EncodeToString([]byte("frame")))
	if err != nil {
		t.Fatalf("DetectHumans() error = %v", err)
	}
	if !result.HumanDetected || result.HumanCount != 1 {
		t.Errorf("result = %+v", result)
	}
}
