// Package pipeline wires frame sources to the detection endpoint and commits
// results to the shared safety state.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"CraneGuard/internal/entity"
	"CraneGuard/internal/safety"
	"CraneGuard/pkg/camera"
	"CraneGuard/pkg/detector"
	"CraneGuard/pkg/metrics"
	"CraneGuard/pkg/notify"
	"github.com/sirupsen/logrus"
)

// Recorder receives pipeline measurements. *metrics.Metrics satisfies it.
type Recorder interface {
	FrameCaptured()
	FrameDropped()
	SourceOffline()
	SetBusy(busy bool)
	DetectionFinished(outcome string, took time.Duration)
	SafetyChanged(hasAlert bool, humans int)
}

// ZoneTracker reports the active zone. CommitIfActive runs commit only while
// zoneID is the active zone and holds off zone switches until it returns.
type ZoneTracker interface {
	ActiveID() string
	CommitIfActive(zoneID string, commit func()) bool
}

// Coordinator keeps at most one detection call in flight. Frames offered while
// a call is outstanding are dropped, never queued.
type Coordinator struct {
	detector detector.IDetector
	state    *safety.State
	zones    ZoneTracker
	notifier notify.Sink
	recorder Recorder
	log      *logrus.Logger
	timeout  time.Duration

	busy     atomic.Bool
	inflight sync.WaitGroup
}

type CoordinatorOption func(*Coordinator)

func WithRecorder(r Recorder) CoordinatorOption {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

func WithDetectTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

func NewCoordinator(
	det detector.IDetector,
	state *safety.State,
	zones ZoneTracker,
	notifier notify.Sink,
	logger *logrus.Logger,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		detector: det,
		state:    state,
		zones:    zones,
		notifier: notifier,
		recorder: nopRecorder{},
		log:      logger,
		timeout:  20 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// Submit dispatches frame for detection unless a call is already in flight.
// The zone id is recorded so a result arriving after a zone switch can be
// recognised and thrown away. It reports whether the frame was accepted.
func (c *Coordinator) Submit(ctx context.Context, zoneID string, frame camera.Frame) bool {
	if !c.busy.CompareAndSwap(false, true) {
		c.recorder.FrameDropped()
		return false
	}
	c.recorder.SetBusy(true)

	c.inflight.Add(1)
	go c.run(ctx, zoneID, frame)
	return true
}

// Wait blocks until the outstanding call, if any, has settled.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

func (c *Coordinator) run(ctx context.Context, zoneID string, frame camera.Frame) {
	defer c.inflight.Done()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	start := time.Now()
	result, err := c.detector.Detect(callCtx, frame.DataURL())
	took := time.Since(start)
	cancel()

	// The call has settled; commit and notification run outside the busy window.
	c.busy.Store(false)
	c.recorder.SetBusy(false)

	fields := logrus.Fields{
		"zone":       zoneID,
		"frame_seq":  frame.Seq,
		"latency_ms": took.Milliseconds(),
	}

	if ctx.Err() != nil {
		c.recorder.DetectionFinished(metrics.OutcomeDiscarded, took)
		c.log.WithFields(fields).Debug("Session closed, detection result discarded")
		return
	}

	var notice *entity.Notification
	committed := c.zones.CommitIfActive(zoneID, func() {
		switch {
		case err == nil:
			c.recorder.DetectionFinished(metrics.OutcomeSuccess, took)
			c.state.ApplyDetection(result)
			if result.HumanDetected && result.HumanCount > 0 {
				n := entity.HumanDetectedNotification(zoneID, result.HumanCount)
				notice = &n
			}
		case detector.IsRateLimited(err):
			c.recorder.DetectionFinished(metrics.OutcomeRateLimited, took)
			c.state.ResetHumans()
			n := entity.RateLimitedNotification(zoneID)
			notice = &n
		default:
			c.recorder.DetectionFinished(metrics.OutcomeError, took)
			n := entity.DetectionErrorNotification(zoneID)
			notice = &n
		}
	})
	if !committed {
		c.recorder.DetectionFinished(metrics.OutcomeDiscarded, took)
		fields["active_zone"] = c.zones.ActiveID()
		c.log.WithFields(fields).Debug("Zone changed during detection, result discarded")
		return
	}

	switch {
	case err == nil:
		fields["human_detected"] = result.HumanDetected
		fields["human_count"] = result.HumanCount
		c.log.WithFields(fields).Debug("Detection committed")
	case detector.IsRateLimited(err):
		fields["error"] = err.Error()
		c.log.WithFields(fields).Warn("Detection rate limited, human fields reset")
	default:
		fields["error"] = err.Error()
		c.log.WithFields(fields).Error("Detection failed, keeping previous state")
	}

	if notice != nil {
		c.emit(ctx, *notice)
	}
}

func (c *Coordinator) emit(ctx context.Context, n entity.Notification) {
	if err := c.notifier.Notify(ctx, n); err != nil {
		c.log.WithFields(logrus.Fields{
			"kind":  n.Kind,
			"error": err.Error(),
		}).Warn("Failed to deliver notification")
	}
}

type nopRecorder struct{}

func (nopRecorder) FrameCaptured() {}
func (nopRecorder) FrameDropped()  {}
func (nopRecorder) SourceOffline() {}
func (nopRecorder) SetBusy(bool)   {}

func (nopRecorder) DetectionFinished(string, time.Duration) {}

func (nopRecorder) SafetyChanged(bool, int) {}
