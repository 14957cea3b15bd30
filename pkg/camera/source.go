package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLive    Status = "live"
	StatusOffline Status = "offline"
)

type Config struct {
	Interval time.Duration
	Width    int
	Height   int
	Quality  int
}

func DefaultConfig() Config {
	return Config{
		Interval: 1500 * time.Millisecond,
		Width:    640,
		Height:   360,
		Quality:  80,
	}
}

// FrameSource owns one acquired feed and samples it on a fixed timer. A failed
// acquisition or a dead feed leaves the source offline; it is never retried.
type FrameSource struct {
	sourceURL string
	open      Opener
	raster    Rasterizer
	interval  time.Duration
	log       *logrus.Logger
	seq       atomic.Uint64

	lifeMu sync.Mutex

	mu      sync.RWMutex
	status  Status
	lastErr error
	feed    Feed
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewFrameSource(sourceURL string, open Opener, cfg Config, logger *logrus.Logger) *FrameSource {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}

	return &FrameSource{
		sourceURL: sourceURL,
		open:      open,
		raster:    Rasterizer{Width: cfg.Width, Height: cfg.Height, Quality: cfg.Quality},
		interval:  cfg.Interval,
		log:       logger,
		status:    StatusIdle,
	}
}

func (s *FrameSource) SourceURL() string {
	return s.sourceURL
}

// Start acquires the feed and begins the capture timer. onFrame runs on the
// capture goroutine and must not call Stop.
func (s *FrameSource) Start(ctx context.Context, onFrame func(Frame)) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.RLock()
	running := s.feed != nil
	s.mu.RUnlock()
	if running {
		return ErrStarted
	}

	feed, err := s.open(ctx, s.sourceURL)
	if err != nil {
		var acqErr *AcquisitionError
		if !errors.As(err, &acqErr) {
			acqErr = &AcquisitionError{Source: s.sourceURL, Err: err}
		}
		s.setOffline(acqErr)
		s.log.WithFields(logrus.Fields{
			"source": s.sourceURL,
			"error":  err.Error(),
		}).Error("Camera acquisition failed, source offline")
		return acqErr
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.feed = feed
	s.cancel = cancel
	s.done = done
	s.status = StatusLive
	s.lastErr = nil
	s.mu.Unlock()

	go s.run(loopCtx, feed, onFrame, done)

	s.log.WithFields(logrus.Fields{
		"source":   s.sourceURL,
		"interval": s.interval.String(),
	}).Info("Frame source started")
	return nil
}

// Stop cancels the capture timer and releases the feed. It blocks until the
// capture goroutine has exited and is safe to call any number of times.
func (s *FrameSource) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	feed, cancel, done := s.feed, s.cancel, s.done
	s.feed, s.cancel, s.done = nil, nil, nil
	if s.status == StatusLive {
		s.status = StatusIdle
	}
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
	if err := feed.Close(); err != nil {
		s.log.WithFields(logrus.Fields{
			"source": s.sourceURL,
			"error":  err.Error(),
		}).Warn("Failed to release camera feed")
	}
	s.log.WithField("source", s.sourceURL).Info("Frame source stopped")
}

func (s *FrameSource) Status() (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.lastErr
}

// Capture rasterizes the current feed content right now, outside the timer.
func (s *FrameSource) Capture() (Frame, error) {
	s.mu.RLock()
	feed := s.feed
	s.mu.RUnlock()

	if feed == nil {
		return Frame{}, ErrNotRunning
	}
	return s.capture(feed)
}

func (s *FrameSource) run(ctx context.Context, feed Feed, onFrame func(Frame), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := feed.Err(); err != nil {
			s.setOffline(err)
			s.log.WithFields(logrus.Fields{
				"source": s.sourceURL,
				"error":  err.Error(),
			}).Error("Camera feed lost, source offline")
			return
		}

		frame, err := s.capture(feed)
		if errors.Is(err, ErrNoFrame) {
			continue
		}
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"source": s.sourceURL,
				"error":  err.Error(),
			}).Warn("Failed to rasterize frame")
			continue
		}

		onFrame(frame)
	}
}

func (s *FrameSource) capture(feed Feed) (Frame, error) {
	img, ok := feed.Latest()
	if !ok {
		return Frame{}, ErrNoFrame
	}

	data, err := s.raster.Encode(img)
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		JPEG:       data,
		Width:      s.raster.Width,
		Height:     s.raster.Height,
		Seq:        s.seq.Add(1),
		CapturedAt: time.Now(),
	}, nil
}

func (s *FrameSource) setOffline(err error) {
	s.mu.Lock()
	s.status = StatusOffline
	s.lastErr = err
	s.mu.Unlock()
}
