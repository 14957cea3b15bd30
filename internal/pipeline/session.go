package pipeline

import (
	"context"
	"errors"
	"sync"

	"CraneGuard/internal/entity"
	"CraneGuard/internal/safety"
	"CraneGuard/internal/zone"
	"CraneGuard/pkg/camera"
	"github.com/sirupsen/logrus"
)

var (
	ErrBusy          = errors.New("a detection is already in progress")
	ErrSessionClosed = errors.New("monitoring session is closed")
)

type SourceStatus struct {
	Status    camera.Status `json:"status"`
	SourceURL string        `json:"sourceUrl,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type Status struct {
	Zone      entity.Zone           `json:"zone"`
	Source    SourceStatus          `json:"source"`
	Analyzing bool                  `json:"analyzing"`
	Safety    entity.SafetySnapshot `json:"safety"`
}

// Session owns the monitoring lifecycle: the zone registry, the safety state,
// the coordinator and whichever frame source is watching the active zone.
type Session struct {
	registry *zone.Registry
	state    *safety.State
	coord    *Coordinator
	open     camera.Opener
	camCfg   camera.Config
	recorder Recorder
	log      *logrus.Logger

	mu     sync.Mutex
	source *camera.FrameSource
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	watch  sync.WaitGroup
}

type SessionConfig struct {
	Registry    *zone.Registry
	State       *safety.State
	Coordinator *Coordinator
	Opener      camera.Opener
	Camera      camera.Config
	Recorder    Recorder
	Logger      *logrus.Logger
}

func NewSession(cfg SessionConfig) *Session {
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Session{
		registry: cfg.Registry,
		state:    cfg.State,
		coord:    cfg.Coordinator,
		open:     cfg.Opener,
		camCfg:   cfg.Camera,
		recorder: recorder,
		log:      cfg.Logger,
	}
}

// Start acquires the active zone's frame source. A camera that cannot be
// acquired leaves the source offline but does not fail the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.ctx != nil {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	id, updates := s.state.Subscribe()
	s.watch.Add(1)
	go func() {
		defer s.watch.Done()
		defer s.state.Unsubscribe(id)
		for {
			select {
			case <-s.ctx.Done():
				return
			case snap, ok := <-updates:
				if !ok {
					return
				}
				s.recorder.SafetyChanged(snap.HasAlert, snap.HumanCount)
			}
		}
	}()

	snap := s.state.Snapshot()
	s.recorder.SafetyChanged(snap.HasAlert, snap.HumanCount)

	s.swapSourceLocked()
	return nil
}

func (s *Session) Zones() ([]entity.Zone, string) {
	return s.registry.List(), s.registry.ActiveID()
}

func (s *Session) SelectZone(id string) (entity.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return entity.Zone{}, ErrSessionClosed
	}

	z, changed, err := s.registry.Select(id)
	if err != nil {
		return entity.Zone{}, err
	}
	if changed {
		s.log.WithField("zone", id).Info("Active zone changed")
		s.swapSourceLocked()
	}
	return z, nil
}

// UpdateZoneCamera changes a zone's camera source. Only the active zone's frame
// source is re-acquired.
func (s *Session) UpdateZoneCamera(id, sourceURL string) (entity.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return entity.Zone{}, ErrSessionClosed
	}

	z, active, err := s.registry.UpdateCamera(id, sourceURL)
	if err != nil {
		return entity.Zone{}, err
	}
	s.log.WithFields(logrus.Fields{
		"zone":   id,
		"source": sourceURL,
		"active": active,
	}).Info("Zone camera updated")

	if active {
		s.swapSourceLocked()
	}
	return z, nil
}

func (s *Session) Safety() *safety.State {
	return s.state
}

// Scan captures the active source immediately and submits the frame.
func (s *Session) Scan() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.ctx == nil {
		return ErrSessionClosed
	}
	if s.coord.Busy() {
		return ErrBusy
	}

	frame, err := s.source.Capture()
	if err != nil {
		return err
	}
	s.recorder.FrameCaptured()

	if !s.coord.Submit(s.ctx, s.registry.ActiveID(), frame) {
		return ErrBusy
	}
	return nil
}

// LatestJPEG rasterizes what the active source currently shows.
func (s *Session) LatestJPEG() ([]byte, bool) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()

	if source == nil {
		return nil, false
	}
	frame, err := source.Capture()
	if err != nil {
		return nil, false
	}
	return frame.JPEG, true
}

func (s *Session) Status() Status {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()

	st := Status{
		Zone:      s.registry.Active(),
		Analyzing: s.coord.Busy(),
		Safety:    s.state.Snapshot(),
		Source:    SourceStatus{Status: camera.StatusIdle},
	}
	if source != nil {
		status, err := source.Status()
		st.Source = SourceStatus{Status: status, SourceURL: source.SourceURL()}
		if err != nil {
			st.Source.Error = err.Error()
		}
	}
	return st
}

// Close stops the frame source and ends the session. An outstanding detection
// call is cancelled and its result discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.source != nil {
		s.source.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.watch.Wait()
	s.coord.Wait()
	s.state.Close()
	s.log.Info("Monitoring session closed")
}

func (s *Session) swapSourceLocked() {
	if s.source != nil {
		s.source.Stop()
	}

	active := s.registry.Active()
	source := camera.NewFrameSource(active.CameraSourceURL, s.open, s.camCfg, s.log)
	s.source = source

	zoneID := active.ID
	err := source.Start(s.ctx, func(frame camera.Frame) {
		s.recorder.FrameCaptured()
		s.coord.Submit(s.ctx, zoneID, frame)
	})
	if err != nil {
		s.recorder.SourceOffline()
		s.log.WithFields(logrus.Fields{
			"zone":  zoneID,
			"error": err.Error(),
		}).Warn("Zone camera offline")
	}
}
