package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"CraneGuard/internal/entity"
	"CraneGuard/internal/safety"
	"CraneGuard/internal/zone"
	"CraneGuard/pkg/camera"
)

type stubFeed struct {
	mu     sync.Mutex
	img    image.Image
	closed bool
}

func (f *stubFeed) Latest() (image.Image, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.img, f.img != nil
}

func (f *stubFeed) Err() error { return nil }

func (f *stubFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *stubFeed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type stubOpener struct {
	mu     sync.Mutex
	opened []string
	feeds  []*stubFeed
	fail   map[string]bool
}

func (o *stubOpener) open(_ context.Context, sourceURL string) (camera.Feed, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.opened = append(o.opened, sourceURL)
	if o.fail[sourceURL] {
		return nil, errors.New("camera unreachable")
	}
	feed := &stubFeed{img: image.NewRGBA(image.Rect(0, 0, 16, 16))}
	o.feeds = append(o.feeds, feed)
	return feed, nil
}

func (o *stubOpener) history() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

func newTestSession(t *testing.T, det *instantDetector, opener *stubOpener, interval time.Duration) *Session {
	t.Helper()

	zones := []entity.Zone{
		{ID: "zone1", Name: "Zone A", Location: "East Sector", CameraSourceURL: "http://cam-a"},
		{ID: "zone2", Name: "Zone B", Location: "West Sector", CameraSourceURL: "http://cam-b"},
	}
	registry, err := zone.NewRegistry(zones, "zone1")
	if err != nil {
		t.Fatal(err)
	}
	state, err := safety.New(safety.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	coord := NewCoordinator(det, state, registry, &recordingSink{}, quietLogger())
	s := NewSession(SessionConfig{
		Registry:    registry,
		State:       state,
		Coordinator: coord,
		Opener:      opener.open,
		Camera:      camera.Config{Interval: interval, Width: 8, Height: 8},
		Logger:      quietLogger(),
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSessionCaptureLoopCommitsDetections(t *testing.T) {
	det := &instantDetector{result: entity.DetectionResult{HumanDetected: true, HumanCount: 1, Confidence: 70}}
	s := newTestSession(t, det, &stubOpener{}, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Safety().Snapshot().HumanDetected {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("capture loop never committed a detection")
}

func TestSessionSelectZoneSwapsSource(t *testing.T) {
	opener := &stubOpener{}
	s := newTestSession(t, &instantDetector{}, opener, time.Hour)

	z, err := s.SelectZone("zone2")
	if err != nil {
		t.Fatalf("SelectZone() error = %v", err)
	}
	if z.Name != "Zone B" {
		t.Errorf("SelectZone() zone = %+v", z)
	}

	got := opener.history()
	if len(got) != 2 || got[0] != "http://cam-a" || got[1] != "http://cam-b" {
		t.Errorf("opened = %v, want [cam-a cam-b]", got)
	}
	if !opener.feeds[0].isClosed() {
		t.Error("previous zone's feed was not released")
	}
	if st := s.Status(); st.Zone.ID != "zone2" || st.Source.SourceURL != "http://cam-b" || st.Source.Status != camera.StatusLive {
		t.Errorf("Status() = %+v", st)
	}

	if _, err := s.SelectZone("zone2"); err != nil {
		t.Fatalf("re-select error = %v", err)
	}
	if n := len(opener.history()); n != 2 {
		t.Errorf("re-selecting the active zone re-acquired the camera (%d opens)", n)
	}

	if _, err := s.SelectZone("zone9"); !errors.Is(err, zone.ErrZoneNotFound) {
		t.Errorf("SelectZone(zone9) error = %v", err)
	}
}

func TestSessionUpdateZoneCamera(t *testing.T) {
	opener := &stubOpener{}
	s := newTestSession(t, &instantDetector{}, opener, time.Hour)

	if _, err := s.UpdateZoneCamera("zone2", "http://cam-b2"); err != nil {
		t.Fatalf("UpdateZoneCamera(zone2) error = %v", err)
	}
	if n := len(opener.history()); n != 1 {
		t.Errorf("inactive zone update re-acquired the camera (%d opens)", n)
	}

	if _, err := s.UpdateZoneCamera("zone1", "http://cam-a2"); err != nil {
		t.Fatalf("UpdateZoneCamera(zone1) error = %v", err)
	}
	got := opener.history()
	if len(got) != 2 || got[1] != "http://cam-a2" {
		t.Errorf("opened = %v, want re-acquisition of cam-a2", got)
	}
}

func TestSessionOfflineCamera(t *testing.T) {
	opener := &stubOpener{fail: map[string]bool{"http://cam-a": true}}
	s := newTestSession(t, &instantDetector{}, opener, time.Hour)

	st := s.Status()
	if st.Source.Status != camera.StatusOffline || st.Source.Error == "" {
		t.Errorf("Source = %+v, want offline with error", st.Source)
	}
	if err := s.Scan(); !errors.Is(err, camera.ErrNotRunning) {
		t.Errorf("Scan() on offline source error = %v, want ErrNotRunning", err)
	}

	if _, err := s.SelectZone("zone2"); err != nil {
		t.Fatalf("SelectZone() error = %v", err)
	}
	if st := s.Status(); st.Source.Status != camera.StatusLive {
		t.Errorf("zone2 source = %+v, want live", st.Source)
	}
}

func TestSessionScan(t *testing.T) {
	det := &instantDetector{result: entity.DetectionResult{HumanDetected: false, HumanCount: 0}}
	s := newTestSession(t, det, &stubOpener{}, time.Hour)

	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	s.coord.Wait()

	if got := det.calls.Load(); got != 1 {
		t.Errorf("detector calls = %d, want 1", got)
	}
	if jpegData, ok := s.LatestJPEG(); !ok || len(jpegData) == 0 {
		t.Error("LatestJPEG() returned nothing for a live source")
	}
}

func TestSessionClose(t *testing.T) {
	opener := &stubOpener{}
	s := newTestSession(t, &instantDetector{}, opener, time.Hour)

	s.Close()
	s.Close()

	if !opener.feeds[0].isClosed() {
		t.Error("feed not released on Close")
	}
	if _, err := s.SelectZone("zone2"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SelectZone() after Close error = %v", err)
	}
	if err := s.Scan(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Scan() after Close error = %v", err)
	}
}
