package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeFeed struct {
	mu     sync.Mutex
	img    image.Image
	err    error
	closed int
}

func (f *fakeFeed) Latest() (image.Image, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.img, f.img != nil
}

func (f *fakeFeed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeFeed) set(img image.Image, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.img, f.err = img, err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	return img
}

func testConfig() Config {
	return Config{Interval: 5 * time.Millisecond, Width: 32, Height: 18, Quality: 70}
}

func openerFor(feed Feed) Opener {
	return func(ctx context.Context, sourceURL string) (Feed, error) {
		return feed, nil
	}
}

func TestFrameSourceSkipsTicksWithoutFrame(t *testing.T) {
	feed := &fakeFeed{}
	src := NewFrameSource("http://cam", openerFor(feed), testConfig(), quietLogger())

	frames := make(chan Frame, 16)
	if err := src.Start(context.Background(), func(f Frame) {
		select {
		case frames <- f:
		default:
		}
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer src.Stop()

	select {
	case <-frames:
		t.Fatal("frame emitted before the feed decoded anything")
	case <-time.After(40 * time.Millisecond):
	}

	feed.set(solidImage(64, 48), nil)

	select {
	case f := <-frames:
		if f.Width != 32 || f.Height != 18 {
			t.Errorf("frame size = %dx%d, want 32x18", f.Width, f.Height)
		}
		if !strings.HasPrefix(f.DataURL(), "data:image/jpeg;base64,") {
			t.Errorf("DataURL() prefix = %.30q", f.DataURL())
		}
		img, err := jpeg.Decode(bytes.NewReader(f.JPEG))
		if err != nil {
			t.Fatalf("frame is not a JPEG: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 18 {
			t.Errorf("decoded size = %v", b)
		}
	case <-time.After(time.Second):
		t.Fatal("no frame after the feed produced an image")
	}

	if status, _ := src.Status(); status != StatusLive {
		t.Errorf("Status() = %s, want live", status)
	}
}

func TestFrameSourceStopIsIdempotent(t *testing.T) {
	feed := &fakeFeed{}
	feed.set(solidImage(8, 8), nil)
	src := NewFrameSource("", openerFor(feed), testConfig(), quietLogger())

	src.Stop()
	if err := src.Start(context.Background(), func(Frame) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := src.Start(context.Background(), func(Frame) {}); !errors.Is(err, ErrStarted) {
		t.Errorf("second Start() error = %v, want ErrStarted", err)
	}

	src.Stop()
	src.Stop()

	if feed.closed != 1 {
		t.Errorf("feed closed %d times, want 1", feed.closed)
	}
	if status, _ := src.Status(); status != StatusIdle {
		t.Errorf("Status() after Stop = %s, want idle", status)
	}
	if _, err := src.Capture(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Capture() after Stop error = %v, want ErrNotRunning", err)
	}
}

func TestFrameSourceAcquisitionFailure(t *testing.T) {
	calls := 0
	open := func(ctx context.Context, sourceURL string) (Feed, error) {
		calls++
		return nil, errors.New("connection refused")
	}
	src := NewFrameSource("http://down", open, testConfig(), quietLogger())

	emitted := false
	err := src.Start(context.Background(), func(Frame) { emitted = true })

	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("Start() error = %v, want *AcquisitionError", err)
	}
	status, lastErr := src.Status()
	if status != StatusOffline || lastErr == nil {
		t.Errorf("Status() = %s, %v; want offline with error", status, lastErr)
	}

	time.Sleep(20 * time.Millisecond)
	if emitted || calls != 1 {
		t.Errorf("emitted=%v calls=%d, want no frames and no retry", emitted, calls)
	}
	src.Stop()
}

func TestFrameSourceFeedLost(t *testing.T) {
	feed := &fakeFeed{}
	feed.set(solidImage(8, 8), nil)
	src := NewFrameSource("http://cam", openerFor(feed), testConfig(), quietLogger())

	if err := src.Start(context.Background(), func(Frame) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer src.Stop()

	feed.set(nil, ErrStreamEnded)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if status, err := src.Status(); status == StatusOffline {
			if !errors.Is(err, ErrStreamEnded) {
				t.Errorf("last error = %v, want ErrStreamEnded", err)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("source never went offline")
}

func TestFrameSourceCapture(t *testing.T) {
	feed := &fakeFeed{}
	src := NewFrameSource("http://cam", openerFor(feed), Config{Interval: time.Hour, Width: 16, Height: 16}, quietLogger())
	if err := src.Start(context.Background(), func(Frame) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer src.Stop()

	if _, err := src.Capture(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Capture() error = %v, want ErrNoFrame", err)
	}

	feed.set(solidImage(40, 40), nil)
	first, err := src.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	second, _ := src.Capture()
	if second.Seq <= first.Seq {
		t.Errorf("sequence did not advance: %d then %d", first.Seq, second.Seq)
	}
}

func TestNewOpenerRoutesEmptyURLToDevice(t *testing.T) {
	deviceFeed := &fakeFeed{}
	usedDevice := false
	open := NewOpener(func(ctx context.Context) (Feed, error) {
		usedDevice = true
		return deviceFeed, nil
	}, StreamOptions{})

	feed, err := open(context.Background(), "")
	if err != nil || feed != deviceFeed || !usedDevice {
		t.Errorf("open(\"\") = %v, %v; want the device feed", feed, err)
	}

	noDevice := NewOpener(nil, StreamOptions{})
	if _, err := noDevice(context.Background(), ""); err == nil {
		t.Error("expected an error without a device opener")
	}
}
