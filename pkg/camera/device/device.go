// Package device opens the local capture device through OpenCV.
package device

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"CraneGuard/pkg/camera"
	"gocv.io/x/gocv"
)

const (
	hintWidth  = 1280
	hintHeight = 720
)

var ErrDeviceClosed = errors.New("capture device stopped delivering frames")

type Feed struct {
	cam  *gocv.VideoCapture
	mu   sync.RWMutex
	last image.Image
	err  error

	stop chan struct{}
	done chan struct{}
}

// Opener returns a camera.DeviceOpener for the device at index.
func Opener(index int) camera.DeviceOpener {
	return func(ctx context.Context) (camera.Feed, error) {
		return Open(index)
	}
}

func Open(index int) (*Feed, error) {
	cam, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, &camera.AcquisitionError{Err: fmt.Errorf("open device %d: %w", index, err)}
	}
	if !cam.IsOpened() {
		cam.Close()
		return nil, &camera.AcquisitionError{Err: fmt.Errorf("device %d not available", index)}
	}

	cam.Set(gocv.VideoCaptureFrameWidth, hintWidth)
	cam.Set(gocv.VideoCaptureFrameHeight, hintHeight)

	f := &Feed{
		cam:  cam,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go f.read()
	return f, nil
}

func (f *Feed) read() {
	defer close(f.done)

	mat := gocv.NewMat()
	defer mat.Close()

	misses := 0
	for {
		select {
		case <-f.stop:
			return
		default:
		}

		if ok := f.cam.Read(&mat); !ok || mat.Empty() {
			misses++
			if misses > 50 {
				f.mu.Lock()
				f.err = ErrDeviceClosed
				f.mu.Unlock()
				return
			}
			time.Sleep(20 * time.Millisecond)
			continue
		}
		misses = 0

		img, err := mat.ToImage()
		if err != nil {
			continue
		}

		f.mu.Lock()
		f.last = img
		f.mu.Unlock()
	}
}

func (f *Feed) Latest() (image.Image, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.last, f.last != nil
}

func (f *Feed) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

func (f *Feed) Close() error {
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
	<-f.done
	return f.cam.Close()
}
