package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	ErrNotRunning = errors.New("frame source is not running")
	ErrNoFrame    = errors.New("no frame decoded yet")
	ErrStarted    = errors.New("frame source already started")
)

// Feed is a live visual source that keeps its most recently decoded image.
type Feed interface {
	Latest() (image.Image, bool)
	// Err reports why the feed stopped producing images, or nil while healthy.
	Err() error
	Close() error
}

// Opener acquires a feed for a camera source url. An empty url means the
// local capture device.
type Opener func(ctx context.Context, sourceURL string) (Feed, error)

// DeviceOpener acquires the local capture device.
type DeviceOpener func(ctx context.Context) (Feed, error)

// NewOpener routes empty urls to the local device and everything else to a
// remote stream.
func NewOpener(device DeviceOpener, stream StreamOptions) Opener {
	return func(ctx context.Context, sourceURL string) (Feed, error) {
		if sourceURL == "" {
			if device == nil {
				return nil, errors.New("no local capture device available")
			}
			return device(ctx)
		}
		return OpenStream(ctx, sourceURL, stream)
	}
}

type AcquisitionError struct {
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	source := e.Source
	if source == "" {
		source = "local device"
	}
	return fmt.Sprintf("acquire camera %s: %v", source, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}
