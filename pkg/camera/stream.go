package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

var ErrStreamEnded = errors.New("camera stream ended")

type StreamOptions struct {
	Client *http.Client
	// PollInterval paces re-fetching when the source serves single images
	// instead of a multipart stream.
	PollInterval time.Duration
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.Client == nil {
		o.Client = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 10 * time.Second,
			},
		}
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	return o
}

// StreamFeed reads a remote camera: either an MJPEG multipart/x-mixed-replace
// stream or an endpoint that returns one still image per request.
type StreamFeed struct {
	url  string
	opts StreamOptions

	mu     sync.RWMutex
	latest image.Image
	err    error

	cancel context.CancelFunc
	done   chan struct{}
}

// OpenStream performs the first request synchronously so an unreachable camera
// surfaces as an *AcquisitionError. Decoding continues in the background until
// Close.
func OpenStream(ctx context.Context, sourceURL string, opts StreamOptions) (*StreamFeed, error) {
	opts = opts.withDefaults()
	streamCtx, cancel := context.WithCancel(ctx)

	f := &StreamFeed{
		url:    sourceURL,
		opts:   opts,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	resp, err := f.get(streamCtx)
	if err != nil {
		cancel()
		return nil, &AcquisitionError{Source: sourceURL, Err: err}
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case err == nil && strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "":
		go f.readMultipart(streamCtx, resp.Body, params["boundary"])
	case err == nil && strings.HasPrefix(mediaType, "image/"):
		go f.poll(streamCtx, resp.Body)
	default:
		resp.Body.Close()
		cancel()
		return nil, &AcquisitionError{
			Source: sourceURL,
			Err:    fmt.Errorf("unsupported content type %q", resp.Header.Get("Content-Type")),
		}
	}

	return f, nil
}

func (f *StreamFeed) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("camera responded %s", resp.Status)
	}
	return resp, nil
}

func (f *StreamFeed) readMultipart(ctx context.Context, body io.ReadCloser, boundary string) {
	defer close(f.done)
	defer body.Close()

	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			f.fail(ctx, err)
			return
		}

		img, _, err := image.Decode(part)
		part.Close()
		if err != nil {
			// corrupt frame, wait for the next part
			continue
		}
		f.store(img)
	}
}

func (f *StreamFeed) poll(ctx context.Context, first io.ReadCloser) {
	defer close(f.done)

	body := first
	ticker := time.NewTicker(f.opts.PollInterval)
	defer ticker.Stop()

	for {
		img, _, err := image.Decode(body)
		body.Close()
		if err != nil {
			f.fail(ctx, fmt.Errorf("decode snapshot: %w", err))
			return
		}
		f.store(img)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		resp, err := f.get(ctx)
		if err != nil {
			f.fail(ctx, err)
			return
		}
		body = resp.Body
	}
}

func (f *StreamFeed) store(img image.Image) {
	f.mu.Lock()
	f.latest = img
	f.mu.Unlock()
}

func (f *StreamFeed) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	if errors.Is(err, io.EOF) {
		err = ErrStreamEnded
	}
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *StreamFeed) Latest() (image.Image, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.latest, f.latest != nil
}

func (f *StreamFeed) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

func (f *StreamFeed) Close() error {
	f.cancel()
	<-f.done
	return nil
}
