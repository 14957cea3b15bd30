// Package relay serves the media side of the monitor on plain net/http: the
// MJPEG live view of the active zone and the Prometheus scrape endpoint.
package relay

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const boundary = "frame"

// JPEGProvider returns the latest encoded frame, or false when none is ready.
type JPEGProvider func() ([]byte, bool)

type Relay struct {
	provider JPEGProvider
	interval time.Duration
	log      *logrus.Logger
	blank    []byte
}

func New(provider JPEGProvider, interval time.Duration, logger *logrus.Logger) (*Relay, error) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	blank, err := placeholderJPEG(640, 360)
	if err != nil {
		return nil, err
	}
	return &Relay{
		provider: provider,
		interval: interval,
		log:      logger,
		blank:    blank,
	}, nil
}

// placeholderJPEG is shown while the source is offline or has no frame.
func placeholderJPEG(width, height int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bg := color.RGBA{R: 32, G: 32, B: 32, A: 255}
	stripe := color.RGBA{R: 200, G: 160, B: 0, A: 255}
	for y := range height {
		for x := range width {
			if (x+y)/24%2 == 0 && y > height*3/8 && y < height*5/8 {
				img.Set(x, y, stripe)
				continue
			}
			img.Set(x, y, bg)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ServeHTTP writes frames as multipart/x-mixed-replace until the client
// disconnects.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.WithField("remote", req.RemoteAddr).Debug("MJPEG client connected")
	defer r.log.WithField("remote", req.RemoteAddr).Debug("MJPEG client disconnected")

	for {
		jpegData := r.blank
		if r.provider != nil {
			if data, ok := r.provider(); ok {
				jpegData = data
			}
		}

		if err := writePart(w, jpegData); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := w.Write([]byte("--" + boundary + "\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

// NewMediaServer mounts the relay on /stream and metrics on /metrics.
func NewMediaServer(addr string, relay *Relay, metrics http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/stream", relay)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
