package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
	OutcomeDiscarded   = "discarded"
)

// Metrics holds the pipeline collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	framesCaptured prometheus.Counter
	framesDropped  prometheus.Counter
	sourceOffline  prometheus.Counter
	detections     *prometheus.CounterVec
	detectDuration prometheus.Histogram
	busy           prometheus.Gauge
	alert          prometheus.Gauge
	humans         prometheus.Gauge
	endpointServed *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crane_frames_captured_total",
			Help: "Frames rasterized by the active frame source",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crane_frames_dropped_total",
			Help: "Frames discarded because a detection call was already in flight",
		}),
		sourceOffline: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crane_source_offline_total",
			Help: "Frame sources that failed to acquire or lost their feed",
		}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crane_detections_total",
			Help: "Completed detection calls by outcome",
		}, []string{"outcome"}),
		detectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crane_detection_duration_seconds",
			Help:    "Latency of detection calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crane_pipeline_busy",
			Help: "1 while a detection call is in flight",
		}),
		alert: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crane_safety_alert",
			Help: "1 while the safety state reports an alert",
		}),
		humans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crane_humans_detected",
			Help: "People in the crane path according to the latest detection",
		}),
		endpointServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crane_detect_endpoint_requests_total",
			Help: "Requests answered by the detection endpoint by status code class",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.framesCaptured,
		m.framesDropped,
		m.sourceOffline,
		m.detections,
		m.detectDuration,
		m.busy,
		m.alert,
		m.humans,
		m.endpointServed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) FrameCaptured() { m.framesCaptured.Inc() }

func (m *Metrics) FrameDropped() { m.framesDropped.Inc() }

func (m *Metrics) SourceOffline() { m.sourceOffline.Inc() }

func (m *Metrics) SetBusy(busy bool) { m.busy.Set(boolToFloat(busy)) }

func (m *Metrics) DetectionFinished(outcome string, took time.Duration) {
	m.detections.WithLabelValues(outcome).Inc()
	m.detectDuration.Observe(took.Seconds())
}

func (m *Metrics) SafetyChanged(hasAlert bool, humans int) {
	m.alert.Set(boolToFloat(hasAlert))
	m.humans.Set(float64(humans))
}

func (m *Metrics) EndpointServed(status string) {
	m.endpointServed.WithLabelValues(status).Inc()
}

// Registry exposes the registry for tests and additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
