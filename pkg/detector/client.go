package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"CraneGuard/internal/entity"
	"github.com/sirupsen/logrus"
)

const maxResponseBytes = 1 << 20

type IDetector interface {
	Detect(ctx context.Context, imageData string) (entity.DetectionResult, error)
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	headers    map[string]string
	log        *logrus.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader adds a header to every request, e.g. an apikey or bearer token
// expected by a hosted function gateway.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    make(map[string]string),
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type detectRequest struct {
	ImageData string `json:"imageData"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Detect sends one encoded frame and maps the reply. It makes a single attempt.
// A *TransportError is returned when the endpoint cannot be reached or answers
// with a non-success status; an unparseable success body yields the safe default.
func (c *Client) Detect(ctx context.Context, imageData string) (entity.DetectionResult, error) {
	payload, err := json.Marshal(detectRequest{ImageData: imageData})
	if err != nil {
		return entity.DetectionResult{}, fmt.Errorf("encode detection request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return entity.DetectionResult{}, fmt.Errorf("build detection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return entity.DetectionResult{}, &TransportError{
			Category: CategoryTransport,
			Message:  err.Error(),
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return entity.DetectionResult{}, &TransportError{
			StatusCode: resp.StatusCode,
			Category:   CategoryTransport,
			Message:    err.Error(),
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		return entity.DetectionResult{}, newStatusError(resp.StatusCode, eb.Error)
	}

	result, err := Parse(messagePayload(body))
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"endpoint": c.endpoint,
			"error":    err.Error(),
		}).Warn("Detection payload rejected, using safe default")
		return entity.SafeDefault(), nil
	}

	c.log.WithFields(logrus.Fields{
		"human_detected": result.HumanDetected,
		"human_count":    result.HumanCount,
		"confidence":     result.Confidence,
		"latency_ms":     time.Since(start).Milliseconds(),
	}).Debug("Detection completed")

	return result, nil
}
