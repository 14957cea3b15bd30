package websocketPkg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"CraneGuard/pkg/vision"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// inferenceRequest is the text frame sent to the inference service for
// every image. The reply is the model's raw text.
type inferenceRequest struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
}

type inferenceReply struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
	Code  int    `json:"code,omitempty"`
}

type webSocketClient struct {
	url          string
	log          *logrus.Logger
	conn         *websocket.Conn
	mu           sync.Mutex
	reqMu        sync.Mutex
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	closed       bool
}

// NewInferenceClient returns an Analyzer talking to a remote inference
// service over a single websocket. The first connection is attempted in the
// background; requests reconnect on demand.
func NewInferenceClient(url string, logger *logrus.Logger) (vision.Analyzer, func()) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &webSocketClient{
		url:          url,
		log:          logger,
		pingInterval: 30 * time.Second,
		readTimeout:  20 * time.Second,
		writeTimeout: 5 * time.Second,
	}

	go c.connectInBackground()

	return c, c.CloseConnection
}

func (c *webSocketClient) Name() string {
	return "websocket"
}

func (c *webSocketClient) connectInBackground() {
	if err := c.Reconnect(); err != nil {
		c.log.WithFields(logrus.Fields{
			"url":   c.url,
			"error": err.Error(),
		}).Warn("[websocketPkg.connectInBackground] initial connection failed, will retry on demand")
		return
	}
	c.log.WithField("url", c.url).Info("[websocketPkg.connectInBackground] connected to inference service")
}

func (c *webSocketClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *webSocketClient) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("inference client closed")
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.url == "" {
		return errors.New("inference websocket URL not configured")
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.WithField("error", err.Error()).Debug("[websocketPkg.pingHandler] error sending pong")
		}
		return nil
	})

	c.conn = conn
	go c.keepAlive(conn)

	return nil
}

func (c *webSocketClient) CloseConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *webSocketClient) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.WithField("error", err.Error()).Warn("[websocketPkg.keepAlive] ping failed, marking connection as dead")
			c.conn = nil
			conn.Close()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

func (c *webSocketClient) getConnection() (*websocket.Conn, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		return conn, nil
	}
	if err := c.Reconnect(); err != nil {
		return nil, fmt.Errorf("cannot connect to inference service: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, errors.New("not connected to inference service")
	}
	return c.conn, nil
}

func (c *webSocketClient) dropConnection(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

func (c *webSocketClient) AnalyzeImage(ctx context.Context, img vision.Image, prompt string) (string, error) {
	// One request in flight per connection; replies are not tagged.
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	conn, err := c.getConnection()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(inferenceRequest{Prompt: prompt, Image: img.DataURL()})
	if err != nil {
		return "", err
	}

	writeDeadline := time.Now().Add(c.writeTimeout)
	readDeadline := time.Now().Add(c.readTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(readDeadline) {
		readDeadline = dl
	}

	conn.SetWriteDeadline(writeDeadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.dropConnection(conn)
		return "", fmt.Errorf("error sending frame: %w", err)
	}

	conn.SetReadDeadline(readDeadline)
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.dropConnection(conn)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("error reading reply: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var reply inferenceReply
	if err := json.Unmarshal(message, &reply); err != nil {
		// Plain text replies are passed through for the parser to handle.
		return string(message), nil
	}
	if reply.Error != "" {
		if reply.Code == 429 || strings.Contains(strings.ToLower(reply.Error), "rate limit") {
			return "", fmt.Errorf("%w: %s", vision.ErrRateLimited, reply.Error)
		}
		return "", fmt.Errorf("inference service: %s", reply.Error)
	}
	if reply.Text == "" {
		return "", vision.ErrEmptyReply
	}

	return reply.Text, nil
}
