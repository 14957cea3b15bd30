package monitorHandler

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// handleWebSocket streams safety snapshots and notifications until the client
// goes away. Client messages are read only to notice the close.
func (h *MonitorHandler) handleWebSocket(c *websocket.Conn) {
	h.log.Info("Monitor WebSocket client connected")
	defer h.log.Info("Monitor WebSocket client disconnected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Errorf("Monitor WebSocket error: %v", err)
				}
				return
			}
		}
	}()

	events := h.monitorService.Events(ctx)
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				h.log.Errorf("Error setting write deadline: %v", err)
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				h.log.Errorf("Error writing %s event: %v", ev.Type, err)
				return
			}
		case <-ping.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				h.log.Warnf("Ping failed, dropping client: %v", err)
				return
			}
		}
	}
}
