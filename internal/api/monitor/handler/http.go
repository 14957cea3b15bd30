package monitorHandler

import (
	monitorService "CraneGuard/internal/api/monitor/service"
	"CraneGuard/internal/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type MonitorHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	monitorService monitorService.IMonitorService
	streamPort     string
}

// New builds the operator API handler. streamPort is the media server port
// the dashboard points its live view at.
func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ms monitorService.IMonitorService,
	streamPort string,
) *MonitorHandler {
	return &MonitorHandler{
		log:            log,
		validator:      validator,
		middleware:     middleware,
		monitorService: ms,
		streamPort:     streamPort,
	}
}

func (h *MonitorHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	monitor := srv.Group("/monitor")
	monitor.Get("/zones", h.ListZones)
	monitor.Post("/zones/:id/select", h.SelectZone)
	monitor.Put("/zones/:id/camera", h.UpdateCamera)

	monitor.Get("/safety", h.GetSafety)
	monitor.Put("/safety/current-weight", h.SetCurrentWeight)
	monitor.Put("/safety/max-weight", h.SetMaxWeight)

	monitor.Get("/status", h.GetStatus)
	monitor.Post("/scan", h.middleware.NewRateLimiter, h.Scan)

	monitor.Use("/ws", wsMiddleware)
	monitor.Get("/ws", websocket.New(h.handleWebSocket))
}
