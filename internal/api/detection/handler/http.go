package detectionHandler

import (
	detectionService "CraneGuard/internal/api/detection/service"
	"CraneGuard/internal/middleware"
	"CraneGuard/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"time"
)

type EndpointRecorder interface {
	EndpointServed(status string)
}

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	utils            utils.IUtils
	recorder         EndpointRecorder
	timeout          time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
	utils utils.IUtils,
	recorder EndpointRecorder,
	timeout time.Duration,
) *DetectionHandler {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &DetectionHandler{
		detectionService: ds,
		log:              log,
		validator:        validator,
		middleware:       middleware,
		utils:            utils,
		recorder:         recorder,
		timeout:          timeout,
	}
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	srv.Options("/detect-humans", h.middleware.NewCORSMiddleware)
	srv.Post("/detect-humans", h.middleware.NewCORSMiddleware, h.middleware.NewRateLimiter, h.DetectHumans)
}
