package config

import (
	detectionHandler "CraneGuard/internal/api/detection/handler"
	detectionService "CraneGuard/internal/api/detection/service"
	monitorHandler "CraneGuard/internal/api/monitor/handler"
	monitorService "CraneGuard/internal/api/monitor/service"
	"CraneGuard/internal/api/monitor/relay"
	"CraneGuard/internal/middleware"
	"CraneGuard/internal/pipeline"
	"CraneGuard/pkg/metrics"
	"CraneGuard/pkg/notify"
	"CraneGuard/pkg/utils"
	"CraneGuard/pkg/vision"
	"context"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"net/http"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	cfg        *Config
	log        *logrus.Logger
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	handlers   []handler
	session    *pipeline.Session
	hub        *notify.Hub
	metrics    *metrics.Metrics
	analyzer   vision.Analyzer
	media      *http.Server
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if server.session == nil {
		return nil, fmt.Errorf("monitoring session is required")
	}
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}
	if server.analyzer == nil {
		server.analyzer = vision.Stub{}
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithConfig(cfg *Config) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.cfg == nil {
			return fmt.Errorf("config must be loaded before middleware")
		}
		s.middleware = middleware.New(s.log, middleware.Config{
			RatePerSecond: s.cfg.RateLimit.PerSecond,
			Burst:         s.cfg.RateLimit.Burst,
		})
		return nil
	}
}

func WithSession(session *pipeline.Session) ServerOption {
	return func(s *Server) error {
		s.session = session
		return nil
	}
}

func WithHub(hub *notify.Hub) ServerOption {
	return func(s *Server) error {
		s.hub = hub
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}

func WithAnalyzer(analyzer vision.Analyzer) ServerOption {
	return func(s *Server) error {
		s.analyzer = analyzer
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() error {
	// Detection endpoint
	detectionServices := detectionService.NewDetectionService(s.log, s.analyzer, s.cfg.RateLimit.UpstreamPerMin)
	var recorder detectionHandler.EndpointRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, detectionServices, s.utils, recorder, s.cfg.Detection.Timeout)

	// Monitor
	monitorServices := monitorService.NewMonitorService(s.log, s.session, s.hub)
	monitorHandlers := monitorHandler.New(s.log, s.validator, s.middleware, monitorServices, Port(s.cfg.MediaAddr))

	// Media server
	liveRelay, err := relay.New(s.session.LatestJPEG, s.cfg.RelayInterval, s.log)
	if err != nil {
		return fmt.Errorf("create live relay: %w", err)
	}
	var metricsHandler http.Handler
	if s.metrics != nil {
		metricsHandler = s.metrics.Handler()
	}
	s.media = relay.NewMediaServer(s.cfg.MediaAddr, liveRelay, metricsHandler)

	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware)

	s.engine.Get("/", monitorHandlers.Dashboard)
	s.setupHealthCheck()
	s.handlers = append(s.handlers, detectionHandlers, monitorHandlers)
	return nil
}

func (s *Server) Run() error {
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	if s.media != nil {
		go func() {
			s.log.WithField("addr", s.media.Addr).Info("Media server listening")
			if err := s.media.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.WithField("error", err.Error()).Error("Media server stopped")
			}
		}()
	}

	if err := s.engine.Listen(fmt.Sprintf(":%s", s.cfg.AppPort)); err != nil {
		return err
	}

	return nil
}

// Shutdown stops both servers and then the monitoring session.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.engine.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api server: %w", err))
	}
	if s.media != nil {
		if err := s.media.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("media server: %w", err))
		}
	}
	s.session.Close()
	if s.hub != nil {
		s.hub.Close()
	}
	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/health", func(ctx *fiber.Ctx) error {
		status := s.session.Status()
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
			"backend": s.analyzer.Name(),
			"zone":    status.Zone.ID,
			"source":  status.Source.Status,
		})
	})
}
