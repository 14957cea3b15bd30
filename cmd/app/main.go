package main

import (
	"CraneGuard/internal/config"
	"CraneGuard/internal/pipeline"
	"CraneGuard/internal/safety"
	"CraneGuard/internal/zone"
	"CraneGuard/pkg/camera"
	"CraneGuard/pkg/camera/device"
	"CraneGuard/pkg/detector"
	"CraneGuard/pkg/gemini"
	"CraneGuard/pkg/kafka"
	"CraneGuard/pkg/log"
	"CraneGuard/pkg/metrics"
	"CraneGuard/pkg/notify"
	"CraneGuard/pkg/openai"
	"CraneGuard/pkg/utils"
	"CraneGuard/pkg/vision"
	websocketPkg "CraneGuard/pkg/websocket"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

func main() {
	logger := log.NewLogger()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatalf("Error loading config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collectors := metrics.New()
	hub := notify.NewHub()

	sinks := []notify.Sink{notify.NewLogSink(logger), hub}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic, logger)
		if err != nil {
			logger.Fatalf("Error connecting to Kafka: %v", err)
		}
		defer producer.Close()
		sinks = append(sinks, producer)
	}
	notifier := notify.NewFanout(logger, utils.New(), sinks...)

	registry, err := zone.NewRegistry(cfg.Zones, cfg.ActiveZone)
	if err != nil {
		logger.Fatalf("Error loading zones: %v", err)
	}

	state, err := safety.New(safety.Config{
		InitialCurrentWeight: cfg.Safety.InitialCurrentWeight,
		InitialMaxWeight:     cfg.Safety.InitialMaxWeight,
		MinMaxWeight:         cfg.Safety.MinMaxWeight,
		MaxMaxWeight:         cfg.Safety.MaxMaxWeight,
	})
	if err != nil {
		logger.Fatalf("Error creating safety state: %v", err)
	}

	detectorOpts := []detector.Option{
		detector.WithLogger(logger),
		detector.WithHTTPClient(&http.Client{Timeout: cfg.Detection.Timeout}),
	}
	if cfg.Detection.APIKey != "" {
		detectorOpts = append(detectorOpts,
			detector.WithHeader("apikey", cfg.Detection.APIKey),
			detector.WithHeader("Authorization", "Bearer "+cfg.Detection.APIKey),
		)
	}
	client := detector.New(cfg.Detection.Endpoint, detectorOpts...)

	coordinator := pipeline.NewCoordinator(client, state, registry, notifier, logger,
		pipeline.WithRecorder(collectors),
		pipeline.WithDetectTimeout(cfg.Detection.Timeout),
	)

	session := pipeline.NewSession(pipeline.SessionConfig{
		Registry:    registry,
		State:       state,
		Coordinator: coordinator,
		Opener:      camera.NewOpener(device.Opener(cfg.Camera.DeviceIndex), camera.StreamOptions{}),
		Camera: camera.Config{
			Interval: cfg.Camera.Interval,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			Quality:  cfg.Camera.Quality,
		},
		Recorder: collectors,
		Logger:   logger,
	})

	analyzer, closeAnalyzer, err := newAnalyzer(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Error creating %s detection backend: %v", cfg.Detection.Backend, err)
	}
	defer closeAnalyzer()

	server, err := config.NewServer(
		config.WithFiber(config.NewFiber(logger)),
		config.WithLogger(logger),
		config.WithConfig(cfg),
		config.WithValidator(config.NewValidator()),
		config.WithMiddleware(),
		config.WithSession(session),
		config.WithHub(hub),
		config.WithMetrics(collectors),
		config.WithAnalyzer(analyzer),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	if err := server.RegisterHandler(); err != nil {
		logger.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	if err := session.Start(ctx); err != nil {
		logger.Fatalf("Error starting monitoring session: %v", err)
	}

	active := registry.Active()
	logger.WithFields(logrus.Fields{
		"port":    cfg.AppPort,
		"media":   cfg.MediaAddr,
		"zone":    active.ID,
		"backend": analyzer.Name(),
	}).Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}

func newAnalyzer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (vision.Analyzer, func(), error) {
	noop := func() {}

	switch cfg.Detection.Backend {
	case config.BackendGemini:
		analyzer, err := gemini.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.ModelName)
		if err != nil {
			return nil, noop, err
		}
		return analyzer, func() {
			if c, ok := analyzer.(io.Closer); ok {
				_ = c.Close()
			}
		}, nil
	case config.BackendOpenAI:
		analyzer, err := openai.NewChatVision(cfg.OpenAI.APIKey, cfg.OpenAI.VisionModel, cfg.OpenAI.BaseURL)
		return analyzer, noop, err
	case config.BackendWebsocket:
		analyzer, closeFn := websocketPkg.NewInferenceClient(cfg.InferenceWSURL, logger)
		return analyzer, closeFn, nil
	case config.BackendStub:
		return vision.Stub{}, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown backend %q", cfg.Detection.Backend)
	}
}
