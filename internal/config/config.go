package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"CraneGuard/internal/entity"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	BackendStub      = "stub"
	BackendGemini    = "gemini"
	BackendOpenAI    = "openai"
	BackendWebsocket = "websocket"
)

type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"3000"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"debug"`

	MediaAddr     string        `env:"MEDIA_ADDR" envDefault:":9090"`
	RelayInterval time.Duration `env:"RELAY_INTERVAL" envDefault:"200ms"`

	Detection struct {
		Endpoint string        `env:"ENDPOINT" envDefault:"http://localhost:3000/api/v1/detect-humans"`
		APIKey   string        `env:"API_KEY"`
		Timeout  time.Duration `env:"TIMEOUT" envDefault:"20s"`
		Backend  string        `env:"BACKEND" envDefault:"stub"`
	} `envPrefix:"DETECTION_"`

	RateLimit struct {
		PerSecond      float64 `env:"DETECT_RATE_PER_SEC" envDefault:"2"`
		Burst          int     `env:"DETECT_RATE_BURST" envDefault:"4"`
		UpstreamPerMin int     `env:"UPSTREAM_RATE_PER_MIN" envDefault:"30"`
	}

	Gemini struct {
		APIKey    string `env:"API_KEY"`
		ModelName string `env:"MODEL_NAME" envDefault:"gemini-1.5-flash"`
	} `envPrefix:"GEMINI_"`

	OpenAI struct {
		APIKey      string `env:"API_KEY"`
		VisionModel string `env:"VISION_MODEL" envDefault:"gpt-4o-mini"`
		BaseURL     string `env:"BASE_URL"`
	} `envPrefix:"OPENAI_"`

	InferenceWSURL string `env:"INFERENCE_WS_URL" envDefault:"ws://localhost:8000/api/v1/humans/ws"`

	Camera struct {
		Interval    time.Duration `env:"CAPTURE_INTERVAL" envDefault:"1500ms"`
		Width       int           `env:"FRAME_WIDTH" envDefault:"640"`
		Height      int           `env:"FRAME_HEIGHT" envDefault:"360"`
		Quality     int           `env:"JPEG_QUALITY" envDefault:"80"`
		DeviceIndex int           `env:"DEVICE_INDEX" envDefault:"0"`
	}

	Safety struct {
		InitialCurrentWeight float64 `env:"INITIAL_CURRENT_WEIGHT" envDefault:"5000"`
		InitialMaxWeight     float64 `env:"INITIAL_MAX_WEIGHT" envDefault:"10000"`
		MinMaxWeight         float64 `env:"MIN_MAX_WEIGHT" envDefault:"100"`
		MaxMaxWeight         float64 `env:"MAX_MAX_WEIGHT" envDefault:"100000"`
	}

	ActiveZone string `env:"ACTIVE_ZONE" envDefault:"zone1"`
	ZonesFile  string `env:"ZONES_FILE"`

	Kafka struct {
		Brokers    []string `env:"BROKERS" envSeparator:","`
		AlertTopic string   `env:"ALERT_TOPIC" envDefault:"crane-safety-alerts"`
	} `envPrefix:"KAFKA_"`

	Zones []entity.Zone
}

type zonesFile struct {
	Active string        `yaml:"active"`
	Zones  []entity.Zone `yaml:"zones"`
}

// Load reads .env when present, then the environment, then the optional zones
// file. Environment values win over .env entries.
func Load(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.WithField("error", err.Error()).Debug("No .env file loaded")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Zones = entity.DefaultZones()
	if cfg.ZonesFile != "" {
		zf, err := readZonesFile(cfg.ZonesFile)
		if err != nil {
			return nil, err
		}
		cfg.Zones = zf.Zones
		if zf.Active != "" && os.Getenv("ACTIVE_ZONE") == "" {
			cfg.ActiveZone = zf.Active
		}
	}

	cfg.Detection.Backend = strings.ToLower(strings.TrimSpace(cfg.Detection.Backend))
	if !lo.Contains([]string{BackendStub, BackendGemini, BackendOpenAI, BackendWebsocket}, cfg.Detection.Backend) {
		return nil, fmt.Errorf("unknown DETECTION_BACKEND %q", cfg.Detection.Backend)
	}

	return cfg, nil
}

func readZonesFile(path string) (*zonesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("zones file %s not found", path)
		}
		return nil, fmt.Errorf("read zones file: %w", err)
	}

	var zf zonesFile
	if err := yaml.Unmarshal(data, &zf); err != nil {
		return nil, fmt.Errorf("parse zones file: %w", err)
	}

	zf.Zones = lo.Map(zf.Zones, func(z entity.Zone, _ int) entity.Zone {
		z.ID = strings.TrimSpace(z.ID)
		z.Name = strings.TrimSpace(z.Name)
		z.Location = strings.TrimSpace(z.Location)
		z.CameraSourceURL = strings.TrimSpace(z.CameraSourceURL)
		if z.Name == "" {
			z.Name = z.ID
		}
		return z
	})

	return &zf, nil
}

// Port is the numeric part of an address like ":9090".
func Port(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i+1:]
	}
	return addr
}
