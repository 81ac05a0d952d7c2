package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	// Provider
	ProviderType       string `envconfig:"PROVIDER_TYPE" default:"deepface"`
	DetectorType       string `envconfig:"DETECTOR_TYPE"`
	DeepFaceURL        string `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel      string `envconfig:"DEEPFACE_MODEL" default:"Facenet"`
	DeepFaceDetector   string `envconfig:"DEEPFACE_DETECTOR" default:"opencv"`
	DlibModelsDir      string `envconfig:"DLIB_MODELS_DIR" default:"./models"`
	DlibDetectionModel string `envconfig:"DLIB_DETECTION_MODEL" default:"hog"`
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	EmbeddingDim       int    `envconfig:"EMBEDDING_DIM" default:"128"`

	// Recognition
	MatchTolerance     float64       `envconfig:"MATCH_TOLERANCE" default:"0.6"`
	FrameInterval      time.Duration `envconfig:"FRAME_INTERVAL" default:"500ms"`
	EventMinConfidence float64       `envconfig:"EVENT_MIN_CONFIDENCE" default:"0"`

	// Capture
	CameraIndex int     `envconfig:"CAMERA_INDEX" default:"0"`
	FrameWidth  int     `envconfig:"FRAME_WIDTH" default:"640"`
	FrameHeight int     `envconfig:"FRAME_HEIGHT" default:"480"`
	CaptureFPS  float64 `envconfig:"CAPTURE_FPS" default:"30"`

	// Registry and events
	RegistryRefreshInterval time.Duration `envconfig:"REGISTRY_REFRESH_INTERVAL" default:"0"`
	EventBufferSize         int           `envconfig:"EVENT_BUFFER_SIZE" default:"256"`
	EventBatchInterval      time.Duration `envconfig:"EVENT_BATCH_INTERVAL" default:"1s"`
	EventPublishTimeout     time.Duration `envconfig:"EVENT_PUBLISH_TIMEOUT" default:"2s"`

	// MQTT, disabled when MQTT_BROKER is empty
	MQTTBroker   string `envconfig:"MQTT_BROKER"`
	MQTTClientID string `envconfig:"MQTT_CLIENT_ID" default:"facewatch"`
	MQTTTopic    string `envconfig:"MQTT_TOPIC" default:"facewatch/recognitions"`
	MQTTUsername string `envconfig:"MQTT_USERNAME"`
	MQTTPassword string `envconfig:"MQTT_PASSWORD"`

	// Webhook, disabled when WEBHOOK_URL is empty
	WebhookURL          string        `envconfig:"WEBHOOK_URL"`
	WebhookSecret       string        `envconfig:"WEBHOOK_SECRET"`
	WebhookTimeout      time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	WebhookMaxAttempts  int           `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"3"`
	WebhookDrainTimeout time.Duration `envconfig:"WEBHOOK_DRAIN_TIMEOUT" default:"5s"`

	// Ops server, disabled when empty
	OpsAddr string `envconfig:"OPS_ADDR"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MatchTolerance <= 0 {
		return fmt.Errorf("MATCH_TOLERANCE must be positive, got %v", c.MatchTolerance)
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("FRAME_INTERVAL must be positive, got %v", c.FrameInterval)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	switch c.ProviderType {
	case "mock", "deepface", "dlib":
	default:
		return fmt.Errorf("unknown PROVIDER_TYPE %q (use: mock, deepface, dlib)", c.ProviderType)
	}
	switch c.DetectorType {
	case "", "rekognition":
	default:
		return fmt.Errorf("unknown DETECTOR_TYPE %q (use: rekognition or leave empty)", c.DetectorType)
	}
	return nil
}

// DatabaseDriver picks the storage backend from DATABASE_URL.
func (c *Config) DatabaseDriver() string {
	u := strings.ToLower(c.DatabaseURL)
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DriverPostgres
	default:
		return DriverSQLite
	}
}

// SQLitePath is the file path for the SQLite backend.
func (c *Config) SQLitePath() string {
	return strings.TrimPrefix(c.DatabaseURL, "sqlite://")
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
