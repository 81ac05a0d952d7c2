package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*Config) bool
	}{
		{
			name: "loads with all required vars",
			envVars: map[string]string{
				"ENV":             "production",
				"DATABASE_URL":    "postgres://localhost/test",
				"PROVIDER_TYPE":   "dlib",
				"MATCH_TOLERANCE": "0.45",
				"FRAME_INTERVAL":  "250ms",
				"MQTT_BROKER":     "tcp://broker:1883",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Environment == "production" &&
					c.DatabaseURL == "postgres://localhost/test" &&
					c.ProviderType == "dlib" &&
					c.MatchTolerance == 0.45 &&
					c.FrameInterval == 250*time.Millisecond &&
					c.MQTTBroker == "tcp://broker:1883"
			},
		},
		{
			name: "uses defaults when optional vars missing",
			envVars: map[string]string{
				"DATABASE_URL": "sqlite://./data/facewatch.db",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Environment == "development" &&
					c.ProviderType == "deepface" &&
					c.MatchTolerance == 0.6 &&
					c.FrameInterval == 500*time.Millisecond &&
					c.EmbeddingDim == 128 &&
					c.EventMinConfidence == 0 &&
					c.RegistryRefreshInterval == 0 &&
					c.MQTTTopic == "facewatch/recognitions" &&
					c.OpsAddr == ""
			},
		},
		{
			name:    "fails when DATABASE_URL missing",
			envVars: map[string]string{},
			wantErr: true,
		},
		{
			name: "fails on unknown provider",
			envVars: map[string]string{
				"DATABASE_URL":  "postgres://localhost/test",
				"PROVIDER_TYPE": "opencv",
			},
			wantErr: true,
		},
		{
			name: "fails on non-positive tolerance",
			envVars: map[string]string{
				"DATABASE_URL":    "postgres://localhost/test",
				"MATCH_TOLERANCE": "0",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error: %v", err)
				return
			}

			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Load() config check failed, got: %+v", cfg)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{MatchTolerance: 0.6, FrameInterval: time.Second, EmbeddingDim: 128, ProviderType: "mock"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"rekognition detector", func(c *Config) { c.DetectorType = "rekognition" }, false},
		{"zero interval", func(c *Config) { c.FrameInterval = 0 }, true},
		{"negative tolerance", func(c *Config) { c.MatchTolerance = -1 }, true},
		{"zero dimension", func(c *Config) { c.EmbeddingDim = 0 }, true},
		{"unknown detector", func(c *Config) { c.DetectorType = "yolo" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_DatabaseDriver(t *testing.T) {
	tests := []struct {
		url        string
		wantDriver string
		wantPath   string
	}{
		{"postgres://u:p@db:5432/facewatch", DriverPostgres, ""},
		{"postgresql://db/facewatch", DriverPostgres, ""},
		{"sqlite://./data/facewatch.db", DriverSQLite, "./data/facewatch.db"},
		{"/var/lib/facewatch/facewatch.db", DriverSQLite, "/var/lib/facewatch/facewatch.db"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			c := &Config{DatabaseURL: tt.url}
			if got := c.DatabaseDriver(); got != tt.wantDriver {
				t.Errorf("DatabaseDriver() = %v, want %v", got, tt.wantDriver)
			}
			if tt.wantPath != "" && c.SQLitePath() != tt.wantPath {
				t.Errorf("SQLitePath() = %v, want %v", c.SQLitePath(), tt.wantPath)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"development", "development", true},
		{"production", "production", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Environment: tt.env}
			if got := c.IsDevelopment(); got != tt.want {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{" WARN ", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"", 0, false},
		{"verbose", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseLevel(tt.in)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("parseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
