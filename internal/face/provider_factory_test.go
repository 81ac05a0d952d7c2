package face

import (
	"context"
	"os"
	"testing"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/config"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider/mock"
)

func TestNewEmbeddingProvider_DeepFace(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		providerType string
		deepFaceURL  string
		dim          int
	}{
		{
			name:         "explicit deepface provider",
			providerType: "deepface",
			deepFaceURL:  "http://localhost:5005",
			dim:          128,
		},
		{
			name:         "empty provider defaults to deepface",
			providerType: "",
			deepFaceURL:  "http://localhost:5005",
			dim:          128,
		},
		{
			name:         "custom dimension",
			providerType: "deepface",
			deepFaceURL:  "http://custom-host:8080",
			dim:          512,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				ProviderType: tt.providerType,
				DeepFaceURL:  tt.deepFaceURL,
				EmbeddingDim: tt.dim,
			}

			p, err := NewEmbeddingProvider(ctx, cfg, nil)
			if err != nil {
				t.Fatalf("NewEmbeddingProvider() error = %v", err)
			}

			if _, ok := p.(*deepface.Provider); !ok {
				t.Errorf("NewEmbeddingProvider() returned type %T, want *deepface.Provider", p)
			}
			if p.Dimension() != tt.dim {
				t.Errorf("Dimension() = %d, want %d", p.Dimension(), tt.dim)
			}
		})
	}
}

func TestNewEmbeddingProvider_Mock(t *testing.T) {
	p, err := NewEmbeddingProvider(context.Background(), &config.Config{ProviderType: "mock", EmbeddingDim: 64}, nil)
	if err != nil {
		t.Fatalf("NewEmbeddingProvider() error = %v", err)
	}

	if _, ok := p.(*mock.Provider); !ok {
		t.Errorf("NewEmbeddingProvider() returned type %T, want *mock.Provider", p)
	}
	if err := Close(p); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewEmbeddingProvider_InvalidType(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{
			name: "unknown provider",
			cfg:  &config.Config{ProviderType: "opencv", EmbeddingDim: 128},
		},
		{
			name: "unknown detector",
			cfg:  &config.Config{ProviderType: "mock", DetectorType: "yolo", EmbeddingDim: 128},
		},
		{
			name: "dlib dimension mismatch",
			cfg:  &config.Config{ProviderType: "dlib", DlibModelsDir: t.TempDir(), EmbeddingDim: 512},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEmbeddingProvider(context.Background(), tt.cfg, nil); err == nil {
				t.Error("NewEmbeddingProvider() expected error, got nil")
			}
		})
	}
}

func TestNewEmbeddingProvider_Rekognition(t *testing.T) {
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		t.Skip("Skipping Rekognition test: AWS credentials not set")
	}

	cfg := &config.Config{
		ProviderType: "mock",
		DetectorType: "rekognition",
		AWSRegion:    "us-east-1",
		EmbeddingDim: 128,
	}

	p, err := NewEmbeddingProvider(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewEmbeddingProvider() error = %v", err)
	}

	if _, ok := p.(*provider.Composite); !ok {
		t.Errorf("NewEmbeddingProvider() returned type %T, want *provider.Composite", p)
	}
	if p.Dimension() != 128 {
		t.Errorf("Dimension() = %d, want 128", p.Dimension())
	}
}
