package face

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/config"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider/dlib"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider/rekognition"
)

// ProviderType defines supported embedding provider types
type ProviderType string

const (
	// ProviderTypeMock hashes pixels into embeddings (dev/test only)
	ProviderTypeMock ProviderType = "mock"
	// ProviderTypeDeepFace calls a DeepFace HTTP service
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeDlib runs dlib's 128-d model in process
	ProviderTypeDlib ProviderType = "dlib"

	// DetectorTypeRekognition replaces the provider's detector with AWS Rekognition
	DetectorTypeRekognition = "rekognition"
)

// NewEmbeddingProvider creates the provider selected by configuration.
//
// Environment variables:
//   - PROVIDER_TYPE: "mock", "deepface" or "dlib" (default: "deepface")
//   - DETECTOR_TYPE: "rekognition" to detect with AWS and encode with PROVIDER_TYPE
//   - DEEPFACE_URL, DEEPFACE_MODEL, DEEPFACE_DETECTOR: DeepFace service settings
//   - DLIB_MODELS_DIR, DLIB_DETECTION_MODEL: dlib model location and detector
//   - AWS_REGION: AWS region for Rekognition (credentials via the SDK chain)
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provider.EmbeddingProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	base, err := newBaseProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	if base.Dimension() != cfg.EmbeddingDim {
		_ = Close(base)
		return nil, fmt.Errorf("provider %s produces %d-d embeddings but EMBEDDING_DIM is %d",
			cfg.ProviderType, base.Dimension(), cfg.EmbeddingDim)
	}

	switch cfg.DetectorType {
	case "":
		return base, nil
	case DetectorTypeRekognition:
		detector, err := createRekognitionDetector(ctx, cfg)
		if err != nil {
			_ = Close(base)
			return nil, err
		}
		logger.Info("using rekognition detector", "encoder", cfg.ProviderType, "region", cfg.AWSRegion)
		return provider.NewComposite(detector, base), nil
	default:
		_ = Close(base)
		return nil, fmt.Errorf("unknown detector type: %s (supported: %s)", cfg.DetectorType, DetectorTypeRekognition)
	}
}

// Close releases a provider that holds native or network resources.
func Close(p provider.EmbeddingProvider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func newBaseProvider(cfg *config.Config, logger *slog.Logger) (provider.EmbeddingProvider, error) {
	switch ProviderType(cfg.ProviderType) {
	case ProviderTypeMock:
		return mock.New(cfg.EmbeddingDim), nil

	case ProviderTypeDeepFace, "":
		return createDeepFaceProvider(cfg, logger), nil

	case ProviderTypeDlib:
		p, err := dlib.NewProvider(dlib.Config{
			ModelsDir:      cfg.DlibModelsDir,
			DetectionModel: cfg.DlibDetectionModel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create dlib provider: %w", err)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s)",
			cfg.ProviderType, ProviderTypeMock, ProviderTypeDeepFace, ProviderTypeDlib)
	}
}

// createRekognitionDetector creates an AWS Rekognition detector instance
func createRekognitionDetector(ctx context.Context, cfg *config.Config) (*rekognition.Detector, error) {
	rekogConfig := rekognition.DefaultConfig()
	if cfg.AWSRegion != "" {
		rekogConfig.Region = cfg.AWSRegion
	}

	detector, err := rekognition.NewDetector(ctx, rekogConfig)
	if err != nil {
		return nil, fmt.Errorf("create rekognition detector: %w", err)
	}
	return detector, nil
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.Config, logger *slog.Logger) *deepface.Provider {
	deepfaceConfig := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}
	if cfg.DeepFaceDetector != "" {
		deepfaceConfig.Detector = cfg.DeepFaceDetector
	}
	if cfg.EmbeddingDim > 0 {
		deepfaceConfig.Dimension = cfg.EmbeddingDim
	}

	return deepface.NewProvider(deepfaceConfig, logger)
}
