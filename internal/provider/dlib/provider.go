// Package dlib computes 128-d face descriptors with dlib through go-face.
// It needs cgo and the dlib model files:
//
//	shape_predictor_5_face_landmarks.dat
//	dlib_face_recognition_resnet_model_v1.dat
//	mmod_human_face_detector.dat (cnn detection only)
package dlib

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
)

const (
	Dimension   = 128
	jpegQuality = 95

	DetectionHOG = "hog"
	DetectionCNN = "cnn"
)

type Config struct {
	ModelsDir      string
	DetectionModel string
}

// Provider implements provider.EmbeddingProvider on top of go-face. The
// recognizer is not safe for concurrent use, so every call holds mu.
type Provider struct {
	rec    *face.Recognizer
	config Config
	logger *slog.Logger

	mu   sync.Mutex
	last *frameFaces
}

type frameFaces struct {
	pix   *byte
	faces map[domain.FaceRegion]domain.Embedding
}

func NewProvider(config Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.DetectionModel == "" {
		config.DetectionModel = DetectionHOG
	}

	rec, err := face.NewRecognizer(config.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models from %s: %w", config.ModelsDir, err)
	}

	logger.Info("dlib models loaded", "dir", config.ModelsDir, "detection", config.DetectionModel)

	return &Provider{rec: rec, config: config, logger: logger}, nil
}

func (p *Provider) Detect(ctx context.Context, img imaging.Image) ([]domain.FaceRegion, error) {
	data, err := img.EncodeJPEG(jpegQuality)
	if err != nil {
		return nil, domain.ErrDetectionFailure.WithError(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var found []face.Face
	if p.config.DetectionModel == DetectionCNN {
		found, err = p.rec.RecognizeCNN(data)
	} else {
		found, err = p.rec.Recognize(data)
	}
	if err != nil {
		return nil, domain.ErrDetectionFailure.WithError(fmt.Errorf("dlib recognize: %w", err))
	}

	regions := make([]domain.FaceRegion, 0, len(found))
	faces := make(map[domain.FaceRegion]domain.Embedding, len(found))
	for _, f := range found {
		region := domain.RegionFromRect(f.Rectangle.Intersect(img.Bounds()))
		regions = append(regions, region)
		faces[region] = fromDescriptor(f.Descriptor)
	}

	p.last = &frameFaces{pix: firstPixel(img), faces: faces}
	return regions, nil
}

func (p *Provider) Encode(ctx context.Context, img imaging.Image, region domain.FaceRegion) (domain.Embedding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last != nil && p.last.pix == firstPixel(img) {
		if emb, ok := p.last.faces[region]; ok {
			return emb.Clone(), nil
		}
	}

	crop, err := img.Crop(region)
	if err != nil {
		return nil, nil
	}
	data, err := crop.EncodeJPEG(jpegQuality)
	if err != nil {
		return nil, domain.ErrEncodingFailure.WithError(err)
	}

	f, err := p.rec.RecognizeSingle(data)
	if err != nil {
		return nil, domain.ErrEncodingFailure.WithError(fmt.Errorf("dlib recognize single: %w", err))
	}
	if f == nil {
		return nil, nil
	}
	return fromDescriptor(f.Descriptor), nil
}

func (p *Provider) Normalize(img imaging.Image) imaging.Image {
	return imaging.Normalize(img)
}

func (p *Provider) Dimension() int {
	return Dimension
}

// Close releases the recognizer resources.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rec != nil {
		p.rec.Close()
		p.rec = nil
	}
	return nil
}

func fromDescriptor(d face.Descriptor) domain.Embedding {
	emb := make(domain.Embedding, len(d))
	for i, v := range d {
		emb[i] = float64(v)
	}
	return emb
}

func firstPixel(img imaging.Image) *byte {
	if len(img.Pix) == 0 {
		return nil
	}
	return &img.Pix[0]
}

var _ provider.EmbeddingProvider = (*Provider)(nil)
