package deepface

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
)

const jpegQuality = 90

// Provider implements provider.EmbeddingProvider using DeepFace API.
//
// DeepFace returns embeddings together with the detected regions, so the
// result of the last Detect call is kept and Encode answers from it when
// asked about the same frame. Any other region is cropped and sent again
// with detection disabled.
type Provider struct {
	client *Client
	config Config
	logger *slog.Logger

	mu   sync.Mutex
	last *frameFaces
}

type frameFaces struct {
	key   frameKey
	faces map[domain.FaceRegion]domain.Embedding
}

type frameKey struct {
	pix           *byte
	width, height int
}

func keyOf(img imaging.Image) frameKey {
	if len(img.Pix) == 0 {
		return frameKey{}
	}
	return frameKey{pix: &img.Pix[0], width: img.Width, height: img.Height}
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		client: NewClient(config),
		config: config,
		logger: logger,
	}
}

// Detect detects faces in the frame
func (p *Provider) Detect(ctx context.Context, img imaging.Image) ([]domain.FaceRegion, error) {
	scaled, scale := img.Fit(p.config.MaxImageSide)

	uri, err := dataURI(scaled)
	if err != nil {
		return nil, domain.ErrDetectionFailure.WithError(err)
	}

	resp, err := p.client.Represent(ctx, uri)
	if err != nil {
		return nil, domain.ErrDetectionFailure.WithError(fmt.Errorf("detect faces: %w", err))
	}

	regions := make([]domain.FaceRegion, 0, len(resp.Results))
	faces := make(map[domain.FaceRegion]domain.Embedding, len(resp.Results))
	for _, result := range resp.Results {
		// with enforce_detection=false DeepFace answers "no face" with the whole frame
		if isWholeFrame(result, scaled.Width, scaled.Height) {
			continue
		}

		region := imaging.ScaleRegion(domain.FaceRegion{
			Top:    result.FacialArea.Y,
			Right:  result.FacialArea.X + result.FacialArea.W,
			Bottom: result.FacialArea.Y + result.FacialArea.H,
			Left:   result.FacialArea.X,
		}, scale)

		regions = append(regions, region)
		if len(result.Embedding) > 0 {
			faces[region] = domain.Embedding(result.Embedding)
		}
	}

	p.mu.Lock()
	p.last = &frameFaces{key: keyOf(img), faces: faces}
	p.mu.Unlock()

	return regions, nil
}

func isWholeFrame(r RepresentResult, width, height int) bool {
	return r.FaceConfidence <= 0 &&
		r.FacialArea.X == 0 && r.FacialArea.Y == 0 &&
		r.FacialArea.W >= width-1 && r.FacialArea.H >= height-1
}

// Encode extracts the embedding of one region
func (p *Provider) Encode(ctx context.Context, img imaging.Image, region domain.FaceRegion) (domain.Embedding, error) {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()

	if last != nil && last.key == keyOf(img) {
		if emb, ok := last.faces[region]; ok {
			return emb.Clone(), nil
		}
	}

	crop, err := img.Crop(region)
	if err != nil {
		p.logger.Debug("region outside frame", "region", region, "error", err)
		return nil, nil
	}

	uri, err := dataURI(crop)
	if err != nil {
		return nil, domain.ErrEncodingFailure.WithError(err)
	}

	resp, err := p.client.RepresentCropped(ctx, uri)
	if err != nil {
		return nil, domain.ErrEncodingFailure.WithError(fmt.Errorf("encode face: %w", err))
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Embedding) == 0 {
		return nil, nil
	}
	return domain.Embedding(resp.Results[0].Embedding), nil
}

func (p *Provider) Normalize(img imaging.Image) imaging.Image {
	return imaging.Normalize(img)
}

func (p *Provider) Dimension() int {
	return p.config.Dimension
}

func dataURI(img imaging.Image) (string, error) {
	data, err := img.EncodeJPEG(jpegQuality)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Ensure Provider implements provider.EmbeddingProvider
var _ provider.EmbeddingProvider = (*Provider)(nil)
