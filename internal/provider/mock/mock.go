package mock

import (
	"context"
	"crypto/sha256"
	"math"
	"sync/atomic"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
)

const (
	DefaultDimension = 128

	// frames mais escuros que isso são tratados como "sem rosto"
	blankThreshold = 8
)

// Provider implementa provider.EmbeddingProvider para testes e desenvolvimento.
// Every frame that is not blank holds exactly one face in its central area,
// and the embedding is a hash of the region's pixels.
type Provider struct {
	dimension   int
	detectCalls atomic.Int64
	encodeCalls atomic.Int64
}

// New cria uma nova instância do MockProvider
func New(dimension int) *Provider {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Provider{dimension: dimension}
}

func (p *Provider) Detect(ctx context.Context, img imaging.Image) ([]domain.FaceRegion, error) {
	p.detectCalls.Add(1)

	if err := img.Validate(); err != nil {
		return nil, domain.ErrDetectionFailure.WithError(err)
	}
	if img.Empty() || meanBrightness(img) < blankThreshold {
		return []domain.FaceRegion{}, nil
	}

	return []domain.FaceRegion{{
		Top:    img.Height / 10,
		Right:  img.Width - img.Width/10,
		Bottom: img.Height - img.Height/10,
		Left:   img.Width / 10,
	}}, nil
}

// Encode gera embedding determinístico baseado no hash da região
func (p *Provider) Encode(ctx context.Context, img imaging.Image, region domain.FaceRegion) (domain.Embedding, error) {
	p.encodeCalls.Add(1)

	crop, err := img.Crop(region)
	if err != nil {
		// region outside the frame: nothing to encode
		return nil, nil
	}
	return generateEmbedding(crop.Pix, p.dimension), nil
}

func (p *Provider) Normalize(img imaging.Image) imaging.Image {
	return imaging.Normalize(img)
}

func (p *Provider) Dimension() int {
	return p.dimension
}

func (p *Provider) DetectCalls() int64 {
	return p.detectCalls.Load()
}

func (p *Provider) EncodeCalls() int64 {
	return p.encodeCalls.Load()
}

func meanBrightness(img imaging.Image) float64 {
	var sum uint64
	for _, v := range img.Pix {
		sum += uint64(v)
	}
	return float64(sum) / float64(len(img.Pix))
}

// generateEmbedding gera embedding determinístico (norma unitária) baseado no hash
func generateEmbedding(data []byte, dimension int) domain.Embedding {
	hash := sha256.Sum256(data)
	embedding := make(domain.Embedding, dimension)
	hashLen := len(hash)

	for i := 0; i < dimension; i++ {
		idx := i % hashLen
		// mix the index in so dimensions past the hash length are not a plain repeat
		embedding[i] = (float64(hash[idx]^byte(i/hashLen))/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}

	for i := range embedding {
		embedding[i] /= norm
	}

	return embedding
}

var _ provider.EmbeddingProvider = (*Provider)(nil)
