package provider

import (
	"context"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
)

// Detector finds face regions in a frame.
type Detector interface {
	// Detect returns the face regions found in img. An image without faces
	// yields an empty slice and a nil error. Failures of the underlying
	// capability are reported as domain.ErrDetectionFailure.
	Detect(ctx context.Context, img imaging.Image) ([]domain.FaceRegion, error)
}

// Encoder turns a face region into a fixed-length embedding.
type Encoder interface {
	// Encode returns (nil, nil) when no embedding can be extracted for the
	// region. Failures of the underlying capability are reported as
	// domain.ErrEncodingFailure.
	Encode(ctx context.Context, img imaging.Image, region domain.FaceRegion) (domain.Embedding, error)

	// Dimension is the length of every embedding this encoder produces.
	Dimension() int
}

// EmbeddingProvider wraps an opaque detection and embedding capability.
type EmbeddingProvider interface {
	Detector
	Encoder

	// Normalize prepares a raw frame for Detect and Encode. It never fails.
	Normalize(img imaging.Image) imaging.Image
}
