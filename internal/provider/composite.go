package provider

import (
	"context"
	"errors"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
)

// Composite pairs a standalone detector with an encoder, e.g. a cloud
// detector with a local embedding model.
type Composite struct {
	detector Detector
	encoder  Encoder
}

func NewComposite(detector Detector, encoder Encoder) *Composite {
	return &Composite{detector: detector, encoder: encoder}
}

func (c *Composite) Detect(ctx context.Context, img imaging.Image) ([]domain.FaceRegion, error) {
	return c.detector.Detect(ctx, img)
}

func (c *Composite) Encode(ctx context.Context, img imaging.Image, region domain.FaceRegion) (domain.Embedding, error) {
	return c.encoder.Encode(ctx, img, region)
}

func (c *Composite) Dimension() int {
	return c.encoder.Dimension()
}

func (c *Composite) Normalize(img imaging.Image) imaging.Image {
	return imaging.Normalize(img)
}

// Close releases the parts that hold native or network resources.
func (c *Composite) Close() error {
	var errs []error
	if cl, ok := c.detector.(interface{ Close() error }); ok {
		errs = append(errs, cl.Close())
	}
	if cl, ok := c.encoder.(interface{ Close() error }); ok && any(c.encoder) != any(c.detector) {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}

var _ EmbeddingProvider = (*Composite)(nil)

// Extract runs detect and then encode for every region of an already
// normalized frame. Regions for which the provider yields no embedding are
// skipped. Any embedding whose length differs from p.Dimension() is a
// contract violation and fails the whole call.
func Extract(ctx context.Context, p EmbeddingProvider, img imaging.Image) ([]domain.DetectedFace, error) {
	regions, err := p.Detect(ctx, img)
	if err != nil {
		return nil, asDetectionFailure(err)
	}

	faces := make([]domain.DetectedFace, 0, len(regions))
	for _, region := range regions {
		emb, err := p.Encode(ctx, img, region)
		if err != nil {
			return nil, asEncodingFailure(err)
		}
		if emb == nil {
			continue
		}
		if err := emb.CheckDimension(p.Dimension()); err != nil {
			return nil, err
		}
		faces = append(faces, domain.DetectedFace{Region: region, Embedding: emb})
	}
	return faces, nil
}

// EncodeFirst detects faces in img and encodes the first region. It is the
// enrollment path: no region is domain.ErrNoFaceDetected and an empty
// embedding is domain.ErrEncodingFailure.
func EncodeFirst(ctx context.Context, p EmbeddingProvider, img imaging.Image) (domain.DetectedFace, error) {
	img = p.Normalize(img)

	regions, err := p.Detect(ctx, img)
	if err != nil {
		return domain.DetectedFace{}, asDetectionFailure(err)
	}
	if len(regions) == 0 {
		return domain.DetectedFace{}, domain.ErrNoFaceDetected
	}

	emb, err := p.Encode(ctx, img, regions[0])
	if err != nil {
		return domain.DetectedFace{}, asEncodingFailure(err)
	}
	if emb == nil {
		return domain.DetectedFace{}, domain.ErrEncodingFailure
	}
	if err := emb.CheckDimension(p.Dimension()); err != nil {
		return domain.DetectedFace{}, err
	}
	return domain.DetectedFace{Region: regions[0], Embedding: emb}, nil
}

func asDetectionFailure(err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.ErrDetectionFailure.WithError(err)
}

func asEncodingFailure(err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.ErrEncodingFailure.WithError(err)
}
