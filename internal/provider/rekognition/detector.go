package rekognition

import (
	"context"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	jpegQuality  = 90
)

// Detector implements provider.Detector using AWS Rekognition DetectFaces.
// Rekognition does not expose embeddings, so it is paired with an encoder
// through provider.Composite.
type Detector struct {
	client *Client
}

// Ensure Detector implements provider.Detector interface at compile time
var _ provider.Detector = (*Detector)(nil)

func NewDetector(ctx context.Context, cfg Config) (*Detector, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}
	return &Detector{client: client}, nil
}

// Detect returns an empty slice if no faces are detected (not an error)
func (d *Detector) Detect(ctx context.Context, img imaging.Image) ([]domain.FaceRegion, error) {
	scaled, _ := img.Fit(d.client.config.MaxImageSide)
	data, err := scaled.EncodeJPEG(jpegQuality)
	if err != nil {
		return nil, domain.ErrDetectionFailure.WithError(err)
	}
	if len(data) > maxImageSize {
		return nil, domain.ErrDetectionFailure.WithError(
			fmt.Errorf("%w: %d bytes, maximum %d", ErrImageRejected, len(data), maxImageSize))
	}

	output, err := d.client.rekognition.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: data},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		return nil, domain.ErrDetectionFailure.WithError(fmt.Errorf("detect faces: %w", parseAPIError(err)))
	}

	regions := make([]domain.FaceRegion, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		if detail.BoundingBox == nil {
			continue
		}
		if detail.Confidence != nil && *detail.Confidence < d.client.config.MinConfidence {
			continue
		}
		if d.client.config.MinQuality > 0 && calculateQualityScore(detail.Quality) < d.client.config.MinQuality {
			continue
		}

		// bounding boxes are ratios of the frame, so the original size applies directly
		regions = append(regions, toRegion(detail.BoundingBox, img.Width, img.Height))
	}

	return regions, nil
}

// toRegion converts a relative bounding box to pixels, clamped to the frame
func toRegion(box *types.BoundingBox, width, height int) domain.FaceRegion {
	var left, top, w, h float64
	if box.Left != nil {
		left = float64(*box.Left)
	}
	if box.Top != nil {
		top = float64(*box.Top)
	}
	if box.Width != nil {
		w = float64(*box.Width)
	}
	if box.Height != nil {
		h = float64(*box.Height)
	}

	clamp := func(v float64, limit int) int {
		return int(math.Round(math.Max(0, math.Min(v, float64(limit)))))
	}

	return domain.FaceRegion{
		Top:    clamp(top*float64(height), height),
		Right:  clamp((left+w)*float64(width), width),
		Bottom: clamp((top+h)*float64(height), height),
		Left:   clamp(left*float64(width), width),
	}
}

// calculateQualityScore computes an overall quality score from Rekognition quality metrics
func calculateQualityScore(quality *types.ImageQuality) float64 {
	if quality == nil {
		return 0.0
	}

	// AWS Rekognition provides brightness and sharpness scores (0-100)
	brightness := 0.0
	sharpness := 0.0

	if quality.Brightness != nil {
		brightness = float64(*quality.Brightness) / 100.0
	}

	if quality.Sharpness != nil {
		sharpness = float64(*quality.Sharpness) / 100.0
	}

	// Weight sharpness more heavily as it's critical for face recognition
	return brightness*0.3 + sharpness*0.7
}
