// Package capture defines the frame sources a recognition session pulls from.
package capture

import (
	"context"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
)

// Source produces frames one at a time. Open acquires the underlying device,
// Close releases it and must be safe to call after a failed Open.
//
// Read returns io.EOF when a finite source is exhausted and an error wrapping
// domain.ErrCaptureUnavailable when the device cannot be read.
type Source interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) (imaging.Image, error)
	Close() error
}
