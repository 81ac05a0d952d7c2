// Package camera reads frames from a local camera or a video stream URL
// through OpenCV.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/capture"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
)

var errEmptyFrame = errors.New("camera returned an empty frame")

type Config struct {
	// Device is a camera index ("0") or a stream URL (rtsp://...).
	Device string
	Width  int
	Height int
	FPS    float64
}

type Camera struct {
	config Config

	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
	rgb     gocv.Mat
}

var _ capture.Source = (*Camera)(nil)

func New(config Config) *Camera {
	return &Camera{config: config}
}

// device turns a numeric Device into a camera index; anything else is passed
// to OpenCV as a file or URL.
func (c *Camera) device() interface{} {
	if id, err := strconv.Atoi(c.config.Device); err == nil {
		return id
	}
	return c.config.Device
}

func (c *Camera) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.device())
	if err != nil {
		return domain.ErrCaptureUnavailable.WithError(fmt.Errorf("open %q: %w", c.config.Device, err))
	}
	if !vc.IsOpened() {
		vc.Close()
		return domain.ErrCaptureUnavailable.WithError(fmt.Errorf("device %q did not open", c.config.Device))
	}

	if c.config.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
	}
	if c.config.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	}
	if c.config.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, c.config.FPS)
	}

	c.capture = vc
	c.frame = gocv.NewMat()
	c.rgb = gocv.NewMat()
	return nil
}

// Read grabs the next frame and converts it from BGR to RGB.
func (c *Camera) Read(ctx context.Context) (imaging.Image, error) {
	if err := ctx.Err(); err != nil {
		return imaging.Image{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return imaging.Image{}, domain.ErrCaptureUnavailable.WithError(capture.ErrNotOpen)
	}
	if ok := c.capture.Read(&c.frame); !ok {
		return imaging.Image{}, c.readFailure()
	}
	if c.frame.Empty() {
		return imaging.Image{}, domain.ErrCaptureUnavailable.WithError(errEmptyFrame)
	}

	return c.toImage()
}

// readFailure classifies a failed grab. A file or stream URL that stops
// yielding frames has ended; a camera index that does so is broken.
func (c *Camera) readFailure() error {
	if _, isIndex := c.device().(int); isIndex {
		return domain.ErrCaptureUnavailable.WithError(fmt.Errorf("read from %q failed", c.config.Device))
	}
	return io.EOF
}

func (c *Camera) toImage() (imaging.Image, error) {
	src := c.frame
	channels := src.Channels()
	switch channels {
	case 3:
		gocv.CvtColor(src, &c.rgb, gocv.ColorBGRToRGB)
		src = c.rgb
	case 4:
		gocv.CvtColor(src, &c.rgb, gocv.ColorBGRAToRGB)
		src = c.rgb
		channels = 3
	}

	// ToBytes copies, so the Mats can be reused for the next frame.
	img := imaging.Image{
		Width:    src.Cols(),
		Height:   src.Rows(),
		Channels: channels,
		Pix:      src.ToBytes(),
	}
	if err := img.Validate(); err != nil {
		return imaging.Image{}, domain.ErrCaptureUnavailable.WithError(err)
	}
	return img, nil
}

// Close releases the device. Safe to call more than once and after a failed Open.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}

	err := c.capture.Close()
	_ = c.frame.Close()
	_ = c.rgb.Close()
	c.capture = nil
	return err
}
