// Package imaging holds the raw frame representation shared by capture
// sources and embedding providers.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

// Image is an 8-bit interleaved pixel buffer. Channels is 1 (gray), 3 (RGB)
// or 4 (RGBA). Row stride is always Width*Channels.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

func New(width, height, channels int) Image {
	return Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

func (im Image) Empty() bool {
	return im.Width <= 0 || im.Height <= 0 || len(im.Pix) == 0
}

func (im Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, im.Width, im.Height)
}

func (im Image) Validate() error {
	if im.Channels != 1 && im.Channels != 3 && im.Channels != 4 {
		return domain.ErrInvalidImage.WithError(fmt.Errorf("unsupported channel count %d", im.Channels))
	}
	if len(im.Pix) != im.Width*im.Height*im.Channels {
		return domain.ErrInvalidImage.WithError(
			fmt.Errorf("pixel buffer has %d bytes, want %d", len(im.Pix), im.Width*im.Height*im.Channels))
	}
	return nil
}

// Normalize converts a frame to 3-channel RGB: gray is replicated into all
// three channels and a fourth (alpha) channel is dropped. Any other layout is
// returned unchanged. The input is never modified.
func Normalize(im Image) Image {
	switch im.Channels {
	case 1:
		out := New(im.Width, im.Height, 3)
		for i, v := range im.Pix {
			out.Pix[i*3] = v
			out.Pix[i*3+1] = v
			out.Pix[i*3+2] = v
		}
		return out
	case 4:
		out := New(im.Width, im.Height, 3)
		n := im.Width * im.Height
		for i := 0; i < n; i++ {
			copy(out.Pix[i*3:i*3+3], im.Pix[i*4:i*4+3])
		}
		return out
	default:
		return im
	}
}

// FromImage copies any image.Image into an RGB Image.
func FromImage(src image.Image) Image {
	b := src.Bounds()
	out := New(b.Dx(), b.Dy(), 3)

	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < out.Height; y++ {
			row := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < out.Width; x++ {
				copy(out.Pix[(y*out.Width+x)*3:], row[x*4:x*4+3])
			}
		}
		return out
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.RGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			i := (y*out.Width + x) * 3
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = c.R, c.G, c.B
		}
	}
	return out
}

// ToRGBA converts the frame to a standard library image for encoding and drawing.
func (im Image) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(im.Bounds())
	n := im.Width * im.Height
	for i := 0; i < n; i++ {
		switch im.Channels {
		case 1:
			v := im.Pix[i]
			dst.Pix[i*4], dst.Pix[i*4+1], dst.Pix[i*4+2] = v, v, v
			dst.Pix[i*4+3] = 0xff
		case 3:
			copy(dst.Pix[i*4:i*4+3], im.Pix[i*3:i*3+3])
			dst.Pix[i*4+3] = 0xff
		case 4:
			copy(dst.Pix[i*4:i*4+4], im.Pix[i*4:i*4+4])
		}
	}
	return dst
}

// Crop returns the part of the frame inside region, clipped to the frame bounds.
func (im Image) Crop(region domain.FaceRegion) (Image, error) {
	r := region.Rect().Intersect(im.Bounds())
	if r.Empty() {
		return Image{}, fmt.Errorf("region %+v outside %dx%d frame", region, im.Width, im.Height)
	}

	out := New(r.Dx(), r.Dy(), im.Channels)
	rowLen := r.Dx() * im.Channels
	for y := 0; y < r.Dy(); y++ {
		srcOff := ((r.Min.Y+y)*im.Width + r.Min.X) * im.Channels
		copy(out.Pix[y*rowLen:(y+1)*rowLen], im.Pix[srcOff:srcOff+rowLen])
	}
	return out, nil
}

// Fit downscales the frame so neither side exceeds maxSide. It returns the
// scale factor applied (1 when the frame already fits).
func (im Image) Fit(maxSide int) (Image, float64) {
	if maxSide <= 0 || (im.Width <= maxSide && im.Height <= maxSide) {
		return im, 1
	}

	scale := float64(maxSide) / float64(max(im.Width, im.Height))
	w := max(1, int(float64(im.Width)*scale))
	h := max(1, int(float64(im.Height)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), im.ToRGBA(), im.Bounds(), draw.Over, nil)
	return FromImage(dst), scale
}

// ScaleRegion maps a region found on a scaled frame back to the original frame.
func ScaleRegion(r domain.FaceRegion, scale float64) domain.FaceRegion {
	if scale == 1 || scale <= 0 {
		return r
	}
	return domain.FaceRegion{
		Top:    int(float64(r.Top) / scale),
		Right:  int(float64(r.Right) / scale),
		Bottom: int(float64(r.Bottom) / scale),
		Left:   int(float64(r.Left) / scale),
	}
}

func (im Image) EncodeJPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, im.ToRGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads a JPEG, PNG, BMP or WebP payload.
func Decode(data []byte) (Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, domain.ErrInvalidImage.WithError(err)
	}
	return FromImage(img), nil
}

func Load(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	im, err := Decode(data)
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return im, nil
}
