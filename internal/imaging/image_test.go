package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Image
		want Image
	}{
		{
			name: "gray is replicated",
			in:   Image{Width: 2, Height: 1, Channels: 1, Pix: []byte{10, 200}},
			want: Image{Width: 2, Height: 1, Channels: 3, Pix: []byte{10, 10, 10, 200, 200, 200}},
		},
		{
			name: "alpha is stripped",
			in:   Image{Width: 2, Height: 1, Channels: 4, Pix: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
			want: Image{Width: 2, Height: 1, Channels: 3, Pix: []byte{1, 2, 3, 5, 6, 7}},
		},
		{
			name: "rgb passes through",
			in:   Image{Width: 1, Height: 1, Channels: 3, Pix: []byte{9, 8, 7}},
			want: Image{Width: 1, Height: 1, Channels: 3, Pix: []byte{9, 8, 7}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := append([]byte(nil), tt.in.Pix...)
			got := Normalize(tt.in)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, before, tt.in.Pix, "input must not be modified")
			assert.NoError(t, got.Validate())
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, New(2, 2, 3).Validate())
	assert.ErrorIs(t, Image{Width: 2, Height: 2, Channels: 2, Pix: make([]byte, 8)}.Validate(), domain.ErrInvalidImage)
	assert.ErrorIs(t, Image{Width: 2, Height: 2, Channels: 3, Pix: make([]byte, 5)}.Validate(), domain.ErrInvalidImage)
}

func TestCrop(t *testing.T) {
	im := New(4, 3, 1)
	for i := range im.Pix {
		im.Pix[i] = byte(i)
	}

	got, err := im.Crop(domain.FaceRegion{Top: 1, Right: 3, Bottom: 3, Left: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Width)
	assert.Equal(t, 2, got.Height)
	assert.Equal(t, []byte{5, 6, 9, 10}, got.Pix)

	t.Run("clips to bounds", func(t *testing.T) {
		got, err := im.Crop(domain.FaceRegion{Top: -5, Right: 100, Bottom: 1, Left: 3})
		require.NoError(t, err)
		assert.Equal(t, []byte{3}, got.Pix)
	})

	t.Run("outside frame", func(t *testing.T) {
		_, err := im.Crop(domain.FaceRegion{Top: 10, Right: 20, Bottom: 20, Left: 10})
		assert.Error(t, err)
	})
}

func TestFromImageToRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	src.Set(1, 0, color.RGBA{R: 40, G: 50, B: 60, A: 255})

	im := FromImage(src)
	assert.Equal(t, 3, im.Channels)
	assert.Equal(t, []byte{10, 20, 30, 40, 50, 60}, im.Pix)
	assert.Equal(t, src.Pix, im.ToRGBA().Pix)
}

func TestFit(t *testing.T) {
	im := New(400, 200, 3)

	same, scale := im.Fit(800)
	assert.Equal(t, 1.0, scale)
	assert.Equal(t, 400, same.Width)

	small, scale := im.Fit(100)
	assert.Equal(t, 0.25, scale)
	assert.Equal(t, 100, small.Width)
	assert.Equal(t, 50, small.Height)

	r := ScaleRegion(domain.FaceRegion{Top: 10, Right: 20, Bottom: 30, Left: 5}, scale)
	assert.Equal(t, domain.FaceRegion{Top: 40, Right: 80, Bottom: 120, Left: 20}, r)
}

func TestDecode(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 2))
	src.SetGray(1, 1, color.Gray{Y: 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	im, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, im.Width)
	assert.Equal(t, 2, im.Height)
	assert.Equal(t, byte(128), im.Pix[(1*3+1)*3])

	_, err = Decode([]byte("not an image"))
	assert.ErrorIs(t, err, domain.ErrInvalidImage)
}

func TestEncodeJPEG(t *testing.T) {
	data, err := New(8, 8, 3).EncodeJPEG(85)
	require.NoError(t, err)

	im, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 8, im.Width)
}
