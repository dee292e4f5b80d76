package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermascan-server/internal/domain"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestAllowedExtension(t *testing.T) {
	assert.True(t, AllowedExtension("lesion.JPG"))
	assert.True(t, AllowedExtension("scan.webp"))
	assert.True(t, AllowedExtension("scan.tiff"))
	assert.False(t, AllowedExtension("notes.txt"))
	assert.False(t, AllowedExtension("noext"))
}

func TestDecodeRoundTripPNG(t *testing.T) {
	src := solid(4, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, format, err := Decode(&buf)

	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode(strings.NewReader("not an image"))

	assert.ErrorIs(t, err, domain.ErrInvalidImage)
}

func TestDataURLRoundTrip(t *testing.T) {
	src := solid(2, 2, color.NRGBA{R: 255, A: 255})

	url, err := PNGDataURL(src)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	img, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(src), Fingerprint(img))
}

func TestFingerprint(t *testing.T) {
	a := solid(3, 3, color.NRGBA{R: 1, A: 255})
	b := solid(3, 3, color.NRGBA{R: 1, A: 255})
	c := solid(3, 3, color.NRGBA{R: 2, A: 255})
	d := solid(9, 1, color.NRGBA{R: 1, A: 255})

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(d))
	assert.Len(t, Fingerprint(a), 64)
}

func TestToNRGBAReanchors(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 8, 7))
	src.SetNRGBA(5, 5, color.NRGBA{G: 200, A: 255})

	out := ToNRGBA(src)

	assert.Equal(t, image.Rect(0, 0, 3, 2), out.Bounds())
	assert.Equal(t, color.NRGBA{G: 200, A: 255}, out.NRGBAAt(0, 0))
}
