// Package imaging decodes uploads and encodes rasters for transport.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // register decoder
	"image/png"
	"io"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/dermascan-server/internal/domain"
)

// allowedExtensions lists the upload formats accepted by the API.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// AllowedExtension reports whether filename has a supported image extension.
func AllowedExtension(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Decode reads an image in any registered format and returns it with the
// format name. Empty rasters are rejected.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", fmt.Errorf("%w: zero dimensions", domain.ErrInvalidImage)
	}
	return img, format, nil
}

// ToNRGBA copies img into a fresh NRGBA raster anchored at the origin.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// PNGDataURL encodes img as a base64 PNG data URL.
func PNGDataURL(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// DecodeDataURL reverses PNGDataURL for any base64 image data URL, and also
// accepts bare base64.
func DecodeDataURL(s string) (image.Image, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i > 0 {
		s = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64: %v", domain.ErrInvalidImage, err)
	}
	img, _, err := Decode(bytes.NewReader(raw))
	return img, err
}

// Fingerprint hashes the dimensions and pixels of img. Two rasters with the
// same content share a fingerprint regardless of their source encoding.
func Fingerprint(img image.Image) string {
	n := ToNRGBA(img)
	h := sha256.New()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[:4], uint32(n.Rect.Dx()))
	binary.BigEndian.PutUint32(dims[4:], uint32(n.Rect.Dy()))
	h.Write(dims[:])
	h.Write(n.Pix)
	return hex.EncodeToString(h.Sum(nil))
}
