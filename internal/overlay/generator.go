// Package overlay renders attention maps: the source image with
// semi-transparent highlights placed by a per-diagnosis rule.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math/rand"

	"github.com/dermascan-server/internal/domain"
	"github.com/dermascan-server/internal/imaging"
)

// DrawFunc returns a value in [0, 1). It is called once per pixel.
type DrawFunc func() float64

// Generator implements domain.OverlayGenerator.
type Generator struct {
	draw DrawFunc
}

// Option configures a Generator.
type Option func(*Generator)

// WithDrawFunc replaces the random source used for per-pixel draws.
func WithDrawFunc(f DrawFunc) Option {
	return func(g *Generator) {
		if f != nil {
			g.draw = f
		}
	}
}

// NewGenerator creates a generator drawing from math/rand by default.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{draw: rand.Float64}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a new raster the size of src with label's highlight
// pattern composited on top. src is never modified.
func (g *Generator) Generate(src image.Image, label domain.Condition) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: %w: nil source", domain.ErrOverlayGeneration, domain.ErrInvalidImage)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %w: zero dimensions %dx%d", domain.ErrOverlayGeneration, domain.ErrInvalidImage, b.Dx(), b.Dy())
	}

	out := imaging.ToNRGBA(src)
	w, h := out.Rect.Dx(), out.Rect.Dy()
	rule := RuleFor(label)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !rule.Eligible(x, y, w, h, g.draw()) {
				continue
			}
			out.SetNRGBA(x, y, composite(out.NRGBAAt(x, y), rule.Tint))
		}
	}
	return out, nil
}

// composite blends the tint over px by the tint alpha. Source alpha is kept.
func composite(px color.NRGBA, t Tint) color.NRGBA {
	a := uint32(t.Color.A)
	mix := func(src, tint uint8) uint8 {
		return uint8((uint32(src)*(255-a) + uint32(tint)*a + 127) / 255)
	}
	if t.Mask&ChannelR != 0 {
		px.R = mix(px.R, t.Color.R)
	}
	if t.Mask&ChannelG != 0 {
		px.G = mix(px.G, t.Color.G)
	}
	if t.Mask&ChannelB != 0 {
		px.B = mix(px.B, t.Color.B)
	}
	return px
}
