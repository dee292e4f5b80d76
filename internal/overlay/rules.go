package overlay

import (
	"image/color"
	"math"

	"github.com/dermascan-server/internal/domain"
)

// ChannelMask selects which colour channels a tint overrides.
type ChannelMask uint8

const (
	ChannelR ChannelMask = 1 << iota
	ChannelG
	ChannelB
)

// Tint is the highlight colour. Color.A is the blend alpha; channels outside
// Mask keep the source value.
type Tint struct {
	Color color.NRGBA
	Mask  ChannelMask
}

// Combine says how the target zone and the random draw interact.
type Combine int

const (
	// ZoneAndDraw highlights pixels inside the zone that also pass the draw.
	ZoneAndDraw Combine = iota
	// ZoneOrDraw highlights every zone pixel plus any pixel passing the draw.
	ZoneOrDraw
)

// ZoneFunc reports whether (x, y) lies in a rule's target zone for a w×h image.
type ZoneFunc func(x, y, w, h int) bool

// Rule is the highlight policy for one diagnosis category. A nil Zone covers
// the whole image.
type Rule struct {
	Name      string
	Zone      ZoneFunc
	Threshold float64
	Combine   Combine
	Tint      Tint
}

// InZone is the deterministic part of the rule.
func (r Rule) InZone(x, y, w, h int) bool {
	if r.Zone == nil {
		return true
	}
	return r.Zone(x, y, w, h)
}

// Eligible decides whether (x, y) is highlighted given a draw in [0, 1).
func (r Rule) Eligible(x, y, w, h int, draw float64) bool {
	passes := draw > r.Threshold
	if r.Combine == ZoneOrDraw {
		return r.InZone(x, y, w, h) || passes
	}
	return passes && r.InZone(x, y, w, h)
}

func acneZone(x, y, w, h int) bool {
	fx, fw := float64(x), float64(w)
	return math.Abs(fx-fw/3) < 50 || math.Abs(fx-2*fw/3) < 40
}

func eczemaZone(x, y, w, h int) bool {
	fx, fy, fw, fh := float64(x), float64(y), float64(w), float64(h)
	return fx > fw/4 && fx < 3*fw/4 && fy > fh/4 && fy < 3*fh/4
}

func psoriasisZone(x, y, w, h int) bool {
	return x%30 < 15 && y%30 < 15
}

func vitiligoZone(x, y, w, h int) bool {
	dx := float64(x) - float64(w)/2
	dy := float64(y) - float64(h)/2
	return math.Hypot(dx, dy) < 80
}

var red = Tint{Color: color.NRGBA{R: 255, A: 180}, Mask: ChannelR}

var rules = map[domain.Condition]Rule{
	domain.Acne: {
		Name:      "acne",
		Zone:      acneZone,
		Threshold: 0.7,
		Combine:   ZoneAndDraw,
		Tint:      red,
	},
	domain.Eczema: {
		Name:      "eczema",
		Zone:      eczemaZone,
		Threshold: 0.6,
		Combine:   ZoneAndDraw,
		Tint:      Tint{Color: color.NRGBA{R: 255, G: 150, A: 160}, Mask: ChannelR | ChannelG},
	},
	domain.Psoriasis: {
		Name:      "psoriasis",
		Zone:      psoriasisZone,
		Threshold: 0.8,
		Combine:   ZoneOrDraw,
		Tint:      Tint{Color: color.NRGBA{R: 255, A: 200}, Mask: ChannelR},
	},
	domain.Vitiligo: {
		Name:      "vitiligo",
		Zone:      vitiligoZone,
		Threshold: 0.9,
		Combine:   ZoneOrDraw,
		Tint:      Tint{Color: color.NRGBA{R: 255, G: 255, B: 255, A: 150}, Mask: ChannelR | ChannelG | ChannelB},
	},
}

var defaultRule = Rule{
	Name:      "default",
	Threshold: 0.85,
	Combine:   ZoneAndDraw,
	Tint:      red,
}

// RuleFor returns the highlight rule for label, or the scattered default.
func RuleFor(label domain.Condition) Rule {
	if r, ok := rules[label]; ok {
		return r
	}
	return defaultRule
}
