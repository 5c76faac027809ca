// Package hue converts between RGB and HSL and picks accent colours for a
// card from its avatar.
package hue

import (
	"image"
	"image/color"
	"math"
)

// HSL represents a color in HSL color space.
type HSL struct {
	H, S, L float64 // Hue (0–360), Saturation (0–1), Lightness (0–1)
}

// RGBToHSL converts a color.Color to HSL. Alpha is ignored.
func RGBToHSL(c color.Color) HSL {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	r := float64(n.R) / 255
	g := float64(n.G) / 255
	b := float64(n.B) / 255

	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	delta := hi - lo

	out := HSL{L: (hi + lo) / 2}
	if delta == 0 {
		return out
	}

	switch hi {
	case r:
		out.H = math.Mod((g-b)/delta, 6)
	case g:
		out.H = (b-r)/delta + 2
	default:
		out.H = (r-g)/delta + 4
	}
	out.H *= 60
	if out.H < 0 {
		out.H += 360
	}

	if out.L > 0.5 {
		out.S = delta / (2 - hi - lo)
	} else {
		out.S = delta / (hi + lo)
	}
	return out
}

// HSLToRGB converts an HSL value to an opaque colour.
func HSLToRGB(hsl HSL) color.NRGBA {
	h := math.Mod(hsl.H, 360) / 360
	if h < 0 {
		h++
	}
	s := clamp01(hsl.S)
	l := clamp01(hsl.L)

	if s == 0 {
		v := to8(l)
		return color.NRGBA{v, v, v, 255}
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	return color.NRGBA{
		R: to8(hueToChannel(p, q, h+1.0/3)),
		G: to8(hueToChannel(p, q, h)),
		B: to8(hueToChannel(p, q, h-1.0/3)),
		A: 255,
	}
}

func hueToChannel(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

// AverageHue returns the mean hue of img and how strongly the pixels agree
// on it (0 for grey or evenly spread hues, 1 for a single saturated hue).
//
// Hues are averaged as unit vectors to handle the wrap at 360°. Each pixel is
// weighted by saturation and opacity, so grey and transparent pixels do not
// pull the result around.
func AverageHue(img image.Image) (hue, strength float64) {
	var sumX, sumY, total float64

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.At(x, y)
			_, _, _, a := c.RGBA()
			if a == 0 {
				continue
			}
			hsl := RGBToHSL(c)
			w := hsl.S * float64(a) / 0xffff
			rad := hsl.H * math.Pi / 180
			sumX += w * math.Cos(rad)
			sumY += w * math.Sin(rad)
			total++
		}
	}

	if total == 0 {
		return 0, 0
	}

	avgX := sumX / total
	avgY := sumY / total

	angle := math.Atan2(avgY, avgX) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}
	return angle, math.Min(1, math.Hypot(avgX, avgY))
}

// Palette is the set of colours a card is drawn with.
type Palette struct {
	Background color.NRGBA
	Panel      color.NRGBA
	Text       color.NRGBA
	Muted      color.NRGBA
	Highlight  color.NRGBA
}

// fallbackHue is used when the avatar has no dominant hue.
const fallbackHue = 215

// PaletteFor derives a dark card palette from the dominant hue of img.
func PaletteFor(img image.Image) Palette {
	h, strength := AverageHue(img)
	if strength < 0.05 {
		h = fallbackHue
	}
	return Palette{
		Background: HSLToRGB(HSL{H: h, S: 0.35, L: 0.12}),
		Panel:      HSLToRGB(HSL{H: h, S: 0.30, L: 0.18}),
		Text:       HSLToRGB(HSL{H: h, S: 0.15, L: 0.92}),
		Muted:      HSLToRGB(HSL{H: h, S: 0.20, L: 0.65}),
		Highlight:  HSLToRGB(HSL{H: math.Mod(h+180, 360), S: 0.80, L: 0.60}),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func to8(v float64) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}
