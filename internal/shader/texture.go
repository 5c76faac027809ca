package shader

import (
	"fmt"
	"math"
	"strings"
)

// FilterMode selects how a texture resolves coordinates that do not land
// exactly on a source pixel.
type FilterMode uint8

const (
	// Nearest picks the pixel containing the coordinate. No interpolation.
	Nearest FilterMode = iota

	// Bilinear blends the 2x2 neighbourhood around the coordinate. Integral
	// coordinates land exactly on a pixel.
	Bilinear
)

func (m FilterMode) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	default:
		return fmt.Sprintf("FilterMode(%d)", uint8(m))
	}
}

// Valid reports whether m is a known filter mode.
func (m FilterMode) Valid() bool {
	return m == Nearest || m == Bilinear
}

// ParseFilterMode parses "nearest" or "bilinear". The empty string is
// Nearest.
func ParseFilterMode(s string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nearest":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	default:
		return 0, fmt.Errorf("%w: unknown texture filter %q", ErrInvalidOptions, s)
	}
}

// Texture is a read-only view of a pixel buffer addressed by coordinates.
// Coordinates outside the buffer are clamped to the edge on each axis.
//
// A Texture is safe for concurrent use.
type Texture struct {
	pix    []byte
	width  int
	height int
	mode   FilterMode
}

// NewTexture wraps pix without copying it. It fails with ErrDimensionMismatch
// if len(pix) != width*height*4 and with ErrInvalidOptions for an unknown
// filter mode.
func NewTexture(pix []byte, width, height int, mode FilterMode) (*Texture, error) {
	if err := checkDimensions(pix, width, height); err != nil {
		return nil, err
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown texture filter %v", ErrInvalidOptions, mode)
	}
	return &Texture{pix: pix, width: width, height: height, mode: mode}, nil
}

// Sample is the one-shot form of Texture.Sample.
func Sample(pix []byte, width, height int, c Coord, mode FilterMode) (Color, error) {
	tex, err := NewTexture(pix, width, height, mode)
	if err != nil {
		return Color{}, err
	}
	return tex.Sample(c), nil
}

// Size returns the texture dimensions.
func (t *Texture) Size() (width, height int) {
	return t.width, t.height
}

// Sample returns the colour at c. The result is a copy.
func (t *Texture) Sample(c Coord) Color {
	if t.mode == Bilinear {
		return t.sampleBilinear(c)
	}
	return t.sampleNearest(c)
}

func (t *Texture) sampleNearest(c Coord) Color {
	x := int(math.Floor(clampAxis(c.X, t.width)))
	y := int(math.Floor(clampAxis(c.Y, t.height)))
	return t.texel(x, y)
}

func (t *Texture) sampleBilinear(c Coord) Color {
	fx := clampAxis(c.X, t.width)
	fy := clampAxis(c.Y, t.height)

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	x1 := min(x0+1, t.width-1)
	y1 := min(y0+1, t.height-1)
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	c00 := t.texel(x0, y0)
	c10 := t.texel(x1, y0)
	c01 := t.texel(x0, y1)
	c11 := t.texel(x1, y1)

	var out Color
	for i := range out {
		top := lerp(float64(c00[i]), float64(c10[i]), tx)
		bottom := lerp(float64(c01[i]), float64(c11[i]), tx)
		out[i] = uint8(math.Min(255, lerp(top, bottom, ty)+0.5))
	}
	return out
}

// texel reads pixel (x, y), which must already be in range.
func (t *Texture) texel(x, y int) Color {
	i := (y*t.width + x) * 4
	return Color{t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3]}
}

// clampAxis clamps v to [0, size-1]. NaN maps to 0.
func clampAxis(v float64, size int) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if limit := float64(size - 1); v > limit {
		return limit
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}
