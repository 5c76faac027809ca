package shader

import (
	"context"
	"fmt"
	"math"
)

// BorderAlpha is the alpha given to pixels in the border band.
const BorderAlpha = 128

// BorderOptions configures the border shader. The zero value of each flag
// keeps its feature enabled.
type BorderOptions struct {
	// FrameWidthRatio is the band width as a fraction of the image width.
	// Must lie in (0, 0.5).
	FrameWidthRatio float64

	// DisableTransparentBorder stops the band from being made half
	// transparent.
	DisableTransparentBorder bool

	// DisableCornerRemoval keeps the corners. Corners are otherwise erased
	// whether or not the transparent border is enabled.
	DisableCornerRemoval bool
}

// Validate reports ErrInvalidOptions for a ratio outside (0, 0.5).
func (o BorderOptions) Validate() error {
	if math.IsNaN(o.FrameWidthRatio) || o.FrameWidthRatio <= 0 || o.FrameWidthRatio >= 0.5 {
		return fmt.Errorf("%w: frame width ratio %v outside (0, 0.5)", ErrInvalidOptions, o.FrameWidthRatio)
	}
	return nil
}

// EdgeCount returns how many of the four edges (x, y) lies within
// frameWidth of. Two means a corner.
func EdgeCount(x, y, width, height int, frameWidth float64) int {
	maxX := float64(width - 1)
	maxY := float64(height - 1)
	fx, fy := float64(x), float64(y)

	count := 0
	if fx < frameWidth {
		count++
	}
	if fy < frameWidth {
		count++
	}
	if fx > maxX-frameWidth {
		count++
	}
	if fy > maxY-frameWidth {
		count++
	}
	return count
}

// Border returns a shader for a width x height image that makes the edge
// band half transparent and erases the corners. Only alpha changes.
//
// The band is FrameWidthRatio*width on every side, including the top and
// bottom.
func Border(width, height int, o BorderOptions) Func {
	frameWidth := o.FrameWidthRatio * float64(width)
	return func(px Pixel, _ SampleFunc) (Color, error) {
		c := px.Color
		count := EdgeCount(px.X, px.Y, width, height, frameWidth)
		if count == 0 {
			return c, nil
		}
		if !o.DisableTransparentBorder {
			c[3] = BorderAlpha
		}
		if count == 2 && !o.DisableCornerRemoval {
			c[3] = 0
		}
		return c, nil
	}
}

// AddBorder applies the border shader to src with nearest filtering and
// returns a new bitmap of the same size.
//
// A second pass with the same options changes nothing. The output only
// differs from the input of that pass when the options change between passes.
func AddBorder(ctx context.Context, src Bitmap, o BorderOptions) (Bitmap, error) {
	if err := o.Validate(); err != nil {
		return Bitmap{}, err
	}
	pix, err := RenderSame(ctx, src.Pix, src.Width, src.Height, Border(src.Width, src.Height, o), Options{TextureFilter: Nearest})
	if err != nil {
		return Bitmap{}, fmt.Errorf("add border: %w", err)
	}
	return Bitmap{Pix: pix, Width: src.Width, Height: src.Height}, nil
}
