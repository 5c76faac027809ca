// Package convert resamples bitmaps of any size to fixed target sizes and
// encodes the results.
package convert

import (
	"context"
	"fmt"
	"image"

	"github.com/erinpentecost/pixelprofile/internal/shader"
)

const (
	// AvatarSize is the edge length of the square avatar tile.
	AvatarSize = 280

	// CardWidth and CardHeight are the size of the finished card.
	CardWidth  = 1220
	CardHeight = 460
)

// Converter resamples bitmaps to a fixed size. Nearest filtering is the
// default, so large sources come out blocky; that is the intended look.
//
// A Converter is immutable and safe for concurrent use.
type Converter struct {
	width  int
	height int
	opts   shader.Options
	border *shader.BorderOptions
}

// Option configures a Converter.
type Option func(*Converter)

// WithFilter selects the texture filter used while resampling.
func WithFilter(mode shader.FilterMode) Option {
	return func(c *Converter) { c.opts.TextureFilter = mode }
}

// WithWorkers bounds render concurrency. See shader.Options.
func WithWorkers(n int) Option {
	return func(c *Converter) { c.opts.Workers = n }
}

// WithBorder applies the border shader to the resampled bitmap.
func WithBorder(o shader.BorderOptions) Option {
	return func(c *Converter) { c.border = &o }
}

// New returns a converter producing width x height bitmaps.
func New(width, height int, opts ...Option) *Converter {
	c := &Converter{width: width, height: height}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Avatar returns a converter for the square avatar tile.
func Avatar(opts ...Option) *Converter {
	return New(AvatarSize, AvatarSize, opts...)
}

// Card returns a converter for the full card canvas.
func Card(opts ...Option) *Converter {
	return New(CardWidth, CardHeight, opts...)
}

// Size returns the target size.
func (c *Converter) Size() image.Point {
	return image.Pt(c.width, c.height)
}

// Convert resamples src to the target size with a pass-through shader.
func (c *Converter) Convert(ctx context.Context, src shader.Bitmap) (shader.Bitmap, error) {
	if c.width <= 0 || c.height <= 0 {
		return shader.Bitmap{}, fmt.Errorf("%w: target size %dx%d", shader.ErrInvalidOptions, c.width, c.height)
	}
	if c.border != nil {
		if err := c.border.Validate(); err != nil {
			return shader.Bitmap{}, err
		}
	}

	out, err := shader.RenderBitmap(ctx, src, shader.Identity, c.opts, c.width, c.height)
	if err != nil {
		return shader.Bitmap{}, fmt.Errorf("convert to %dx%d: %w", c.width, c.height, err)
	}
	if c.border == nil {
		return out, nil
	}

	out, err = shader.AddBorder(ctx, out, *c.border)
	if err != nil {
		return shader.Bitmap{}, fmt.Errorf("convert to %dx%d: %w", c.width, c.height, err)
	}
	return out, nil
}

// ConvertImage is Convert for image.Image values.
func (c *Converter) ConvertImage(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	out, err := c.Convert(ctx, shader.FromImage(img))
	if err != nil {
		return nil, err
	}
	return out.Image(), nil
}
