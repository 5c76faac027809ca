package postprocessors

import (
	"context"
	"fmt"
	"image"

	"github.com/erinpentecost/pixelprofile/internal/logging"
	"github.com/erinpentecost/pixelprofile/internal/shader"
)

// ScreenEffectProcessor imitates an old monitor: every LineSpacing-th row is
// darkened and the red and blue channels are pulled ChromaShift pixels apart.
type ScreenEffectProcessor struct {
	// LineSpacing is the scanline period in rows. Must be at least 1.
	LineSpacing int
	// Darken is the share of brightness removed on a scanline, in [0, 1].
	Darken float64
	// ChromaShift is the horizontal red/blue offset in source pixels.
	ChromaShift float64
	Workers     int
}

// NewScreenEffect returns the effect used for the screen_effect card option.
func NewScreenEffect() *ScreenEffectProcessor {
	return &ScreenEffectProcessor{
		LineSpacing: 3,
		Darken:      0.35,
		ChromaShift: 1,
	}
}

// Process returns src with scanlines and the chroma shift applied.
func (p *ScreenEffectProcessor) Process(ctx context.Context, src *image.NRGBA) (*image.NRGBA, error) {
	if p.LineSpacing < 1 || p.Darken < 0 || p.Darken > 1 {
		return nil, fmt.Errorf("%w: screen effect spacing %d darken %v",
			shader.ErrInvalidOptions, p.LineSpacing, p.Darken)
	}
	logging.L().Debug("applying screen effect", "spacing", p.LineSpacing, "darken", p.Darken)

	out, err := shader.RenderBitmap(ctx, shader.FromImage(src), p.shade, shader.Options{Workers: p.Workers}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("screen effect: %w", err)
	}
	return out.Image(), nil
}

func (p *ScreenEffectProcessor) shade(px shader.Pixel, sample shader.SampleFunc) (shader.Color, error) {
	c := px.Color
	if p.ChromaShift != 0 {
		left := sample(shader.Coord{X: px.Src.X - p.ChromaShift, Y: px.Src.Y})
		right := sample(shader.Coord{X: px.Src.X + p.ChromaShift, Y: px.Src.Y})
		c[0] = left[0]
		c[2] = right[2]
	}
	if px.Y%p.LineSpacing == p.LineSpacing-1 {
		keep := 1 - p.Darken
		for i := range 3 {
			c[i] = uint8(float64(c[i])*keep + 0.5)
		}
	}
	return c, nil
}
