package card

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/erinpentecost/pixelprofile/internal/convert"
	"github.com/erinpentecost/pixelprofile/internal/github"
	"github.com/erinpentecost/pixelprofile/internal/hue"
	"github.com/erinpentecost/pixelprofile/internal/logging"
	"github.com/erinpentecost/pixelprofile/internal/postprocessors"
	"github.com/erinpentecost/pixelprofile/internal/shader"
)

// AvatarSource returns decoded avatars. Returned images are read-only.
type AvatarSource interface {
	Image(ctx context.Context, url string) (image.Image, error)
}

// RenderOptions are the per-request card switches.
type RenderOptions struct {
	ScreenEffect bool
	Border       bool
	Filter       shader.FilterMode
}

// Pipeline turns a username into a finished card.
type Pipeline struct {
	Stats    github.Fetcher
	Avatars  AvatarSource
	Composer *Composer
	// Workers bounds render concurrency; 0 means GOMAXPROCS.
	Workers         int
	FrameWidthRatio float64
}

// Render fetches the stats and avatar for username and draws the card.
func (p *Pipeline) Render(ctx context.Context, username string, o RenderOptions) (*image.NRGBA, error) {
	start := time.Now()

	stats, err := p.Stats.Fetch(ctx, username)
	if err != nil {
		return nil, err
	}
	face, err := p.Avatars.Image(ctx, stats.AvatarURL)
	if err != nil {
		return nil, err
	}

	tile, err := p.tile(ctx, face, o)
	if err != nil {
		return nil, fmt.Errorf("convert avatar: %w", err)
	}

	canvas, err := p.Composer.Compose(stats, tile, hue.PaletteFor(tile))
	if err != nil {
		return nil, fmt.Errorf("compose card: %w", err)
	}

	out, err := p.finish(ctx, canvas, o)
	if err != nil {
		return nil, fmt.Errorf("finish card: %w", err)
	}

	logging.L().Info("rendered card",
		"user", stats.Login,
		"border", o.Border,
		"screen_effect", o.ScreenEffect,
		"filter", o.Filter,
		"took", time.Since(start))
	return out, nil
}

func (p *Pipeline) converterOptions(o RenderOptions) []convert.Option {
	return []convert.Option{convert.WithFilter(o.Filter), convert.WithWorkers(p.Workers)}
}

// tile scales face to the avatar tile, bordered when o.Border is set.
// Conversion never writes to its input, so face may be a cached image.
func (p *Pipeline) tile(ctx context.Context, face image.Image, o RenderOptions) (*image.NRGBA, error) {
	opts := p.converterOptions(o)
	if o.Border {
		opts = append(opts, convert.WithBorder(shader.BorderOptions{FrameWidthRatio: p.FrameWidthRatio}))
	}
	return convert.Avatar(opts...).ConvertImage(ctx, face)
}

// finish resamples the composed canvas to the card size and applies the
// screen effect when asked.
func (p *Pipeline) finish(ctx context.Context, canvas *image.NRGBA, o RenderOptions) (*image.NRGBA, error) {
	chain := postprocessors.Chain{
		&postprocessors.ResampleProcessor{Converter: convert.Card(p.converterOptions(o)...)},
	}
	if o.ScreenEffect {
		fx := postprocessors.NewScreenEffect()
		fx.Workers = p.Workers
		chain = append(chain, fx)
	}
	return chain.Process(ctx, canvas)
}
