package shader

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/erinpentecost/pixelprofile/internal/logging"
	"golang.org/x/sync/errgroup"
)

// SampleFunc samples the source texture at any coordinate.
type SampleFunc func(c Coord) Color

// Pixel describes the output pixel a shader is producing.
type Pixel struct {
	// X and Y are the output coordinates.
	X, Y int
	// Src is the source coordinate the output pixel maps to.
	Src Coord
	// Color is the source texture sampled at Src.
	Color Color
}

// Func computes one output pixel. It must not depend on any other output
// pixel; the renderer calls it concurrently and in no particular order.
type Func func(px Pixel, sample SampleFunc) (Color, error)

// Identity passes the sampled colour through unchanged.
func Identity(px Pixel, _ SampleFunc) (Color, error) {
	return px.Color, nil
}

// Options configures a single Render call.
type Options struct {
	TextureFilter FilterMode

	// Workers bounds how many row bands are shaded at once.
	// Zero means runtime.GOMAXPROCS(0).
	Workers int
}

// bandsPerWorker splits the output into more bands than workers so a slow
// band does not leave the others idle.
const bandsPerWorker = 4

// Render runs fn once for every pixel of an outW x outH output and returns
// the new buffer. The source buffer is never modified.
//
// When the output size equals the source size the mapping is the identity.
// Otherwise output pixel (x, y) maps to source coordinate
// (x*srcW/outW, y*srcH/outH). A zero outW or outH means the source size.
//
// An error or panic from fn aborts the call. The context is checked between
// row bands; a cancelled render returns the context error and no buffer.
func Render(ctx context.Context, src []byte, srcW, srcH int, fn Func, opts Options, outW, outH int) ([]byte, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil shader", ErrInvalidOptions)
	}
	if outW == 0 {
		outW = srcW
	}
	if outH == 0 {
		outH = srcH
	}
	if outW < 0 || outH < 0 {
		return nil, fmt.Errorf("%w: output size %dx%d", ErrInvalidOptions, outW, outH)
	}
	tex, err := NewTexture(src, srcW, srcH, opts.TextureFilter)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	start := time.Now()
	out := make([]byte, outW*outH*4)
	job := &renderJob{
		tex:  tex,
		fn:   fn,
		out:  out,
		outW: outW,
		outH: outH,
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	bandRows := max(1, outH/(workers*bandsPerWorker))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for y0 := 0; y0 < outH; y0 += bandRows {
		y1 := min(y0+bandRows, outH)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return job.band(y0, y1)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("render %dx%d: %w", outW, outH, err)
	}

	logging.L().Debug("rendered",
		"src", fmt.Sprintf("%dx%d", srcW, srcH),
		"out", fmt.Sprintf("%dx%d", outW, outH),
		"filter", opts.TextureFilter,
		"took", time.Since(start))
	return out, nil
}

// RenderSame is Render with the output the same size as the source, so every
// pixel samples its own source position.
func RenderSame(ctx context.Context, src []byte, w, h int, fn Func, opts Options) ([]byte, error) {
	return Render(ctx, src, w, h, fn, opts, w, h)
}

// RenderBitmap is Render over Bitmap values.
func RenderBitmap(ctx context.Context, src Bitmap, fn Func, opts Options, outW, outH int) (Bitmap, error) {
	pix, err := Render(ctx, src.Pix, src.Width, src.Height, fn, opts, outW, outH)
	if err != nil {
		return Bitmap{}, err
	}
	if outW == 0 {
		outW = src.Width
	}
	if outH == 0 {
		outH = src.Height
	}
	return Bitmap{Pix: pix, Width: outW, Height: outH}, nil
}

type renderJob struct {
	tex  *Texture
	fn   Func
	out  []byte
	outW int
	outH int
}

// band shades rows [y0, y1). Bands never overlap, so no locking is needed.
func (j *renderJob) band(y0, y1 int) (err error) {
	var x, y int
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("shader panicked at (%d,%d): %v", x, y, r)
		}
	}()

	srcW, srcH := j.tex.Size()
	for y = y0; y < y1; y++ {
		sy := float64(y)
		if srcH != j.outH {
			sy = float64(y*srcH) / float64(j.outH)
		}
		for x = 0; x < j.outW; x++ {
			sx := float64(x)
			if srcW != j.outW {
				sx = float64(x*srcW) / float64(j.outW)
			}
			src := Coord{X: sx, Y: sy}
			c, err := j.fn(Pixel{X: x, Y: y, Src: src, Color: j.tex.Sample(src)}, j.tex.Sample)
			if err != nil {
				return fmt.Errorf("shade pixel (%d,%d): %w", x, y, err)
			}
			i := (y*j.outW + x) * 4
			copy(j.out[i:i+4], c[:])
		}
	}
	return nil
}
