// Package postprocessors holds image stages that run after a card or tile is
// drawn. Each stage is built on the shader renderer.
package postprocessors

import (
	"context"
	"fmt"
	"image"
)

// PostProcessor transforms an image. Implementations return a new image and
// leave src untouched.
type PostProcessor interface {
	Process(ctx context.Context, src *image.NRGBA) (*image.NRGBA, error)
}

// Chain runs processors in order, feeding each the previous result.
type Chain []PostProcessor

// Process runs every processor in c and returns the last result, or src when
// c is empty.
func (c Chain) Process(ctx context.Context, src *image.NRGBA) (*image.NRGBA, error) {
	out := src
	for i, p := range c {
		var err error
		out, err = p.Process(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("post-processor %d (%T): %w", i, p, err)
		}
	}
	return out, nil
}
