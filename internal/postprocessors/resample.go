package postprocessors

import (
	"context"
	"image"

	"github.com/erinpentecost/pixelprofile/internal/convert"
	"github.com/erinpentecost/pixelprofile/internal/logging"
)

// ResampleProcessor runs an image through a converter, so the result has the
// converter's size and any border it applies.
type ResampleProcessor struct {
	Converter *convert.Converter
}

// Process converts src with p.Converter.
func (p *ResampleProcessor) Process(ctx context.Context, src *image.NRGBA) (*image.NRGBA, error) {
	logging.L().Debug("resampling", "from", src.Bounds().Size(), "to", p.Converter.Size())
	return p.Converter.ConvertImage(ctx, src)
}
