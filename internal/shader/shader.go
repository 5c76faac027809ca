// Package shader samples RGBA pixel buffers as textures and runs per-pixel
// shader functions over them.
//
// A pixel buffer is a flat, row-major byte slice holding 4 bytes per pixel in
// R, G, B, A order. Its length must always be width*height*4. Alpha is not
// premultiplied, so a shader may change alpha without touching colour.
package shader

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

var (
	// ErrDimensionMismatch is returned when a buffer length disagrees with
	// its declared width and height.
	ErrDimensionMismatch = errors.New("shader: buffer length does not match dimensions")

	// ErrInvalidOptions is returned for out of range options, such as an
	// unknown filter mode or a frame width ratio outside (0, 0.5).
	ErrInvalidOptions = errors.New("shader: invalid options")
)

// Color is one pixel in R, G, B, A order.
type Color [4]uint8

// FromColor converts any colour to a non-premultiplied Color.
func FromColor(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{n.R, n.G, n.B, n.A}
}

// Coord is a sampling position. It may be fractional or lie outside the
// texture.
type Coord struct {
	X, Y float64
}

// At returns the coordinate of the integral pixel (x, y).
func At(x, y int) Coord {
	return Coord{X: float64(x), Y: float64(y)}
}

// Bitmap is a pixel buffer together with its dimensions.
type Bitmap struct {
	Pix    []byte
	Width  int
	Height int
}

// NewBitmap allocates a transparent bitmap.
func NewBitmap(width, height int) Bitmap {
	return Bitmap{
		Pix:    make([]byte, width*height*4),
		Width:  width,
		Height: height,
	}
}

// Validate reports ErrDimensionMismatch unless len(Pix) == Width*Height*4.
func (b Bitmap) Validate() error {
	return checkDimensions(b.Pix, b.Width, b.Height)
}

// At returns the pixel at (x, y). The caller must keep x and y in range.
func (b Bitmap) At(x, y int) Color {
	i := (y*b.Width + x) * 4
	return Color{b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]}
}

// Set writes the pixel at (x, y). The caller must keep x and y in range.
func (b Bitmap) Set(x, y int, c Color) {
	i := (y*b.Width + x) * 4
	copy(b.Pix[i:i+4], c[:])
}

// Image wraps the bitmap as an *image.NRGBA sharing the same pixels.
func (b Bitmap) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// FromImage returns img as a bitmap. A tightly packed *image.NRGBA with a
// zero origin shares its pixels with the result; anything else is copied.
func FromImage(img image.Image) Bitmap {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if n, ok := img.(*image.NRGBA); ok && bounds.Min == (image.Point{}) && n.Stride == w*4 {
		return Bitmap{Pix: n.Pix[:w*h*4], Width: w, Height: h}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return Bitmap{Pix: dst.Pix, Width: w, Height: h}
}

func checkDimensions(pix []byte, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: non-positive size %dx%d", ErrDimensionMismatch, width, height)
	}
	if len(pix) != width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrDimensionMismatch, len(pix), width, height)
	}
	return nil
}
