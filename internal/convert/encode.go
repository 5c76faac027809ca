package convert

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/erinpentecost/pixelprofile/internal/shader"
	"golang.org/x/image/bmp"
)

// Format is an output image encoding.
type Format int

const (
	PNG Format = iota
	// BMP is uncompressed. Handy for inspecting output byte for byte.
	BMP
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case BMP:
		return "bmp"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		return PNG, nil
	case ".bmp":
		return BMP, nil
	default:
		return 0, fmt.Errorf("unsupported output extension %q", ext)
	}
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case PNG:
		return png.Encode(w, img)
	case BMP:
		return bmp.Encode(w, img)
	default:
		return fmt.Errorf("unknown format %v", format)
	}
}

// EncodePNG writes the bitmap as a PNG.
func EncodePNG(w io.Writer, b shader.Bitmap) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return png.Encode(w, b.Image())
}

// DataURL returns the bitmap as a base64 PNG data URL, ready to embed in a
// larger document.
func DataURL(b shader.Bitmap) (string, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, b); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
