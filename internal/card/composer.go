// Package card draws the stats card: avatar tile, name and counters on a
// background tinted from the avatar.
package card

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/erinpentecost/pixelprofile/internal/convert"
	"github.com/erinpentecost/pixelprofile/internal/github"
	"github.com/erinpentecost/pixelprofile/internal/hue"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Layout, in card pixels.
const (
	tileX      = 60
	tileY      = (convert.CardHeight - convert.AvatarSize) / 2
	panelInset = 12

	textX     = tileX + convert.AvatarSize + 60
	textRight = convert.CardWidth - 60

	titleSize     = 44
	titleBaseline = 130
	ruleHeight    = 4

	rowSize     = 28
	rowBaseline = 210
	rowStep     = 48
)

// Row is one labelled counter.
type Row struct {
	Label string
	Value string
}

// Rows lists the counters shown for s, top to bottom.
func Rows(s *github.Stats) []Row {
	return []Row{
		{"Total Stars", kFormat(s.TotalStars)},
		{"Total PRs", kFormat(s.TotalPRs)},
		{"Total Issues", kFormat(s.TotalIssues)},
		{"Public Repos", kFormat(s.PublicRepos)},
		{"Followers", kFormat(s.Followers)},
	}
}

// kFormat shortens counts above 999 to thousands rounded to one decimal,
// so 1234 becomes "1.2k" and 1999 becomes "2k".
func kFormat(n int) string {
	if n > 999 || n < -999 {
		return humanize.FtoaWithDigits(math.Round(float64(n)/100)/10, 1) + "k"
	}
	return strconv.Itoa(n)
}

// Composer lays out cards. The parsed font is shared; faces are created per
// call since they are not safe for concurrent use.
type Composer struct {
	font *opentype.Font
}

// NewComposer parses the card font.
func NewComposer() (*Composer, error) {
	f, err := opentype.Parse(gomonobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse card font: %w", err)
	}
	return &Composer{font: f}, nil
}

func (c *Composer) face(size float64) (font.Face, error) {
	return opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Compose draws a CardWidth x CardHeight card. tile is drawn over the panel
// so its transparent border shows the panel colour; tiles of another size are
// scaled to AvatarSize.
func (c *Composer) Compose(stats *github.Stats, tile image.Image, pal hue.Palette) (*image.NRGBA, error) {
	title, err := c.face(titleSize)
	if err != nil {
		return nil, fmt.Errorf("create title face: %w", err)
	}
	defer title.Close()
	body, err := c.face(rowSize)
	if err != nil {
		return nil, fmt.Errorf("create row face: %w", err)
	}
	defer body.Close()

	canvas := image.NewNRGBA(image.Rect(0, 0, convert.CardWidth, convert.CardHeight))
	fill(canvas, canvas.Bounds(), pal.Background)

	tileRect := image.Rect(tileX, tileY, tileX+convert.AvatarSize, tileY+convert.AvatarSize)
	fill(canvas, tileRect.Inset(-panelInset), pal.Panel)
	if tile != nil {
		tb := tile.Bounds()
		if tb.Size() == tileRect.Size() {
			draw.Draw(canvas, tileRect, tile, tb.Min, draw.Over)
		} else {
			draw.NearestNeighbor.Scale(canvas, tileRect, tile, tb, draw.Over, nil)
		}
	}

	maxWidth := fixed.I(textRight - textX)
	text(canvas, title, pal.Text, textX, titleBaseline, fit(title, stats.DisplayName(), maxWidth))
	fill(canvas, image.Rect(textX, titleBaseline+16, textRight, titleBaseline+16+ruleHeight), pal.Highlight)

	for i, row := range Rows(stats) {
		y := rowBaseline + i*rowStep
		text(canvas, body, pal.Muted, textX, y, row.Label)
		w := font.MeasureString(body, row.Value).Ceil()
		text(canvas, body, pal.Text, textRight-w, y, row.Value)
	}
	return canvas, nil
}

func fill(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func text(dst draw.Image, face font.Face, c color.Color, x, y int, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// fit trims s with a trailing "..." until it is no wider than width.
func fit(face font.Face, s string, width fixed.Int26_6) string {
	if font.MeasureString(face, s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && font.MeasureString(face, string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
