package card

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/erinpentecost/pixelprofile/internal/convert"
	"github.com/erinpentecost/pixelprofile/internal/github"
	"github.com/erinpentecost/pixelprofile/internal/shader"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	stats *github.Stats
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, username string) (*github.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := *f.stats
	s.Login = username
	return &s, nil
}

type fakeAvatars struct {
	img  image.Image
	err  error
	urls []string
}

func (f *fakeAvatars) Image(_ context.Context, url string) (image.Image, error) {
	f.urls = append(f.urls, url)
	return f.img, f.err
}

var blue = color.NRGBA{0, 0, 255, 255}

func testPipeline(t *testing.T) (*Pipeline, *fakeAvatars) {
	t.Helper()
	c, err := NewComposer()
	require.NoError(t, err)
	stats := testStats()
	stats.AvatarURL = "http://avatars.test/octocat.png"
	avatars := &fakeAvatars{img: solid(50, 50, blue)}
	return &Pipeline{
		Stats:           &fakeFetcher{stats: stats},
		Avatars:         avatars,
		Composer:        c,
		Workers:         2,
		FrameWidthRatio: 0.03,
	}, avatars
}

func TestPipelineRender(t *testing.T) {
	p, avatars := testPipeline(t)
	ctx := context.Background()

	plain, err := p.Render(ctx, "octocat", RenderOptions{})
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, convert.CardWidth, convert.CardHeight), plain.Bounds())
	require.Equal(t, []string{"http://avatars.test/octocat.png"}, avatars.urls)
	require.Equal(t, blue, plain.NRGBAAt(tileX, tileY))
	require.Equal(t, blue, plain.NRGBAAt(tileX+140, tileY+140))

	bordered, err := p.Render(ctx, "octocat", RenderOptions{Border: true})
	require.NoError(t, err)
	require.Equal(t, blue, bordered.NRGBAAt(tileX+140, tileY+140))
	require.NotEqual(t, blue, bordered.NRGBAAt(tileX, tileY), "erased corner shows the panel")
	require.EqualValues(t, 255, bordered.NRGBAAt(tileX, tileY).A)

	// Border pixels are half transparent over the panel, so they are a blend.
	edge := bordered.NRGBAAt(tileX+2, tileY+140)
	require.NotEqual(t, blue, edge)
	require.Greater(t, edge.B, uint8(100))
}

func TestPipelineUsesConverters(t *testing.T) {
	p, _ := testPipeline(t)
	ctx := context.Background()
	face := solid(50, 50, blue)
	o := RenderOptions{Border: true, Filter: shader.Bilinear}

	tile, err := p.tile(ctx, face, o)
	require.NoError(t, err)
	want, err := convert.Avatar(
		convert.WithFilter(shader.Bilinear),
		convert.WithBorder(shader.BorderOptions{FrameWidthRatio: 0.03}),
	).ConvertImage(ctx, face)
	require.NoError(t, err)
	require.Equal(t, want.Pix, tile.Pix)
	require.EqualValues(t, 0, tile.NRGBAAt(0, 0).A)

	canvas := solid(610, 230, blue)
	finished, err := p.finish(ctx, canvas, o)
	require.NoError(t, err)
	want, err = convert.Card(convert.WithFilter(shader.Bilinear)).ConvertImage(ctx, canvas)
	require.NoError(t, err)
	require.Equal(t, want.Pix, finished.Pix)
}

func TestPipelineScreenEffect(t *testing.T) {
	p, _ := testPipeline(t)
	ctx := context.Background()

	plain, err := p.Render(ctx, "octocat", RenderOptions{Border: true})
	require.NoError(t, err)
	fx, err := p.Render(ctx, "octocat", RenderOptions{Border: true, ScreenEffect: true})
	require.NoError(t, err)

	require.Equal(t, plain.NRGBAAt(5, 0), fx.NRGBAAt(5, 0))
	dark, lit := fx.NRGBAAt(5, 2), plain.NRGBAAt(5, 2)
	require.NotEqual(t, lit, dark)
	require.LessOrEqual(t, dark.B, lit.B)
}

func TestPipelineErrors(t *testing.T) {
	ctx := context.Background()

	p, _ := testPipeline(t)
	p.Stats = &fakeFetcher{err: github.ErrUserNotFound}
	_, err := p.Render(ctx, "ghost", RenderOptions{})
	require.ErrorIs(t, err, github.ErrUserNotFound)

	p, avatars := testPipeline(t)
	avatars.err = errors.New("avatar host down")
	_, err = p.Render(ctx, "octocat", RenderOptions{})
	require.ErrorContains(t, err, "avatar host down")

	p, _ = testPipeline(t)
	_, err = p.Render(ctx, "octocat", RenderOptions{Filter: shader.FilterMode(9)})
	require.ErrorIs(t, err, shader.ErrInvalidOptions)

	p, _ = testPipeline(t)
	p.FrameWidthRatio = 0
	_, err = p.Render(ctx, "octocat", RenderOptions{Border: true})
	require.ErrorIs(t, err, shader.ErrInvalidOptions)

	p, _ = testPipeline(t)
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.Render(cancelled, "octocat", RenderOptions{})
	require.ErrorIs(t, err, context.Canceled)
}
