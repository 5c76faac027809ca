package avatar

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeHost struct {
	hits atomic.Int32
	// gate holds /slow.png until it is closed.
	gate chan struct{}
}

func (f *fakeHost) serve(t *testing.T, src *Source) {
	t.Helper()
	face := pngBytes(t, 6, 4, color.NRGBA{200, 10, 10, 255})
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		f.hits.Add(1)
		switch string(ctx.Path()) {
		case "/u/1.png":
			ctx.SetContentType("image/png")
			ctx.SetBody(face)
		case "/slow.png":
			<-f.gate
			ctx.SetContentType("image/png")
			ctx.SetBody(face)
		case "/u/1":
			ctx.Redirect("/u/1.png", fasthttp.StatusFound)
		case "/loop":
			ctx.Redirect("/loop", fasthttp.StatusMovedPermanently)
		case "/text":
			ctx.SetBodyString("not a picture")
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	src.HTTP.Dial = func(string) (net.Conn, error) { return ln.Dial() }
}

func TestImage(t *testing.T) {
	src := NewSource(8, time.Minute, time.Second)
	var host fakeHost
	host.serve(t, src)
	ctx := context.Background()

	img, err := src.Image(ctx, "http://avatars.test/u/1.png")
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 6, 4), img.Bounds())
	r, _, _, _ := img.At(0, 0).RGBA()
	require.EqualValues(t, 200, r>>8)

	again, err := src.Image(ctx, "http://avatars.test/u/1.png")
	require.NoError(t, err)
	require.Same(t, img, again)
	require.EqualValues(t, 1, host.hits.Load())
	require.Equal(t, 1, src.Len())
}

func TestImageSharesConcurrentFetches(t *testing.T) {
	src := NewSource(8, time.Minute, 5*time.Second)
	host := fakeHost{gate: make(chan struct{})}
	host.serve(t, src)

	const callers = 8
	imgs := make([]image.Image, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Go(func() {
			img, err := src.Image(context.Background(), "http://avatars.test/slow.png")
			assert.NoError(t, err)
			imgs[i] = img
		})
	}
	require.Eventually(t, func() bool { return host.hits.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(host.gate)
	wg.Wait()

	require.EqualValues(t, 1, host.hits.Load())
	for _, img := range imgs {
		require.Same(t, imgs[0], img)
	}
}

func TestImageFollowsRedirects(t *testing.T) {
	src := NewSource(0, 0, time.Second)
	var host fakeHost
	host.serve(t, src)

	img, err := src.Image(context.Background(), "http://avatars.test/u/1")
	require.NoError(t, err)
	require.Equal(t, 6, img.Bounds().Dx())
	require.EqualValues(t, 2, host.hits.Load())
	require.Zero(t, src.Len())
}

func TestImageErrors(t *testing.T) {
	src := NewSource(8, time.Minute, time.Second)
	var host fakeHost
	host.serve(t, src)
	ctx := context.Background()

	_, err := src.Image(ctx, "http://avatars.test/loop")
	require.ErrorContains(t, err, "more than 5 redirects")

	_, err = src.Image(ctx, "http://avatars.test/missing")
	require.ErrorContains(t, err, "unexpected status 404")

	_, err = src.Image(ctx, "http://avatars.test/text")
	require.ErrorIs(t, err, ErrNotImage)

	_, err = src.Image(ctx, "file:///etc/passwd")
	require.ErrorContains(t, err, "unsupported scheme")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = src.Image(cancelled, "http://avatars.test/u/1.png")
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, src.Len())
}

func TestDecode(t *testing.T) {
	img, err := Decode(pngBytes(t, 3, 3, color.NRGBA{0, 0, 255, 255}))
	require.NoError(t, err)
	require.Equal(t, 3, img.Bounds().Dy())

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
	img, err = Decode(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 8, img.Bounds().Dx())

	_, err = Decode([]byte("GIF89a?"))
	require.ErrorIs(t, err, ErrNotImage)
}

func TestDecodeRejectsHugeImages(t *testing.T) {
	raw := pngBytes(t, 1, 1, color.NRGBA{0, 0, 255, 255})
	// Rewrite the IHDR size to 20000x20000 and fix up its checksum. The tiny
	// pixel stream stays, as in a highly compressed bomb.
	binary.BigEndian.PutUint32(raw[16:20], 20000)
	binary.BigEndian.PutUint32(raw[20:24], 20000)
	binary.BigEndian.PutUint32(raw[29:33], crc32.ChecksumIEEE(raw[12:29]))

	_, err := Decode(raw)
	require.ErrorIs(t, err, ErrNotImage)
	require.ErrorContains(t, err, "20000x20000")

	img, err := Decode(pngBytes(t, 4096, 1, color.NRGBA{}))
	require.NoError(t, err)
	require.Equal(t, 4096, img.Bounds().Dx())
}
