// Package avatar downloads and decodes profile pictures.
package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"time"

	// Registered for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/erinpentecost/pixelprofile/internal/logging"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"
)

const (
	maxRedirects = 5

	// maxPixels bounds the decoded size of an avatar.
	maxPixels = 4096 * 4096
)

var ErrNotImage = errors.New("avatar: not a decodable image")

// Source fetches avatars over HTTP and keeps recently decoded ones around.
// Images it returns are shared between callers and must not be modified.
type Source struct {
	HTTP    *fasthttp.Client
	Timeout time.Duration

	cache *expirable.LRU[string, image.Image]
	// group merges concurrent fetches of the same URL.
	group singleflight.Group
}

// NewSource returns a Source caching up to size images for ttl. A size of
// zero disables the cache.
func NewSource(size int, ttl time.Duration, timeout time.Duration) *Source {
	s := &Source{
		HTTP: &fasthttp.Client{
			Name:                "pixelprofile",
			MaxResponseBodySize: 4 << 20,
		},
		Timeout: timeout,
	}
	if size > 0 {
		s.cache = expirable.NewLRU[string, image.Image](size, nil, ttl)
	}
	return s
}

// Image returns the decoded avatar at rawURL. Concurrent misses for the same
// URL share one download.
func (s *Source) Image(ctx context.Context, rawURL string) (image.Image, error) {
	if s.cache != nil {
		if img, ok := s.cache.Get(rawURL); ok {
			logging.L().Debug("avatar cache hit", "url", rawURL)
			return img, nil
		}
	}

	v, err, shared := s.group.Do(rawURL, func() (any, error) {
		raw, err := s.fetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("fetch avatar: %w", err)
		}
		img, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode avatar %s: %w", rawURL, err)
		}
		if s.cache != nil {
			s.cache.Add(rawURL, img)
		}
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.L().Debug("avatar fetch shared", "url", rawURL)
	}
	return v.(image.Image), nil
}

// Len is the number of cached images.
func (s *Source) Len() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

func (s *Source) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", target.Scheme)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	for range maxRedirects + 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req.Reset()
		resp.Reset()
		req.SetRequestURI(target.String())
		req.Header.SetMethod(fasthttp.MethodGet)

		if err := s.HTTP.DoDeadline(req, resp, deadline(ctx, s.Timeout)); err != nil {
			return nil, fmt.Errorf("GET %s: %w", target, err)
		}

		code := resp.StatusCode()
		if fasthttp.StatusCodeIsRedirect(code) {
			loc := resp.Header.Peek(fasthttp.HeaderLocation)
			if len(loc) == 0 {
				return nil, fmt.Errorf("GET %s: redirect without location", target)
			}
			next, err := target.Parse(string(loc))
			if err != nil {
				return nil, fmt.Errorf("GET %s: bad redirect: %w", target, err)
			}
			target = next
			continue
		}
		if code != fasthttp.StatusOK {
			return nil, fmt.Errorf("GET %s: unexpected status %d", target, code)
		}
		return bytes.Clone(resp.Body()), nil
	}
	return nil, fmt.Errorf("GET %s: more than %d redirects", rawURL, maxRedirects)
}

// Decode decodes PNG, JPEG, GIF or WebP bytes. Images over maxPixels are
// rejected from their header, before any pixel data is decoded.
func Decode(raw []byte) (image.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty %s", ErrNotImage, format)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %s is %dx%d, over %d pixels", ErrNotImage, format, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if b := img.Bounds(); b.Empty() {
		return nil, fmt.Errorf("%w: empty %s", ErrNotImage, format)
	}
	return img, nil
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return time.Now().Add(timeout)
}
