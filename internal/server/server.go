// Package server serves stats cards over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/erinpentecost/pixelprofile/internal/card"
	"github.com/erinpentecost/pixelprofile/internal/convert"
	"github.com/erinpentecost/pixelprofile/internal/github"
	"github.com/erinpentecost/pixelprofile/internal/logging"
	"github.com/erinpentecost/pixelprofile/internal/shader"
	"github.com/valyala/fasthttp"
)

// errBadRequest marks query parameters that cannot be parsed.
var errBadRequest = errors.New("bad request")

// Renderer produces a card for a user. *card.Pipeline satisfies it.
type Renderer interface {
	Render(ctx context.Context, username string, o card.RenderOptions) (*image.NRGBA, error)
}

type Server struct {
	Cards Renderer
	// Timeout bounds a whole card request.
	Timeout time.Duration
	// Filter is used when the request does not name one.
	Filter shader.FilterMode
}

// Handler routes /, /api and /healthz.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/", "/api":
			s.serveCard(ctx)
		case "/healthz":
			ctx.SetContentType("text/plain; charset=utf-8")
			ctx.SetBodyString("ok")
		default:
			ctx.Error("not found", fasthttp.StatusNotFound)
		}
	}
}

type cardRequest struct {
	username string
	opts     card.RenderOptions
	base64   bool
}

func (s *Server) parse(args *fasthttp.Args) (cardRequest, error) {
	req := cardRequest{
		username: strings.TrimSpace(string(args.Peek("username"))),
		opts: card.RenderOptions{
			Border: true,
			Filter: s.Filter,
		},
	}
	if req.username == "" {
		return req, fmt.Errorf("%w: username is required", errBadRequest)
	}

	var err error
	if req.opts.ScreenEffect, err = boolArg(args, "screen_effect", false); err != nil {
		return req, err
	}
	if req.opts.Border, err = boolArg(args, "border", true); err != nil {
		return req, err
	}
	if f := args.Peek("filter"); len(f) > 0 {
		if req.opts.Filter, err = shader.ParseFilterMode(string(f)); err != nil {
			return req, fmt.Errorf("%w: %w", errBadRequest, err)
		}
	}
	switch out := string(args.Peek("output")); out {
	case "", "png":
	case "base64":
		req.base64 = true
	default:
		return req, fmt.Errorf("%w: unknown output %q", errBadRequest, out)
	}
	return req, nil
}

func boolArg(args *fasthttp.Args, key string, def bool) (bool, error) {
	v := args.Peek(key)
	if len(v) == 0 {
		return def, nil
	}
	b, err := strconv.ParseBool(string(v))
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q is not a boolean", errBadRequest, key, v)
	}
	return b, nil
}

func (s *Server) serveCard(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	log := logging.L().With("remote", ctx.RemoteIP().String(), "uri", string(ctx.RequestURI()))

	req, err := s.parse(ctx.QueryArgs())
	if err != nil {
		s.fail(ctx, log, err)
		return
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	img, err := s.Cards.Render(rctx, req.username, req.opts)
	if err != nil {
		s.fail(ctx, log, err)
		return
	}

	if req.base64 {
		url, err := convert.DataURL(shader.FromImage(img))
		if err != nil {
			s.fail(ctx, log, err)
			return
		}
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString(url)
	} else {
		ctx.SetContentType("image/png")
		if err := convert.Encode(ctx, img, convert.PNG); err != nil {
			ctx.Response.ResetBody()
			s.fail(ctx, log, err)
			return
		}
	}
	log.Info("served card", "user", req.username, "took", time.Since(start))
}

// fail maps err to a status code and writes a short plain-text body.
func (s *Server) fail(ctx *fasthttp.RequestCtx, log *slog.Logger, err error) {
	code := statusFor(err)
	msg := fasthttp.StatusMessage(code)
	if code == fasthttp.StatusBadRequest {
		msg = err.Error()
	}
	if code >= fasthttp.StatusInternalServerError {
		log.Error("card request failed", "status", code, "err", err)
	} else {
		log.Info("card request rejected", "status", code, "err", err)
	}
	ctx.Error(msg, code)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, github.ErrBadUsername):
		return fasthttp.StatusBadRequest
	case errors.Is(err, github.ErrUserNotFound):
		return fasthttp.StatusNotFound
	default:
		return fasthttp.StatusInternalServerError
	}
}

// Serve handles connections from ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &fasthttp.Server{
		Handler:      s.Handler(),
		Name:         "pixelprofile",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Logger:       printfLogger{},
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logging.L().Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		// Shutdown is a no-op if Serve has not registered ln yet.
		_ = ln.Close()
		return <-errc
	}
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	logging.L().Info("listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// printfLogger sends fasthttp's own messages to the process logger.
type printfLogger struct{}

func (printfLogger) Printf(format string, args ...any) {
	logging.L().Warn(fmt.Sprintf(format, args...))
}
