package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erinpentecost/pixelprofile/internal/avatar"
	"github.com/erinpentecost/pixelprofile/internal/card"
	"github.com/erinpentecost/pixelprofile/internal/config"
	"github.com/erinpentecost/pixelprofile/internal/convert"
	"github.com/erinpentecost/pixelprofile/internal/github"
	"github.com/erinpentecost/pixelprofile/internal/logging"
	"github.com/erinpentecost/pixelprofile/internal/server"
	"github.com/spf13/pflag"
)

var (
	configPath   = pflag.StringP("config", "c", "", "YAML config file")
	listen       = pflag.String("listen", "", "address to serve on; overrides the config")
	user         = pflag.StringP("user", "u", "", "GitHub username to render")
	outPath      = pflag.StringP("out", "o", "card.png", "where render writes the card (.png or .bmp)")
	screenEffect = pflag.Bool("screen-effect", false, "apply the scanline screen effect")
	border       = pflag.Bool("border", true, "give the avatar a transparent border")
	filter       = pflag.String("filter", "", "texture filter, nearest or bilinear; overrides the config")
	threads      = pflag.IntP("threads", "t", -1, "render workers, 0 for one per CPU; overrides the config")
	logLevel     = pflag.String("log-level", "info", "debug, info, warn or error")
)

var errUsage = errors.New("usage")

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] serve|render\n", os.Args[0])
	pflag.PrintDefaults()
}

// loadConfig reads --config and applies the flags that override it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *filter != "" {
		cfg.Render.Filter = *filter
	}
	if *threads >= 0 {
		cfg.Render.Threads = *threads
	}
	return cfg, cfg.Validate()
}

func newPipeline(cfg config.Config) (*card.Pipeline, error) {
	composer, err := card.NewComposer()
	if err != nil {
		return nil, err
	}
	return &card.Pipeline{
		Stats:           github.NewClient(cfg.GitHub.APIURL, cfg.GitHub.Token, cfg.RequestTimeout),
		Avatars:         avatar.NewSource(cfg.Avatar.CacheSize, cfg.Avatar.CacheTTL, cfg.RequestTimeout),
		Composer:        composer,
		Workers:         cfg.Render.Threads,
		FrameWidthRatio: cfg.Render.FrameWidthRatio,
	}, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	pipeline, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	mode, err := cfg.FilterMode()
	if err != nil {
		return err
	}
	s := &server.Server{
		Cards:   pipeline,
		Timeout: cfg.RequestTimeout,
		Filter:  mode,
	}
	return s.ListenAndServe(ctx, cfg.Listen)
}

func render(ctx context.Context, cfg config.Config) error {
	if *user == "" {
		return errors.New("render needs --user")
	}
	format, err := convert.FormatFromPath(*outPath)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	mode, err := cfg.FilterMode()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	img, err := pipeline.Render(ctx, *user, card.RenderOptions{
		ScreenEffect: *screenEffect,
		Border:       *border,
		Filter:       mode,
	})
	if err != nil {
		return fmt.Errorf("render card for %q: %w", *user, err)
	}

	f, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", *outPath, err)
	}
	if err := convert.Encode(f, img, format); err != nil {
		f.Close()
		return fmt.Errorf("encode %q: %w", *outPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", *outPath, err)
	}
	fmt.Printf("Wrote %q.\n", *outPath)
	return nil
}

func run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: expected one command, got %d", errUsage, len(args))
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	switch args[0] {
	case "serve":
		return serve(ctx, cfg)
	case "render":
		return render(ctx, cfg)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func main() {
	pflag.Usage = usage
	pflag.Parse()

	logger, err := logging.New(os.Stderr, *logLevel)
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(2)
	}
	logging.Set(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, pflag.Args())
	stop()
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		if errors.Is(err, errUsage) {
			usage()
		}
		os.Exit(33)
	}
}
