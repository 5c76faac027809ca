// Package config loads pixelprofile settings from YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/erinpentecost/pixelprofile/internal/shader"
	"gopkg.in/yaml.v3"
)

// GitHub locates the GitHub REST API.
type GitHub struct {
	APIURL string `yaml:"api_url"`
	Token  string `yaml:"token"`
}

// Avatar sizes the decoded avatar cache.
type Avatar struct {
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// Render holds the shader driver settings.
type Render struct {
	// Threads is the worker count for the shader driver; 0 means GOMAXPROCS.
	Threads         int     `yaml:"threads"`
	Filter          string  `yaml:"filter"`
	FrameWidthRatio float64 `yaml:"frame_width_ratio"`
}

// Config is the whole settings file.
type Config struct {
	Listen         string        `yaml:"listen"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	GitHub         GitHub        `yaml:"github"`
	Avatar         Avatar        `yaml:"avatar"`
	Render         Render        `yaml:"render"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Listen:         ":8080",
		RequestTimeout: 10 * time.Second,
		Avatar: Avatar{
			CacheSize: 256,
			CacheTTL:  time.Hour,
		},
		Render: Render{
			Filter:          shader.Nearest.String(),
			FrameWidthRatio: 0.03,
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(raw); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) decode(raw []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("GITHUB_TOKEN"); ok && v != "" {
		c.GitHub.Token = v
	}
	if v, ok := lookup("PIXELPROFILE_LISTEN"); ok && v != "" {
		c.Listen = v
	}
}

func (c Config) Validate() error {
	if _, err := c.FilterMode(); err != nil {
		return fmt.Errorf("render.filter: %w", err)
	}
	if err := c.BorderOptions().Validate(); err != nil {
		return fmt.Errorf("render.frame_width_ratio: %w", err)
	}
	if c.Render.Threads < 0 {
		return fmt.Errorf("render.threads %d: %w", c.Render.Threads, shader.ErrInvalidOptions)
	}
	if c.Avatar.CacheSize < 0 {
		return fmt.Errorf("avatar.cache_size %d: %w", c.Avatar.CacheSize, shader.ErrInvalidOptions)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout %s: %w", c.RequestTimeout, shader.ErrInvalidOptions)
	}
	return nil
}

func (c Config) FilterMode() (shader.FilterMode, error) {
	return shader.ParseFilterMode(c.Render.Filter)
}

func (c Config) BorderOptions() shader.BorderOptions {
	return shader.BorderOptions{FrameWidthRatio: c.Render.FrameWidthRatio}
}
