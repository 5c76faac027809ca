package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erinpentecost/pixelprofile/internal/shader"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pixelprofile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
	require.Equal(t, 256, cfg.Avatar.CacheSize)
	require.Equal(t, time.Hour, cfg.Avatar.CacheTTL)

	mode, err := cfg.FilterMode()
	require.NoError(t, err)
	require.Equal(t, shader.Nearest, mode)
	require.InDelta(t, 0.03, cfg.BorderOptions().FrameWidthRatio, 1e-9)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("PIXELPROFILE_LISTEN", "")
	path := writeConfig(t, `
listen: 127.0.0.1:9000
request_timeout: 3s
github:
  api_url: https://ghe.example.com/api/v3
  token: from-file
avatar:
  cache_ttl: 5m
render:
  threads: 4
  filter: bilinear
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Listen)
	require.Equal(t, 3*time.Second, cfg.RequestTimeout)
	require.Equal(t, "https://ghe.example.com/api/v3", cfg.GitHub.APIURL)
	require.Equal(t, "from-file", cfg.GitHub.Token)
	require.Equal(t, 5*time.Minute, cfg.Avatar.CacheTTL)
	require.Equal(t, 256, cfg.Avatar.CacheSize, "unset keys keep defaults")
	require.Equal(t, 4, cfg.Render.Threads)

	mode, err := cfg.FilterMode()
	require.NoError(t, err)
	require.Equal(t, shader.Bilinear, mode)
}

func TestLoadEmptyPathAndFile(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("PIXELPROFILE_LISTEN", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	cfg, err = Load(writeConfig(t, ""))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "from-env")
	t.Setenv("PIXELPROFILE_LISTEN", ":7070")

	cfg, err := Load(writeConfig(t, "github:\n  token: from-file\n"))
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.GitHub.Token)
	require.Equal(t, ":7070", cfg.Listen)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("PIXELPROFILE_LISTEN", "")

	tests := []struct {
		name    string
		body    string
		invalid bool
	}{
		{"unknown key", "colour: blue\n", false},
		{"bad yaml", "listen: [\n", false},
		{"bad duration", "request_timeout: soon\n", false},
		{"bad filter", "render:\n  filter: lanczos\n", true},
		{"ratio too big", "render:\n  frame_width_ratio: 0.5\n", true},
		{"ratio zero", "render:\n  frame_width_ratio: 0\n", true},
		{"negative threads", "render:\n  threads: -1\n", true},
		{"negative cache", "avatar:\n  cache_size: -3\n", true},
		{"zero timeout", "request_timeout: 0s\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			if tt.invalid {
				require.ErrorIs(t, err, shader.ErrInvalidOptions)
			}
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
