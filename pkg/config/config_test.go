package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RateLimiting(t *testing.T) {
	t.Run("ignored while disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RateLimiting.HTTP.RequestsPerSecond = 0
		cfg.RateLimiting.HTTP.Burst = 0
		cfg.RateLimiting.WebSocket.ConnectionsPerMinute = -3
		cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = -1
		assert.NoError(t, cfg.Validate())
	})

	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"zero http rate":         {func(c *Config) { c.RateLimiting.HTTP.RequestsPerSecond = 0 }, "requests_per_second"},
		"zero http burst":        {func(c *Config) { c.RateLimiting.HTTP.Burst = 0 }, "http.burst"},
		"negative in-flight cap": {func(c *Config) { c.RateLimiting.HTTP.MaxConcurrent = -1 }, "http.max_concurrent"},
		"zero connect rate":      {func(c *Config) { c.RateLimiting.WebSocket.ConnectionsPerMinute = 0 }, "connections_per_minute"},
		"zero message rate":      {func(c *Config) { c.RateLimiting.WebSocket.MessagesPerSecond = 0 }, "messages_per_second"},
		"zero message burst":     {func(c *Config) { c.RateLimiting.WebSocket.Burst = 0 }, "websocket.burst"},
		"negative socket cap":    {func(c *Config) { c.RateLimiting.WebSocket.MaxConcurrent = -1 }, "max_concurrent_connections"},
		"negative message size":  {func(c *Config) { c.RateLimiting.WebSocket.MaxMessageSizeBytes = -1 }, "max_message_size_bytes"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RateLimiting.Enabled = true
			require.NoError(t, cfg.Validate())

			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate_BackendsAndDependencies(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "unknown storage backend",
			mutate: func(c *Config) { c.Storage.Backend = "postgres" },
			want:   "storage.backend",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Storage.Backend = "sqlite"
				c.Storage.SQLitePath = ""
			},
			want: "storage.sqlite_path",
		},
		{
			name: "s3 without bucket",
			mutate: func(c *Config) {
				c.Assets.Backend = "s3"
				c.Assets.S3.Bucket = ""
			},
			want: "assets.s3.bucket",
		},
		{
			name:   "redis edges without redis",
			mutate: func(c *Config) { c.Redis.Edges = true },
			want:   "require redis.enabled",
		},
		{
			name:   "backup on the memory backend",
			mutate: func(c *Config) { c.Backup.Enabled = true },
			want:   "backup.enabled requires storage.backend=sqlite",
		},
		{
			name: "backup to s3 without bucket",
			mutate: func(c *Config) {
				c.Storage.Backend = "sqlite"
				c.Backup.Enabled = true
				c.Backup.Backend = "s3"
			},
			want: "backup.s3.bucket",
		},
		{
			name:   "page size must be positive",
			mutate: func(c *Config) { c.Pagination.MaxPageSize = 0 },
			want:   "pagination.max_page_size",
		},
		{
			name:   "refresh ttl shorter than access ttl",
			mutate: func(c *Config) { c.Auth.RefreshTokenTTL = time.Minute },
			want:   "auth.refresh_token_ttl",
		},
		{
			name: "pong timeout not after ping",
			mutate: func(c *Config) {
				c.Activity.PongTimeout = c.Activity.PingInterval
			},
			want: "activity.pong_timeout",
		},
		{
			name: "sampling rate out of range",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SamplingRate = 2
			},
			want: "tracing.sampling_rate",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  address: ":9000"
storage:
  backend: sqlite
  sqlite_path: /tmp/vidtube-test.db
pagination:
  max_page_size: 25
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("VIDTUBE_JWT_SECRET", "from-env")
	t.Setenv("VIDTUBE_SERVER_ADDRESS", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Address)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 25, cfg.Pagination.MaxPageSize)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 100, cfg.Pagination.HistoryLimit)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "file", cfg.Assets.Backend)
}

func TestLoad_InvalidFileIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: mongo\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
