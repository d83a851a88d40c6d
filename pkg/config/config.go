package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	} `yaml:"server"`

	Activity struct {
		Enabled         bool          `yaml:"enabled"`
		Address         string        `yaml:"address"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SendBuffer      int           `yaml:"send_buffer"`
	} `yaml:"activity"`

	Storage struct {
		Backend    string `yaml:"backend"` // memory | sqlite
		SQLitePath string `yaml:"sqlite_path"`

		// Owner summaries shown in listings; TTL 0 disables the cache.
		SummaryCacheSize int           `yaml:"summary_cache_size"`
		SummaryCacheTTL  time.Duration `yaml:"summary_cache_ttl"`
	} `yaml:"storage"`

	Pagination struct {
		MaxPageSize  int `yaml:"max_page_size"`
		HistoryLimit int `yaml:"history_limit"`
	} `yaml:"pagination"`

	Assets struct {
		Backend string `yaml:"backend"` // file | s3

		File struct {
			Root    string `yaml:"root"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"file"`

		S3 struct {
			Bucket   string `yaml:"bucket"`
			Region   string `yaml:"region"`
			Endpoint string `yaml:"endpoint"`
			Prefix   string `yaml:"prefix"`
			BaseURL  string `yaml:"base_url"`
		} `yaml:"s3"`

		Timeout         time.Duration `yaml:"timeout"`
		MaxRetries      int           `yaml:"max_retries"`
		BreakerFailures uint32        `yaml:"breaker_failures"`
		BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
	} `yaml:"assets"`

	Backup struct {
		Enabled   bool          `yaml:"enabled"`
		Interval  time.Duration `yaml:"interval"`
		Retention time.Duration `yaml:"retention"`
		Backend   string        `yaml:"backend"` // file | s3
		Dir       string        `yaml:"dir"`

		S3 struct {
			Bucket   string `yaml:"bucket"`
			Region   string `yaml:"region"`
			Endpoint string `yaml:"endpoint"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"s3"`
	} `yaml:"backup"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		PrometheusPort    int    `yaml:"prometheus_port"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled        bool    `yaml:"enabled"`
		JaegerEndpoint string  `yaml:"jaeger_endpoint"`
		SamplingRate   float64 `yaml:"sampling_rate"`
		Environment    string  `yaml:"environment"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		Prefix   string `yaml:"prefix"`
		Edges    bool   `yaml:"edges"`  // keep Like/Subscription edges in Redis
		Events   bool   `yaml:"events"` // fan edge events out over pub/sub
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret       string        `yaml:"jwt_secret"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
		BcryptCost      int           `yaml:"bcrypt_cost"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int     `yaml:"connections_per_minute"`
			MessagesPerSecond    float64 `yaml:"messages_per_second"`
			Burst                int     `yaml:"burst"`
			MaxConcurrent        int     `yaml:"max_concurrent_connections"`
			MaxMessageSizeBytes  int64   `yaml:"max_message_size_bytes"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be > 0")
	}

	// Activity feed
	if c.Activity.Enabled {
		if c.Activity.Address == "" {
			return fmt.Errorf("activity.address must not be empty when activity.enabled=true")
		}
		if c.Activity.PingInterval <= 0 {
			return fmt.Errorf("activity.ping_interval must be > 0")
		}
		if c.Activity.PongTimeout <= c.Activity.PingInterval {
			return fmt.Errorf("activity.pong_timeout must be > activity.ping_interval")
		}
		if c.Activity.SendBuffer <= 0 {
			return fmt.Errorf("activity.send_buffer must be > 0")
		}
	}

	// Storage
	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path must not be empty when storage.backend=sqlite")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or sqlite, got %q", c.Storage.Backend)
	}

	if c.Storage.SummaryCacheTTL < 0 {
		return fmt.Errorf("storage.summary_cache_ttl must be >= 0")
	}
	if c.Storage.SummaryCacheTTL > 0 && c.Storage.SummaryCacheSize <= 0 {
		return fmt.Errorf("storage.summary_cache_size must be > 0 when the summary cache is on")
	}

	// Pagination
	if c.Pagination.MaxPageSize <= 0 {
		return fmt.Errorf("pagination.max_page_size must be > 0")
	}
	if c.Pagination.HistoryLimit <= 0 {
		return fmt.Errorf("pagination.history_limit must be > 0")
	}

	// Assets
	switch c.Assets.Backend {
	case "file":
		if c.Assets.File.Root == "" {
			return fmt.Errorf("assets.file.root must not be empty when assets.backend=file")
		}
	case "s3":
		if c.Assets.S3.Bucket == "" {
			return fmt.Errorf("assets.s3.bucket must not be empty when assets.backend=s3")
		}
	default:
		return fmt.Errorf("assets.backend must be file or s3, got %q", c.Assets.Backend)
	}
	if c.Assets.Timeout <= 0 {
		return fmt.Errorf("assets.timeout must be > 0")
	}
	if c.Assets.MaxRetries < 0 {
		return fmt.Errorf("assets.max_retries must be >= 0")
	}
	if c.Assets.BreakerFailures == 0 {
		return fmt.Errorf("assets.breaker_failures must be > 0")
	}

	// Backup
	if c.Backup.Enabled {
		if c.Storage.Backend != "sqlite" {
			return fmt.Errorf("backup.enabled requires storage.backend=sqlite")
		}
		if c.Backup.Interval <= 0 {
			return fmt.Errorf("backup.interval must be > 0")
		}
		if c.Backup.Retention < 0 {
			return fmt.Errorf("backup.retention must be >= 0")
		}
		switch c.Backup.Backend {
		case "file":
			if c.Backup.Dir == "" {
				return fmt.Errorf("backup.dir must not be empty when backup.backend=file")
			}
		case "s3":
			if c.Backup.S3.Bucket == "" {
				return fmt.Errorf("backup.s3.bucket must not be empty when backup.backend=s3")
			}
		default:
			return fmt.Errorf("backup.backend must be file or s3, got %q", c.Backup.Backend)
		}
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerEndpoint == "" {
			return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			return fmt.Errorf("tracing.sampling_rate must be within [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.Events && c.Redis.Channel == "" {
			return fmt.Errorf("redis.channel must not be empty when redis.events=true")
		}
	} else if c.Redis.Edges || c.Redis.Events {
		return fmt.Errorf("redis.edges and redis.events require redis.enabled=true")
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		return fmt.Errorf("auth.refresh_token_ttl must be > auth.access_token_ttl")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be within [4, 31]")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxMessageSizeBytes < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_message_size_bytes must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		// no file: defaults plus environment
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second
	cfg.Server.MaxUploadBytes = 512 << 20

	cfg.Activity.Enabled = true
	cfg.Activity.Address = ":8081"
	cfg.Activity.PingInterval = 30 * time.Second
	cfg.Activity.PongTimeout = 60 * time.Second
	cfg.Activity.ShutdownTimeout = 30 * time.Second
	cfg.Activity.SendBuffer = 64

	cfg.Storage.Backend = "memory"
	cfg.Storage.SQLitePath = "data/vidtube.db"
	cfg.Storage.SummaryCacheSize = 10000
	cfg.Storage.SummaryCacheTTL = 30 * time.Second

	cfg.Pagination.MaxPageSize = 100
	cfg.Pagination.HistoryLimit = 100

	cfg.Assets.Backend = "file"
	cfg.Assets.File.Root = "data/assets"
	cfg.Assets.File.BaseURL = "/assets"
	cfg.Assets.S3.Region = "us-east-1"
	cfg.Assets.Timeout = 2 * time.Minute
	cfg.Assets.MaxRetries = 2
	cfg.Assets.BreakerFailures = 5
	cfg.Assets.BreakerTimeout = 30 * time.Second

	cfg.Backup.Enabled = false
	cfg.Backup.Interval = 6 * time.Hour
	cfg.Backup.Retention = 7 * 24 * time.Hour
	cfg.Backup.Backend = "file"
	cfg.Backup.Dir = "data/backups"
	cfg.Backup.S3.Region = "us-east-1"

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.SamplingRate = 1.0
	cfg.Tracing.Environment = "development"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.Prefix = "vidtube:"
	cfg.Redis.Channel = "vidtube:edge-events"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour // 7 days
	cfg.Auth.BcryptCost = 10
	cfg.Auth.AllowedOrigins = []string{"*"}

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 100
	cfg.RateLimiting.WebSocket.Burst = 200
	cfg.RateLimiting.WebSocket.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 64 * 1024

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("VIDTUBE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if addr := os.Getenv("VIDTUBE_ACTIVITY_ADDRESS"); addr != "" {
		c.Activity.Address = addr
	}
	if level := os.Getenv("VIDTUBE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("VIDTUBE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if backend := os.Getenv("VIDTUBE_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if path := os.Getenv("VIDTUBE_SQLITE_PATH"); path != "" {
		c.Storage.SQLitePath = path
	}
	if addr := os.Getenv("VIDTUBE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if enabled, err := strconv.ParseBool(os.Getenv("VIDTUBE_REDIS_ENABLED")); err == nil {
		c.Redis.Enabled = enabled
	}
	if backend := os.Getenv("VIDTUBE_ASSETS_BACKEND"); backend != "" {
		c.Assets.Backend = backend
	}
	if bucket := os.Getenv("VIDTUBE_S3_BUCKET"); bucket != "" {
		c.Assets.S3.Bucket = bucket
	}
	if enabled, err := strconv.ParseBool(os.Getenv("VIDTUBE_BACKUP_ENABLED")); err == nil {
		c.Backup.Enabled = enabled
	}
	if dir := os.Getenv("VIDTUBE_BACKUP_DIR"); dir != "" {
		c.Backup.Dir = dir
	}
	if endpoint := os.Getenv("VIDTUBE_JAEGER_ENDPOINT"); endpoint != "" {
		c.Tracing.JaegerEndpoint = endpoint
	}
}
