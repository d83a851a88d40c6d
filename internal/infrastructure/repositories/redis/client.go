package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options configures the shared Redis client.
type Options struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	Prefix   string
}

// NewRedisClient connects with connection pooling, verifies the server
// answers and brings the key layout up to date.
func NewRedisClient(opts Options, logger *zap.SugaredLogger) (*redis.Client, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     poolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := Migrate(ctx, client, prefixOrDefault(opts.Prefix), logger); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Infow("connected to Redis",
		"address", opts.Address,
		"db", opts.DB,
		"pool_size", poolSize,
	)
	return client, nil
}

// CloseRedisClient closes the client if one was opened.
func CloseRedisClient(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

func prefixOrDefault(prefix string) string {
	if prefix == "" {
		return "vidtube:"
	}
	return prefix
}
