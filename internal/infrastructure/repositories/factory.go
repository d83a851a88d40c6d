package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vidtube/internal/core/ports"
	"vidtube/internal/infrastructure/repositories/memory"
	redisrepo "vidtube/internal/infrastructure/repositories/redis"
	"vidtube/internal/infrastructure/repositories/sqlite"
	"vidtube/pkg/backup"
	"vidtube/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory opens the configured entity backend and, optionally,
// moves the edge store to Redis. A Redis outage at startup falls back to the
// entity backend's own edge store.
type RepositoryFactory struct {
	backend     string
	sqliteStore *sqlite.Store
	memoryStore *memory.Store
	redisClient *redis.Client
	redisPrefix string
	redisEdges  bool
	cacheSize   int
	cacheTTL    time.Duration
	reposOnce   sync.Once
	repos       ports.Repositories
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		backend:     cfg.Storage.Backend,
		redisPrefix: cfg.Redis.Prefix,
		cacheSize:   cfg.Storage.SummaryCacheSize,
		cacheTTL:    cfg.Storage.SummaryCacheTTL,
		logger:      logger,
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		store, err := sqlite.NewStore(cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		factory.sqliteStore = store
		logger.Infow("using SQLite repositories", "path", cfg.Storage.SQLitePath)
	case "memory", "":
		factory.memoryStore = memory.NewStore()
		logger.Info("using memory repositories")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(redisrepo.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.Prefix,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, keeping edges in the entity store",
				"error", err,
			)
		} else {
			factory.redisClient = client
			factory.redisEdges = cfg.Redis.Edges
			if factory.redisEdges {
				logger.Info("using Redis relationship store")
			}
		}
	}

	return factory, nil
}

// Repositories returns the stores the core services run on. Every call
// returns the same set so the summary cache is shared.
func (f *RepositoryFactory) Repositories() ports.Repositories {
	f.reposOnce.Do(func() { f.repos = f.buildRepositories() })
	return f.repos
}

func (f *RepositoryFactory) buildRepositories() ports.Repositories {
	var repos ports.Repositories
	if f.sqliteStore != nil {
		repos = f.sqliteStore.Repositories()
	} else {
		repos = f.memoryStore.Repositories()
	}
	if f.redisEdges && f.redisClient != nil {
		repos.Relationships = redisrepo.NewRelationshipRepository(f.redisClient, f.redisPrefix)
	}
	if f.cacheTTL > 0 {
		repos.Actors = NewCachedActorRepository(repos.Actors, f.cacheSize, f.cacheTTL)
	}
	return repos
}

// RedisClient exposes the shared client for other Redis consumers (the event
// bus); nil when Redis is disabled or unreachable.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// Snapshotter returns the database that backups are taken from. Only the
// SQLite backend can be snapshotted.
func (f *RepositoryFactory) Snapshotter() (backup.Snapshotter, bool) {
	if f.sqliteStore == nil {
		return nil, false
	}
	return f.sqliteStore, true
}

// Close releases every backend the factory opened.
func (f *RepositoryFactory) Close() error {
	var firstErr error
	if f.redisClient != nil {
		if err := redisrepo.CloseRedisClient(f.redisClient); err != nil {
			firstErr = err
		}
	}
	if f.sqliteStore != nil {
		if err := f.sqliteStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HealthCheck pings every backend in use.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.sqliteStore != nil {
		if err := f.sqliteStore.Ping(ctx); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
	}
	if f.redisClient != nil {
		if err := f.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
