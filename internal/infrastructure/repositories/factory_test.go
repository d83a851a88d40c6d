package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"vidtube/internal/core/ports"
	"vidtube/internal/infrastructure/repositories/memory"
	"vidtube/internal/infrastructure/repositories/sqlite"
	"vidtube/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewRepositoryFactory_Memory(t *testing.T) {
	cfg := config.DefaultConfig()
	f, err := NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer f.Close()

	repos := f.Repositories()
	assert.IsType(t, &memory.RelationshipRepository{}, repos.Relationships)
	assert.IsType(t, &CachedActorRepository{}, repos.Actors)
	assert.Same(t, repos.Actors, f.Repositories().Actors)
	assert.Nil(t, f.RedisClient())
	assert.NoError(t, f.HealthCheck(context.Background()))

	_, ok := f.Snapshotter()
	assert.False(t, ok)
}

func TestNewRepositoryFactory_SQLite(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "vidtube.db")

	f, err := NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer f.Close()

	repos := f.Repositories()
	assert.IsType(t, &sqlite.RelationshipRepository{}, repos.Relationships)
	_, joins := repos.Relationships.(ports.ChannelStatsReader)
	assert.True(t, joins)
	assert.NoError(t, f.HealthCheck(context.Background()))

	_, ok := f.Snapshotter()
	assert.True(t, ok)
}

func TestNewRepositoryFactory_RedisUnreachableFallsBack(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Edges = true
	cfg.Redis.Address = "127.0.0.1:1"

	f, err := NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.Nil(t, f.RedisClient())
	assert.IsType(t, &memory.RelationshipRepository{}, f.Repositories().Relationships)
}

func TestNewRepositoryFactory_SummaryCacheDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.SummaryCacheTTL = 0

	f, err := NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.IsType(t, &memory.ActorRepository{}, f.Repositories().Actors)
}

func TestNewRepositoryFactory_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "mongo"
	_, err := NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	assert.Error(t, err)
}
