package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vidtube/pkg/distributed"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const currentSchemaVersion = 2

// Migration is one step of the key layout history.
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client, prefix string) error
}

func schemaVersionKey(prefix string) string {
	return prefix + "schema:version"
}

// Migrate runs all pending migrations for the keys under prefix. Instances
// starting together take turns through a lock so each migration runs once.
func Migrate(ctx context.Context, client *redis.Client, prefix string, logger *zap.SugaredLogger) error {
	return distributed.WithLock(ctx, client, prefix+"lock:migrations", 30*time.Second, time.Minute,
		func(ctx context.Context) error {
			return migrate(ctx, client, prefix, logger)
		})
}

func migrate(ctx context.Context, client *redis.Client, prefix string, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client, prefix)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		logger.Infow("schema is up to date",
			"current_version", currentVersion,
			"target_version", currentSchemaVersion,
		)
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		logger.Infow("running migration", "version", migration.Version)

		if err := migration.Up(ctx, client, prefix); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, prefix, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		logger.Infow("migration completed", "version", migration.Version)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client, prefix string) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey(prefix)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, prefix string, version int) error {
	return client.Set(ctx, schemaVersionKey(prefix), version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			// 1: edge sets keyed by target only; nothing to create up front.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client, prefix string) error {
				return nil
			},
		},
		{
			// 2: introduce per-source sets and backfill them from the target sets.
			Version: 2,
			Up:      backfillSourceIndex,
		},
	}
}

func backfillSourceIndex(ctx context.Context, client *redis.Client, prefix string) error {
	layout := keyLayout{prefix: prefix}
	iter := client.Scan(ctx, 0, layout.targetPattern(), 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		kind, targetKind, targetID, ok := layout.parseTargetKey(key)
		if !ok {
			continue
		}
		members, err := client.ZRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		pipe := client.Pipeline()
		for _, m := range members {
			source, _ := m.Member.(string)
			pipe.ZAddNX(ctx, layout.sourceKey(kind, targetKind, source), redis.Z{Score: m.Score, Member: targetID})
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return iter.Err()
}

// keyLayout names the sorted sets that hold edges.
//
//	<prefix>edges:tgt:<kind>:<targetKind>:<targetID>  members = sources
//	<prefix>edges:src:<kind>:<targetKind>:<source>    members = target ids
//
// Scores are creation times in microseconds.
type keyLayout struct {
	prefix string
}

func (l keyLayout) targetKey(kind, targetKind, targetID string) string {
	return l.prefix + "edges:tgt:" + kind + ":" + targetKind + ":" + targetID
}

func (l keyLayout) sourcePrefix(kind, targetKind string) string {
	return l.prefix + "edges:src:" + kind + ":" + targetKind + ":"
}

func (l keyLayout) sourceKey(kind, targetKind, source string) string {
	return l.sourcePrefix(kind, targetKind) + source
}

func (l keyLayout) targetPattern() string {
	return l.prefix + "edges:tgt:*"
}

func (l keyLayout) parseTargetKey(key string) (kind, targetKind, targetID string, ok bool) {
	rest := strings.TrimPrefix(key, l.prefix+"edges:tgt:")
	if rest == key {
		return "", "", "", false
	}
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
