package redis

import (
	"context"
	"fmt"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	"vidtube/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

// toggleScript removes the edge from both sets when present, otherwise adds
// it to both. Returns 1 for created, 0 for removed.
var toggleScript = redis.NewScript(`
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then
	redis.call('ZREM', KEYS[1], ARGV[1])
	redis.call('ZREM', KEYS[2], ARGV[2])
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[2])
return 1
`)

var deleteScript = redis.NewScript(`
local removed = redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[2])
return removed
`)

// purgeScript drops every edge pointing at one target. Source keys are
// derived from ARGV[1], so this runs on a single node only.
var purgeScript = redis.NewScript(`
local sources = redis.call('ZRANGE', KEYS[1], 0, -1)
for _, src in ipairs(sources) do
	redis.call('ZREM', ARGV[1] .. src, ARGV[2])
end
redis.call('DEL', KEYS[1])
return #sources
`)

var countScript = redis.NewScript(`
local total = 0
for _, key in ipairs(KEYS) do
	total = total + redis.call('ZCARD', key)
end
return total
`)

// RelationshipRepository keeps Like and Subscription edges in paired sorted
// sets: one per target (members are sources) and one per source (members are
// target ids).
type RelationshipRepository struct {
	client *redis.Client
	keys   keyLayout
}

func NewRelationshipRepository(client *redis.Client, prefix string) ports.RelationshipStore {
	return &RelationshipRepository{
		client: client,
		keys:   keyLayout{prefix: prefixOrDefault(prefix)},
	}
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func fromScore(s float64) time.Time {
	return time.UnixMicro(int64(s)).UTC()
}

func (r *RelationshipRepository) edgeKeys(key domain.EdgeKey) []string {
	return []string{
		r.keys.targetKey(string(key.Kind), string(key.TargetKind), key.TargetID),
		r.keys.sourceKey(string(key.Kind), string(key.TargetKind), key.Source.Canonical()),
	}
}

func (r *RelationshipRepository) ToggleEdge(ctx context.Context, edge domain.Edge) (domain.ToggleOutcome, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "toggle_edge", "redis")
	defer span.End()

	created, err := toggleScript.Run(ctx, r.client, r.edgeKeys(edge.EdgeKey),
		edge.Source.Canonical(), edge.TargetID, score(edge.CreatedAt)).Int()
	if err != nil {
		tracing.RecordError(ctx, err)
		return "", fmt.Errorf("failed to toggle edge in Redis: %w", err)
	}
	if created == 1 {
		return domain.ToggleCreated, nil
	}
	return domain.ToggleRemoved, nil
}

func (r *RelationshipRepository) DeleteEdge(ctx context.Context, key domain.EdgeKey) (bool, error) {
	removed, err := deleteScript.Run(ctx, r.client, r.edgeKeys(key), key.Source.Canonical(), key.TargetID).Int()
	if err != nil {
		return false, fmt.Errorf("failed to delete edge from Redis: %w", err)
	}
	return removed > 0, nil
}

func (r *RelationshipRepository) PurgeTarget(ctx context.Context, targetID string, kind domain.TargetKind) (int64, error) {
	var total int64
	for _, edgeKind := range []domain.EdgeKind{domain.EdgeLike, domain.EdgeSubscription} {
		n, err := purgeScript.Run(ctx, r.client,
			[]string{r.keys.targetKey(string(edgeKind), string(kind), targetID)},
			r.keys.sourcePrefix(string(edgeKind), string(kind)), targetID).Int64()
		if err != nil {
			return total, fmt.Errorf("failed to purge edges in Redis: %w", err)
		}
		total += n
	}
	return total, nil
}

func (r *RelationshipRepository) HasEdge(ctx context.Context, key domain.EdgeKey) (bool, error) {
	_, err := r.client.ZScore(ctx, r.edgeKeys(key)[0], key.Source.Canonical()).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read edge from Redis: %w", err)
	}
	return true, nil
}

func (r *RelationshipRepository) CountByTarget(ctx context.Context, kind domain.EdgeKind, targetID string, targetKind domain.TargetKind) (int64, error) {
	n, err := r.client.ZCard(ctx, r.keys.targetKey(string(kind), string(targetKind), targetID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count edges in Redis: %w", err)
	}
	return n, nil
}

// CountLikesOnTargets sums the like sets of every target in one script call.
func (r *RelationshipRepository) CountLikesOnTargets(ctx context.Context, kind domain.TargetKind, targetIDs []string) (int64, error) {
	if len(targetIDs) == 0 {
		return 0, nil
	}
	keys := make([]string, len(targetIDs))
	for i, id := range targetIDs {
		keys[i] = r.keys.targetKey(string(domain.EdgeLike), string(kind), id)
	}
	n, err := countScript.Run(ctx, r.client, keys).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to count likes in Redis: %w", err)
	}
	return n, nil
}

// SubscriptionCounts reads both directions inside one MULTI/EXEC.
func (r *RelationshipRepository) SubscriptionCounts(ctx context.Context, actor domain.ActorID) (domain.SubscriptionCounts, error) {
	sub, tgt := string(domain.EdgeSubscription), string(domain.TargetActor)
	var subscribers, subscribed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		subscribers = pipe.ZCard(ctx, r.keys.targetKey(sub, tgt, actor.Canonical()))
		subscribed = pipe.ZCard(ctx, r.keys.sourceKey(sub, tgt, actor.Canonical()))
		return nil
	})
	if err != nil {
		return domain.SubscriptionCounts{}, fmt.Errorf("failed to count subscriptions in Redis: %w", err)
	}
	return domain.SubscriptionCounts{Subscribers: subscribers.Val(), Subscribed: subscribed.Val()}, nil
}

// rangeEdges pages a sorted set; build turns a member and its score into an
// edge.
func (r *RelationshipRepository) rangeEdges(ctx context.Context, key string, req domain.PageRequest, build func(member string, at time.Time) domain.Edge) ([]domain.Edge, error) {
	start := int64(req.Offset())
	members, err := r.client.ZRangeArgsWithScores(ctx, redis.ZRangeArgs{
		Key:   key,
		Start: start,
		Stop:  start + int64(req.Limit()) - 1,
		Rev:   req.Direction != domain.SortAsc,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list edges from Redis: %w", err)
	}

	edges := make([]domain.Edge, 0, len(members))
	for _, m := range members {
		member, _ := m.Member.(string)
		edges = append(edges, build(member, fromScore(m.Score)))
	}
	return edges, nil
}

func (r *RelationshipRepository) ListSubscribers(ctx context.Context, creator domain.ActorID, req domain.PageRequest) ([]domain.Edge, error) {
	key := r.keys.targetKey(string(domain.EdgeSubscription), string(domain.TargetActor), creator.Canonical())
	return r.rangeEdges(ctx, key, req, func(source string, at time.Time) domain.Edge {
		return domain.Edge{EdgeKey: domain.SubscriptionKey(domain.ActorID(source), creator), CreatedAt: at}
	})
}

func (r *RelationshipRepository) ListSubscriptions(ctx context.Context, subscriber domain.ActorID, req domain.PageRequest) ([]domain.Edge, error) {
	key := r.keys.sourceKey(string(domain.EdgeSubscription), string(domain.TargetActor), subscriber.Canonical())
	return r.rangeEdges(ctx, key, req, func(creator string, at time.Time) domain.Edge {
		return domain.Edge{EdgeKey: domain.SubscriptionKey(subscriber, domain.ActorID(creator)), CreatedAt: at}
	})
}

func (r *RelationshipRepository) ListLiked(ctx context.Context, actor domain.ActorID, kind domain.TargetKind, req domain.PageRequest) ([]domain.Edge, error) {
	key := r.keys.sourceKey(string(domain.EdgeLike), string(kind), actor.Canonical())
	return r.rangeEdges(ctx, key, req, func(targetID string, at time.Time) domain.Edge {
		return domain.Edge{EdgeKey: domain.LikeKey(actor, targetID, kind), CreatedAt: at}
	})
}
