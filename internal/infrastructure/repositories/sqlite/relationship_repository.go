package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vidtube/internal/core/domain"
	"vidtube/pkg/tracing"
)

// RelationshipRepository stores edges in one table whose unique index on
// (kind, source, target_id, target_kind) backs the one-edge-per-key rule.
type RelationshipRepository struct {
	s *Store
}

const keyClause = `kind = ? AND source = ? AND target_id = ? AND target_kind = ?`

func keyArgs(key domain.EdgeKey) []interface{} {
	return []interface{}{string(key.Kind), canonical(key.Source), key.TargetID, string(key.TargetKind)}
}

func (r *RelationshipRepository) ToggleEdge(ctx context.Context, edge domain.Edge) (domain.ToggleOutcome, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "toggle_edge", "edges")
	defer span.End()

	var outcome domain.ToggleOutcome
	err := r.s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE `+keyClause, keyArgs(edge.EdgeKey)...)
		if err != nil {
			return fmt.Errorf("deleting edge: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			outcome = domain.ToggleRemoved
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO edges (kind, source, target_id, target_kind, created_at) VALUES (?, ?, ?, ?, ?)`,
			append(keyArgs(edge.EdgeKey), formatTime(edge.CreatedAt))...)
		if err != nil {
			if isConstraintViolation(err) {
				return domain.Conflict("toggle_edge", "edge %s/%s already exists", edge.Kind, edge.TargetID)
			}
			return fmt.Errorf("inserting edge: %w", err)
		}
		outcome = domain.ToggleCreated
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return "", err
	}
	return outcome, nil
}

func (r *RelationshipRepository) DeleteEdge(ctx context.Context, key domain.EdgeKey) (bool, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM edges WHERE `+keyClause, keyArgs(key)...)
	if err != nil {
		return false, fmt.Errorf("deleting edge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// purgeTargetQuery names every edge kind so the lookup can use the leading
// column of idx_edges_target.
const purgeTargetQuery = `DELETE FROM edges WHERE kind IN (?, ?) AND target_id = ? AND target_kind = ?`

func purgeTargetArgs(targetID string, kind domain.TargetKind) []interface{} {
	return []interface{}{string(domain.EdgeLike), string(domain.EdgeSubscription), targetID, string(kind)}
}

func (r *RelationshipRepository) PurgeTarget(ctx context.Context, targetID string, kind domain.TargetKind) (int64, error) {
	res, err := r.s.db.ExecContext(ctx, purgeTargetQuery, purgeTargetArgs(targetID, kind)...)
	if err != nil {
		return 0, fmt.Errorf("purging edges: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *RelationshipRepository) HasEdge(ctx context.Context, key domain.EdgeKey) (bool, error) {
	var one int
	err := r.s.db.QueryRowContext(ctx, `SELECT 1 FROM edges WHERE `+keyClause, keyArgs(key)...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying edge: %w", err)
	}
	return true, nil
}

func (r *RelationshipRepository) CountByTarget(ctx context.Context, kind domain.EdgeKind, targetID string, targetKind domain.TargetKind) (int64, error) {
	var n int64
	err := r.s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edges WHERE kind = ? AND target_id = ? AND target_kind = ?`,
		string(kind), targetID, string(targetKind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting edges: %w", err)
	}
	return n, nil
}

func (r *RelationshipRepository) CountLikesOnTargets(ctx context.Context, kind domain.TargetKind, targetIDs []string) (int64, error) {
	var total int64
	for _, chunk := range chunks(targetIDs) {
		var n int64
		args := append([]interface{}{string(kind)}, toArgs(chunk)...)
		err := r.s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM edges
			WHERE kind = 'like' AND target_kind = ? AND target_id IN (`+placeholders(len(chunk))+`)`,
			args...).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("counting likes: %w", err)
		}
		total += n
	}
	return total, nil
}

// SubscriptionCounts reads both directions in one statement.
func (r *RelationshipRepository) SubscriptionCounts(ctx context.Context, actor domain.ActorID) (domain.SubscriptionCounts, error) {
	var c domain.SubscriptionCounts
	id := canonical(actor)
	err := r.s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM edges WHERE kind = 'subscription' AND target_kind = 'actor' AND target_id = ?),
			(SELECT COUNT(*) FROM edges WHERE kind = 'subscription' AND target_kind = 'actor' AND source = ?)`,
		id, id).Scan(&c.Subscribers, &c.Subscribed)
	if err != nil {
		return c, fmt.Errorf("counting subscriptions: %w", err)
	}
	return c, nil
}

func (r *RelationshipRepository) listEdges(ctx context.Context, where string, req domain.PageRequest, args ...interface{}) ([]domain.Edge, error) {
	dir := "DESC"
	if req.Direction == domain.SortAsc {
		dir = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT kind, source, target_id, target_kind, created_at FROM edges
		WHERE %s ORDER BY created_at %s, source %s, target_id %s LIMIT ? OFFSET ?`, where, dir, dir, dir)
	rows, err := r.s.db.QueryContext(ctx, query, append(args, req.Limit(), req.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	defer rows.Close()

	edges := []domain.Edge{}
	for rows.Next() {
		var (
			e                          domain.Edge
			kind, source, tKind, stamp string
		)
		if err := rows.Scan(&kind, &source, &e.TargetID, &tKind, &stamp); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		e.Kind = domain.EdgeKind(kind)
		e.Source = domain.ActorID(source)
		e.TargetKind = domain.TargetKind(tKind)
		if e.CreatedAt, err = parseTime(stamp); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (r *RelationshipRepository) ListSubscribers(ctx context.Context, creator domain.ActorID, req domain.PageRequest) ([]domain.Edge, error) {
	return r.listEdges(ctx, `kind = 'subscription' AND target_kind = 'actor' AND target_id = ?`, req, canonical(creator))
}

func (r *RelationshipRepository) ListSubscriptions(ctx context.Context, subscriber domain.ActorID, req domain.PageRequest) ([]domain.Edge, error) {
	return r.listEdges(ctx, `kind = 'subscription' AND target_kind = 'actor' AND source = ?`, req, canonical(subscriber))
}

func (r *RelationshipRepository) ListLiked(ctx context.Context, actor domain.ActorID, kind domain.TargetKind, req domain.PageRequest) ([]domain.Edge, error) {
	return r.listEdges(ctx, `kind = 'like' AND source = ? AND target_kind = ?`, req, canonical(actor), string(kind))
}

// likesJoin counts likes on content of one kind owned by a creator.
var likesJoin = map[domain.TargetKind]string{
	domain.TargetVideo:   `SELECT COUNT(*) FROM edges e JOIN videos c ON c.id = e.target_id WHERE e.kind = 'like' AND e.target_kind = 'video' AND c.owner_id = ?`,
	domain.TargetTweet:   `SELECT COUNT(*) FROM edges e JOIN tweets c ON c.id = e.target_id WHERE e.kind = 'like' AND e.target_kind = 'tweet' AND c.owner_id = ?`,
	domain.TargetComment: `SELECT COUNT(*) FROM edges e JOIN comments c ON c.id = e.target_id WHERE e.kind = 'like' AND e.target_kind = 'comment' AND c.owner_id = ?`,
}

// ChannelStats computes the dashboard inside one transaction, which on the
// single connection is a consistent snapshot.
func (r *RelationshipRepository) ChannelStats(ctx context.Context, creator domain.ActorID) (*domain.ChannelStats, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "channel_stats", "edges")
	defer span.End()

	id := canonical(creator)
	stats := &domain.ChannelStats{CreatorID: creator}
	err := r.s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(views), 0),
				(SELECT COUNT(*) FROM edges WHERE kind = 'subscription' AND target_kind = 'actor' AND target_id = ?)
			FROM videos WHERE owner_id = ?`, id, id,
		).Scan(&stats.TotalVideos, &stats.TotalViews, &stats.TotalSubscribers)
		if err != nil {
			return fmt.Errorf("summing channel: %w", err)
		}

		targets := map[domain.TargetKind]*int64{
			domain.TargetVideo:   &stats.TotalVideoLikes,
			domain.TargetTweet:   &stats.TotalTweetLikes,
			domain.TargetComment: &stats.TotalCommentLikes,
		}
		for kind, dst := range targets {
			if err := tx.QueryRowContext(ctx, likesJoin[kind], id).Scan(dst); err != nil {
				return fmt.Errorf("counting %s likes: %w", kind, err)
			}
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return stats, nil
}

// WatchHistory joins history entries with their videos and creators in one
// query. Entries whose video is gone drop out of the inner join.
func (r *RelationshipRepository) WatchHistory(ctx context.Context, actorID domain.ActorID) ([]domain.WatchedVideo, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "watch_history", "watch_history")
	defer span.End()

	var exists int
	err := r.s.db.QueryRowContext(ctx, `SELECT 1 FROM actors WHERE id = ?`, canonical(actorID)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("watch_history", "actor %s not found", actorID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying actor: %w", err)
	}

	rows, err := r.s.db.QueryContext(ctx, `
		SELECT v.id, v.owner_id, v.file_url, v.file_id, v.thumbnail_url, v.thumbnail_id, v.title, v.description,
			v.duration, v.views, v.is_published, v.created_at, v.updated_at,
			COALESCE(a.username, ''), COALESCE(a.full_name, ''), COALESCE(a.avatar_url, ''), COALESCE(a.cover_url, '')
		FROM watch_history h
		JOIN videos v ON v.id = h.video_id
		LEFT JOIN actors a ON a.id = v.owner_id
		WHERE h.actor_id = ?
		ORDER BY h.position`, canonical(actorID))
	if err != nil {
		return nil, fmt.Errorf("querying watch history: %w", err)
	}
	defer rows.Close()

	history := []domain.WatchedVideo{}
	for rows.Next() {
		var (
			v                    domain.Video
			id, owner            string
			published            int
			createdAt, updatedAt string
			creator              domain.ActorSummary
		)
		err := rows.Scan(&id, &owner, &v.VideoFile.URL, &v.VideoFile.PublicID, &v.Thumbnail.URL, &v.Thumbnail.PublicID,
			&v.Title, &v.Description, &v.Duration, &v.Views, &published, &createdAt, &updatedAt,
			&creator.Username, &creator.FullName, &creator.Avatar, &creator.CoverImage)
		if err != nil {
			return nil, fmt.Errorf("scanning watch history: %w", err)
		}
		v.ID = domain.VideoID(id)
		v.OwnerID = domain.ActorID(owner)
		v.IsPublished = published != 0
		if v.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if v.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		if creator.Username != "" {
			creator.ID = v.OwnerID
		}
		history = append(history, domain.WatchedVideo{Video: &v, Creator: creator})
	}
	return history, rows.Err()
}
