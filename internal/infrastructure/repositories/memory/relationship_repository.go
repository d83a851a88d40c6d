package memory

import (
	"context"

	"vidtube/internal/core/domain"
)

// RelationshipRepository holds edges with per-target and per-source indexes
// so counts never scan the whole edge set.
type RelationshipRepository struct {
	s *Store
}

func refsOf(key domain.EdgeKey) (targetRef, sourceRef) {
	return targetRef{kind: key.Kind, targetID: key.TargetID, targetKind: key.TargetKind},
		sourceRef{kind: key.Kind, source: key.Source, targetKind: key.TargetKind}
}

func (s *Store) insertEdgeLocked(edge domain.Edge) {
	t, src := refsOf(edge.EdgeKey)
	s.edges[edge.EdgeKey] = edge
	if s.edgesByTgt[t] == nil {
		s.edgesByTgt[t] = make(map[domain.EdgeKey]struct{})
	}
	s.edgesByTgt[t][edge.EdgeKey] = struct{}{}
	if s.edgesBySrc[src] == nil {
		s.edgesBySrc[src] = make(map[domain.EdgeKey]struct{})
	}
	s.edgesBySrc[src][edge.EdgeKey] = struct{}{}
}

func (s *Store) deleteEdgeLocked(key domain.EdgeKey) bool {
	if _, ok := s.edges[key]; !ok {
		return false
	}
	delete(s.edges, key)
	t, src := refsOf(key)
	delete(s.edgesByTgt[t], key)
	if len(s.edgesByTgt[t]) == 0 {
		delete(s.edgesByTgt, t)
	}
	delete(s.edgesBySrc[src], key)
	if len(s.edgesBySrc[src]) == 0 {
		delete(s.edgesBySrc, src)
	}
	return true
}

func (r *RelationshipRepository) ToggleEdge(ctx context.Context, edge domain.Edge) (domain.ToggleOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.deleteEdgeLocked(edge.EdgeKey) {
		return domain.ToggleRemoved, nil
	}
	r.s.insertEdgeLocked(edge)
	return domain.ToggleCreated, nil
}

func (r *RelationshipRepository) DeleteEdge(ctx context.Context, key domain.EdgeKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.deleteEdgeLocked(key), nil
}

func (r *RelationshipRepository) PurgeTarget(ctx context.Context, targetID string, kind domain.TargetKind) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, edgeKind := range []domain.EdgeKind{domain.EdgeLike, domain.EdgeSubscription} {
		t := targetRef{kind: edgeKind, targetID: targetID, targetKind: kind}
		for key := range r.s.edgesByTgt[t] {
			if r.s.deleteEdgeLocked(key) {
				n++
			}
		}
	}
	return n, nil
}

func (r *RelationshipRepository) HasEdge(ctx context.Context, key domain.EdgeKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.edges[key]
	return ok, nil
}

func (r *RelationshipRepository) CountByTarget(ctx context.Context, kind domain.EdgeKind, targetID string, targetKind domain.TargetKind) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return int64(len(r.s.edgesByTgt[targetRef{kind: kind, targetID: targetID, targetKind: targetKind}])), nil
}

func (r *RelationshipRepository) CountLikesOnTargets(ctx context.Context, kind domain.TargetKind, targetIDs []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.countLikesLocked(kind, targetIDs), nil
}

func (s *Store) countLikesLocked(kind domain.TargetKind, targetIDs []string) int64 {
	var n int64
	for _, id := range targetIDs {
		n += int64(len(s.edgesByTgt[targetRef{kind: domain.EdgeLike, targetID: id, targetKind: kind}]))
	}
	return n
}

func (r *RelationshipRepository) SubscriptionCounts(ctx context.Context, actor domain.ActorID) (domain.SubscriptionCounts, error) {
	if err := ctx.Err(); err != nil {
		return domain.SubscriptionCounts{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return domain.SubscriptionCounts{
		Subscribers: int64(len(r.s.edgesByTgt[targetRef{kind: domain.EdgeSubscription, targetID: string(actor), targetKind: domain.TargetActor}])),
		Subscribed:  int64(len(r.s.edgesBySrc[sourceRef{kind: domain.EdgeSubscription, source: actor, targetKind: domain.TargetActor}])),
	}, nil
}

func (r *RelationshipRepository) listEdges(keys map[domain.EdgeKey]struct{}, req domain.PageRequest) []domain.Edge {
	edges := make([]domain.Edge, 0, len(keys))
	for key := range keys {
		edges = append(edges, r.s.edges[key])
	}
	sortBy(edges, req.Direction,
		func(a, b domain.Edge) int { return a.CreatedAt.Compare(b.CreatedAt) },
		func(e domain.Edge) string { return string(e.Source) + "|" + e.TargetID })
	return page(edges, req)
}

func (r *RelationshipRepository) ListSubscribers(ctx context.Context, creator domain.ActorID, req domain.PageRequest) ([]domain.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t := targetRef{kind: domain.EdgeSubscription, targetID: string(creator), targetKind: domain.TargetActor}
	return r.listEdges(r.s.edgesByTgt[t], req), nil
}

func (r *RelationshipRepository) ListSubscriptions(ctx context.Context, subscriber domain.ActorID, req domain.PageRequest) ([]domain.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	src := sourceRef{kind: domain.EdgeSubscription, source: subscriber, targetKind: domain.TargetActor}
	return r.listEdges(r.s.edgesBySrc[src], req), nil
}

func (r *RelationshipRepository) ListLiked(ctx context.Context, actor domain.ActorID, kind domain.TargetKind, req domain.PageRequest) ([]domain.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	src := sourceRef{kind: domain.EdgeLike, source: actor, targetKind: kind}
	return r.listEdges(r.s.edgesBySrc[src], req), nil
}

// ChannelStats computes the dashboard under a single read lock.
func (r *RelationshipRepository) ChannelStats(ctx context.Context, creator domain.ActorID) (*domain.ChannelStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	totals := r.s.totalsLocked(creator)
	subs := targetRef{kind: domain.EdgeSubscription, targetID: string(creator), targetKind: domain.TargetActor}
	return &domain.ChannelStats{
		CreatorID:         creator,
		TotalViews:        totals.Views,
		TotalVideos:       totals.Videos,
		TotalSubscribers:  int64(len(r.s.edgesByTgt[subs])),
		TotalVideoLikes:   r.s.countLikesLocked(domain.TargetVideo, r.s.videoIDsLocked(creator)),
		TotalTweetLikes:   r.s.countLikesLocked(domain.TargetTweet, r.s.tweetIDsLocked(creator)),
		TotalCommentLikes: r.s.countLikesLocked(domain.TargetComment, r.s.commentIDsLocked(creator)),
	}, nil
}

// WatchHistory joins the actor's history with creator summaries under a
// single read lock.
func (r *RelationshipRepository) WatchHistory(ctx context.Context, actorID domain.ActorID) ([]domain.WatchedVideo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	actor, ok := r.s.actors[actorID]
	if !ok {
		return nil, domain.NotFound("watch_history", "actor %s not found", actorID)
	}
	history := make([]domain.WatchedVideo, 0, len(actor.WatchHistory))
	for _, id := range actor.WatchHistory {
		v, ok := r.s.videos[id]
		if !ok {
			continue
		}
		var creator domain.ActorSummary
		if owner, ok := r.s.actors[v.OwnerID]; ok {
			creator = owner.Summary()
		}
		history = append(history, domain.WatchedVideo{Video: cloneVideo(v), Creator: creator})
	}
	return history, nil
}
