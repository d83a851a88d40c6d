package services

import (
	"context"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	"vidtube/pkg/tracing"

	"go.uber.org/zap"
)

var (
	videoSortKeys    = []string{domain.SortCreatedAt, domain.SortUpdatedAt, domain.SortViews, domain.SortDuration, domain.SortTitle}
	playlistSortKeys = []string{domain.SortCreatedAt, domain.SortUpdatedAt, domain.SortName}
	edgeSortKeys     = []string{domain.SortCreatedAt}
)

const defaultMaxPageSize = 100

type aggregationService struct {
	repos       ports.Repositories
	statsReader ports.ChannelStatsReader
	historyRead ports.WatchHistoryReader
	maxPageSize int
	metrics     *MetricsService
	logger      *zap.SugaredLogger
}

// NewAggregationService builds the read side. Join capabilities are picked
// up from the stores when they implement them.
func NewAggregationService(
	repos ports.Repositories,
	maxPageSize int,
	metrics *MetricsService,
	logger *zap.SugaredLogger,
) ports.AggregationService {
	if maxPageSize <= 0 {
		maxPageSize = defaultMaxPageSize
	}
	s := &aggregationService{
		repos:       repos,
		maxPageSize: maxPageSize,
		metrics:     metrics,
		logger:      logger,
	}
	for _, candidate := range []interface{}{repos.Relationships, repos.Videos, repos.Actors} {
		if r, ok := candidate.(ports.ChannelStatsReader); ok && s.statsReader == nil {
			s.statsReader = r
		}
		if r, ok := candidate.(ports.WatchHistoryReader); ok && s.historyRead == nil {
			s.historyRead = r
		}
	}
	return s
}

// CountLikes counts likes on a target viewer can see.
func (s *aggregationService) CountLikes(ctx context.Context, viewer domain.ActorID, targetID string, kind domain.TargetKind) (int64, error) {
	const op = "count_likes"
	defer s.metrics.observe(op, time.Now())

	if !kind.Likeable() {
		return 0, domain.InvalidArgument(op, "cannot count likes on a target of kind %q", kind)
	}
	if _, err := visibleTarget(ctx, s.repos, op, viewer, targetID, kind); err != nil {
		return 0, err
	}

	n, err := s.repos.Relationships.CountByTarget(ctx, domain.EdgeLike, targetID, kind)
	if err != nil {
		return 0, domain.DependencyFailure(op, err)
	}
	return n, nil
}

func (s *aggregationService) CountSubscribers(ctx context.Context, creator domain.ActorID) (int64, error) {
	const op = "count_subscribers"
	defer s.metrics.observe(op, time.Now())

	if err := s.requireActor(ctx, op, creator); err != nil {
		return 0, err
	}
	n, err := s.repos.Relationships.CountByTarget(ctx, domain.EdgeSubscription, string(creator), domain.TargetActor)
	if err != nil {
		return 0, domain.DependencyFailure(op, err)
	}
	return n, nil
}

// ListVideos lists published videos, optionally narrowed to one owner or a
// title query.
func (s *aggregationService) ListVideos(ctx context.Context, filter domain.VideoFilter, page domain.PageRequest) ([]*domain.Video, error) {
	const op = "list_videos"
	defer s.metrics.observe(op, time.Now())

	page, err := page.Validate(op, s.maxPageSize, videoSortKeys...)
	if err != nil {
		return nil, err
	}
	if !filter.OwnerID.IsZero() {
		if err := s.requireActor(ctx, op, filter.OwnerID); err != nil {
			return nil, err
		}
	}
	filter.PublishedOnly = true

	videos, err := s.repos.Videos.List(ctx, filter, page)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return nonNil(videos), nil
}

// ListChannelVideos lists every video of a creator, unpublished included.
func (s *aggregationService) ListChannelVideos(ctx context.Context, creator domain.ActorID, page domain.PageRequest) ([]*domain.Video, error) {
	const op = "list_channel_videos"
	defer s.metrics.observe(op, time.Now())

	page, err := page.Validate(op, s.maxPageSize, videoSortKeys...)
	if err != nil {
		return nil, err
	}
	if err := s.requireActor(ctx, op, creator); err != nil {
		return nil, err
	}

	videos, err := s.repos.Videos.List(ctx, domain.VideoFilter{OwnerID: creator}, page)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return nonNil(videos), nil
}

func (s *aggregationService) ListVideoComments(ctx context.Context, viewer domain.ActorID, videoID domain.VideoID, page domain.PageRequest) ([]*domain.Comment, error) {
	const op = "list_video_comments"
	defer s.metrics.observe(op, time.Now())

	page, err := page.Validate(op, s.maxPageSize, edgeSortKeys...)
	if err != nil {
		return nil, err
	}
	if _, err := visibleVideoOwner(ctx, s.repos, op, viewer, videoID); err != nil {
		return nil, err
	}

	comments, err := s.repos.Comments.ListByVideo(ctx, videoID, page)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return nonNil(comments), nil
}

func (s *aggregationService) ListUserTweets(ctx context.Context, owner domain.ActorID, page domain.PageRequest) ([]*domain.Tweet, error) {
	const op = "list_user_tweets"
	defer s.metrics.observe(op, time.Now())

	page, err := page.Validate(op, s.maxPageSize, edgeSortKeys...)
	if err != nil {
		return nil, err
	}
	if err := s.requireActor(ctx, op, owner); err != nil {
		return nil, err
	}

	tweets, err := s.repos.Tweets.ListByOwner(ctx, owner, page)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return nonNil(tweets), nil
}

func (s *aggregationService) ListUserPlaylists(ctx context.Context, owner domain.ActorID, page domain.PageRequest) ([]*domain.Playlist, error) {
	const op = "list_user_playlists"
	defer s.metrics.observe(op, time.Now())

	page, err := page.Validate(op, s.maxPageSize, playlistSortKeys...)
	if err != nil {
		return nil, err
	}
	if err := s.requireActor(ctx, op, owner); err != nil {
		return nil, err
	}

	playlists, err := s.repos.Playlists.ListByOwner(ctx, owner, page)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return nonNil(playlists), nil
}

func (s *aggregationService) ListChannelSubscribers(ctx context.Context, creator domain.ActorID, page domain.PageRequest) ([]domain.ActorSummary, error) {
	const op = "list_channel_subscribers"
	defer s.metrics.observe(op, time.Now())

	page, err := page.Validate(op, s.maxPageSize, edgeSortKeys...)
	if err != nil {
		return nil, err
	}
	if err := s.requireActor(ctx, op, creator); err != nil {
		return nil, err
	}

	edges, err := s.repos.Relationships.ListSubscribers(ctx, creator, page)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	ids := make([]domain.ActorID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.Source)
	}
	return s.summariesInOrder(ctx, op, ids)
}

func (s *aggregationService) ListSubscribedChannels(ctx context.Context, subscriber domain.ActorID, page domain.PageRequest) ([]domain.ActorSummary, error) {
	const op = "list_subscribed_channels"
	defer s.metrics.observe(op, time.Now())

	page, err := page.Validate(op, s.maxPageSize, edgeSortKeys...)
	if err != nil {
		return nil, err
	}
	if err := s.requireActor(ctx, op, subscriber); err != nil {
		return nil, err
	}

	edges, err := s.repos.Relationships.ListSubscriptions(ctx, subscriber, page)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	ids := make([]domain.ActorID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, domain.ActorID(e.TargetID))
	}
	return s.summariesInOrder(ctx, op, ids)
}

func (s *aggregationService) ListLikedVideos(ctx context.Context, actor domain.ActorID, page domain.PageRequest) ([]*domain.Video, error) {
	const op = "list_liked_videos"
	defer s.metrics.observe(op, time.Now())

	page, err := page.Validate(op, s.maxPageSize, edgeSortKeys...)
	if err != nil {
		return nil, err
	}
	if err := s.requireActor(ctx, op, actor); err != nil {
		return nil, err
	}

	edges, err := s.repos.Relationships.ListLiked(ctx, actor, domain.TargetVideo, page)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	ids := make([]domain.VideoID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, domain.VideoID(e.TargetID))
	}
	byID, err := s.repos.Videos.GetByIDs(ctx, ids)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}

	videos := make([]*domain.Video, 0, len(ids))
	for _, id := range ids {
		// edges of deleted videos are skipped
		if v, ok := byID[id]; ok {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

// ChannelProfile resolves a channel by username. Both subscription counts
// come from one store read.
func (s *aggregationService) ChannelProfile(ctx context.Context, username string, viewer domain.ActorID) (*domain.ChannelProfile, error) {
	const op = "channel_profile"
	defer s.metrics.observe(op, time.Now())

	ctx, span := tracing.TraceAggregation(ctx, op)
	defer span.End()

	username = domain.NormalizeUsername(username)
	if username == "" {
		return nil, domain.InvalidArgument(op, "username is required")
	}

	actor, err := s.repos.Actors.GetByUsername(ctx, username)
	if err != nil {
		return nil, lookupError(op, err, "channel %q not found", username)
	}

	counts, err := s.repos.Relationships.SubscriptionCounts(ctx, actor.ID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, domain.DependencyFailure(op, err)
	}

	profile := &domain.ChannelProfile{
		Actor:           actor.Summary(),
		SubscriberCount: counts.Subscribers,
		SubscribedCount: counts.Subscribed,
	}
	if !viewer.IsZero() && !domain.SameActor(viewer, actor.ID) {
		subscribed, err := s.repos.Relationships.HasEdge(ctx, domain.SubscriptionKey(domain.ActorID(viewer.Canonical()), actor.ID))
		if err != nil {
			return nil, domain.DependencyFailure(op, err)
		}
		profile.IsSubscribed = subscribed
	}
	return profile, nil
}

func (s *aggregationService) ChannelStats(ctx context.Context, creator domain.ActorID) (*domain.ChannelStats, error) {
	const op = "channel_stats"
	defer s.metrics.observe(op, time.Now())

	ctx, span := tracing.TraceAggregation(ctx, op)
	defer span.End()

	if err := s.requireActor(ctx, op, creator); err != nil {
		return nil, err
	}

	if s.statsReader != nil {
		stats, err := s.statsReader.ChannelStats(ctx, creator)
		if err != nil {
			tracing.RecordError(ctx, err)
			return nil, domain.DependencyFailure(op, err)
		}
		return stats, nil
	}

	stats, err := s.batchedChannelStats(ctx, creator)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, domain.DependencyFailure(op, err)
	}
	return stats, nil
}

// batchedChannelStats resolves the owned ids per content kind with one query
// each and counts their likes with one batched call each.
func (s *aggregationService) batchedChannelStats(ctx context.Context, creator domain.ActorID) (*domain.ChannelStats, error) {
	totals, err := s.repos.Videos.Totals(ctx, creator)
	if err != nil {
		return nil, err
	}
	subscribers, err := s.repos.Relationships.CountByTarget(ctx, domain.EdgeSubscription, string(creator), domain.TargetActor)
	if err != nil {
		return nil, err
	}

	stats := &domain.ChannelStats{
		CreatorID:        creator,
		TotalViews:       totals.Views,
		TotalVideos:      totals.Videos,
		TotalSubscribers: subscribers,
	}

	owned := []struct {
		kind domain.TargetKind
		ids  func(context.Context, domain.ActorID) ([]string, error)
		dst  *int64
	}{
		{domain.TargetVideo, s.repos.Videos.ListIDsByOwner, &stats.TotalVideoLikes},
		{domain.TargetTweet, s.repos.Tweets.ListIDsByOwner, &stats.TotalTweetLikes},
		{domain.TargetComment, s.repos.Comments.ListIDsByOwner, &stats.TotalCommentLikes},
	}
	for _, o := range owned {
		ids, err := o.ids(ctx, creator)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			continue
		}
		n, err := s.repos.Relationships.CountLikesOnTargets(ctx, o.kind, ids)
		if err != nil {
			return nil, err
		}
		*o.dst = n
	}
	return stats, nil
}

// WatchHistory returns the actor's history most-recent-first, each video
// joined with its creator's public profile. Deleted videos are skipped.
func (s *aggregationService) WatchHistory(ctx context.Context, actorID domain.ActorID) ([]domain.WatchedVideo, error) {
	const op = "watch_history"
	defer s.metrics.observe(op, time.Now())

	ctx, span := tracing.TraceAggregation(ctx, op)
	defer span.End()

	actor, err := s.repos.Actors.GetByID(ctx, actorID)
	if err != nil {
		return nil, lookupError(op, err, "actor %s not found", actorID)
	}

	if s.historyRead != nil {
		history, err := s.historyRead.WatchHistory(ctx, actor.ID)
		if err != nil {
			return nil, domain.DependencyFailure(op, err)
		}
		return nonNil(history), nil
	}

	byID, err := s.repos.Videos.GetByIDs(ctx, actor.WatchHistory)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	owners := make([]domain.ActorID, 0, len(byID))
	seen := make(map[domain.ActorID]struct{}, len(byID))
	for _, v := range byID {
		if _, ok := seen[v.OwnerID]; !ok {
			seen[v.OwnerID] = struct{}{}
			owners = append(owners, v.OwnerID)
		}
	}
	creators, err := s.repos.Actors.GetSummaries(ctx, owners)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}

	history := make([]domain.WatchedVideo, 0, len(actor.WatchHistory))
	for _, id := range actor.WatchHistory {
		v, ok := byID[id]
		if !ok {
			continue
		}
		history = append(history, domain.WatchedVideo{Video: v, Creator: creators[v.OwnerID]})
	}
	return history, nil
}

func (s *aggregationService) summariesInOrder(ctx context.Context, op string, ids []domain.ActorID) ([]domain.ActorSummary, error) {
	byID, err := s.repos.Actors.GetSummaries(ctx, ids)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	out := make([]domain.ActorSummary, 0, len(ids))
	for _, id := range ids {
		if summary, ok := byID[id]; ok {
			out = append(out, summary)
		}
	}
	return out, nil
}

func (s *aggregationService) requireActor(ctx context.Context, op string, id domain.ActorID) error {
	if id.IsZero() {
		return domain.InvalidArgument(op, "actor id is required")
	}
	if _, err := s.repos.Actors.GetByID(ctx, id); err != nil {
		return lookupError(op, err, "actor %s not found", id)
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
