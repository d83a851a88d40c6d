package ports

import (
	"context"

	"vidtube/internal/core/domain"
)

type ActorRepository interface {
	Create(ctx context.Context, actor *domain.Actor) error
	GetByID(ctx context.Context, id domain.ActorID) (*domain.Actor, error)
	GetByUsername(ctx context.Context, username string) (*domain.Actor, error)
	GetByEmail(ctx context.Context, email string) (*domain.Actor, error)
	// Update writes the profile columns only: username, email, full name,
	// images and updated_at. Credentials and history have their own
	// column-scoped writes below so concurrent requests cannot undo them.
	Update(ctx context.Context, actor *domain.Actor) error
	GetSummaries(ctx context.Context, ids []domain.ActorID) (map[domain.ActorID]domain.ActorSummary, error)

	// PushHistory moves videoID to the front of the actor's watch history,
	// dropping entries past limit, as one atomic read-modify-write.
	PushHistory(ctx context.Context, id domain.ActorID, videoID domain.VideoID, limit int) error
	// SetRefreshToken replaces the live refresh token; "" revokes it.
	SetRefreshToken(ctx context.Context, id domain.ActorID, token string) error
	// SwapRefreshToken stores next only while current is still the live
	// token and reports whether it did.
	SwapRefreshToken(ctx context.Context, id domain.ActorID, current, next string) (bool, error)
	SetPasswordHash(ctx context.Context, id domain.ActorID, hash string) error
}

type VideoRepository interface {
	Create(ctx context.Context, video *domain.Video) error
	GetByID(ctx context.Context, id domain.VideoID) (*domain.Video, error)
	GetByIDs(ctx context.Context, ids []domain.VideoID) (map[domain.VideoID]*domain.Video, error)
	Update(ctx context.Context, video *domain.Video) error
	Delete(ctx context.Context, id domain.VideoID) error
	List(ctx context.Context, filter domain.VideoFilter, page domain.PageRequest) ([]*domain.Video, error)
	ListIDsByOwner(ctx context.Context, owner domain.ActorID) ([]string, error)
	Totals(ctx context.Context, owner domain.ActorID) (domain.ContentTotals, error)
	IncrementViews(ctx context.Context, id domain.VideoID) error
}

type TweetRepository interface {
	Create(ctx context.Context, tweet *domain.Tweet) error
	GetByID(ctx context.Context, id domain.TweetID) (*domain.Tweet, error)
	Update(ctx context.Context, tweet *domain.Tweet) error
	Delete(ctx context.Context, id domain.TweetID) error
	ListByOwner(ctx context.Context, owner domain.ActorID, page domain.PageRequest) ([]*domain.Tweet, error)
	ListIDsByOwner(ctx context.Context, owner domain.ActorID) ([]string, error)
}

type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, id domain.CommentID) (*domain.Comment, error)
	Update(ctx context.Context, comment *domain.Comment) error
	Delete(ctx context.Context, id domain.CommentID) error
	ListByVideo(ctx context.Context, videoID domain.VideoID, page domain.PageRequest) ([]*domain.Comment, error)
	ListIDsByOwner(ctx context.Context, owner domain.ActorID) ([]string, error)
	ListIDsByVideo(ctx context.Context, videoID domain.VideoID) ([]string, error)
}

type PlaylistRepository interface {
	Create(ctx context.Context, playlist *domain.Playlist) error
	GetByID(ctx context.Context, id domain.PlaylistID) (*domain.Playlist, error)
	Update(ctx context.Context, playlist *domain.Playlist) error
	Delete(ctx context.Context, id domain.PlaylistID) error
	ListByOwner(ctx context.Context, owner domain.ActorID, page domain.PageRequest) ([]*domain.Playlist, error)
	// AddVideo appends videoID; a video already present fails InvalidOperation.
	AddVideo(ctx context.Context, id domain.PlaylistID, videoID domain.VideoID) (*domain.Playlist, error)
	// RemoveVideo drops videoID; a video not present fails InvalidOperation.
	RemoveVideo(ctx context.Context, id domain.PlaylistID, videoID domain.VideoID) (*domain.Playlist, error)
	// PurgeVideo drops videoID from every playlist and reports how many
	// playlists held it.
	PurgeVideo(ctx context.Context, videoID domain.VideoID) (int64, error)
}

// RelationshipStore owns Like and Subscription edges. Only the toggle engine
// may call the mutating methods.
type RelationshipStore interface {
	// ToggleEdge atomically deletes the edge with the given key or, when no
	// such edge exists, inserts it. An insert that would violate key
	// uniqueness fails with a Conflict.
	ToggleEdge(ctx context.Context, edge domain.Edge) (domain.ToggleOutcome, error)
	DeleteEdge(ctx context.Context, key domain.EdgeKey) (bool, error)
	PurgeTarget(ctx context.Context, targetID string, kind domain.TargetKind) (int64, error)

	HasEdge(ctx context.Context, key domain.EdgeKey) (bool, error)
	CountByTarget(ctx context.Context, kind domain.EdgeKind, targetID string, targetKind domain.TargetKind) (int64, error)
	// CountLikesOnTargets counts likes on any of targetIDs in one round trip.
	CountLikesOnTargets(ctx context.Context, kind domain.TargetKind, targetIDs []string) (int64, error)
	// SubscriptionCounts reads both directions from one snapshot.
	SubscriptionCounts(ctx context.Context, actor domain.ActorID) (domain.SubscriptionCounts, error)

	ListSubscribers(ctx context.Context, creator domain.ActorID, page domain.PageRequest) ([]domain.Edge, error)
	ListSubscriptions(ctx context.Context, subscriber domain.ActorID, page domain.PageRequest) ([]domain.Edge, error)
	ListLiked(ctx context.Context, actor domain.ActorID, kind domain.TargetKind, page domain.PageRequest) ([]domain.Edge, error)
}

// ChannelStatsReader is implemented by stores that can compute the whole
// dashboard with join queries inside one snapshot.
type ChannelStatsReader interface {
	ChannelStats(ctx context.Context, creator domain.ActorID) (*domain.ChannelStats, error)
}

// WatchHistoryReader is implemented by stores that can join history entries
// with their creators in one query.
type WatchHistoryReader interface {
	WatchHistory(ctx context.Context, actor domain.ActorID) ([]domain.WatchedVideo, error)
}

// Repositories bundles the stores a backend provides.
type Repositories struct {
	Actors        ActorRepository
	Videos        VideoRepository
	Tweets        TweetRepository
	Comments      CommentRepository
	Playlists     PlaylistRepository
	Relationships RelationshipStore
}
