package ports

import (
	"context"

	"vidtube/internal/core/domain"
)

type ToggleService interface {
	Toggle(ctx context.Context, req domain.ToggleRequest) (*domain.ToggleResult, error)
	ToggleLike(ctx context.Context, actor domain.ActorID, targetID string, kind domain.TargetKind) (*domain.ToggleResult, error)
	ToggleSubscription(ctx context.Context, subscriber, creator domain.ActorID) (*domain.ToggleResult, error)
	PurgeTarget(ctx context.Context, targetID string, kind domain.TargetKind) error
}

type AggregationService interface {
	CountLikes(ctx context.Context, viewer domain.ActorID, targetID string, kind domain.TargetKind) (int64, error)
	CountSubscribers(ctx context.Context, creator domain.ActorID) (int64, error)

	ListVideos(ctx context.Context, filter domain.VideoFilter, page domain.PageRequest) ([]*domain.Video, error)
	ListChannelVideos(ctx context.Context, creator domain.ActorID, page domain.PageRequest) ([]*domain.Video, error)
	ListVideoComments(ctx context.Context, viewer domain.ActorID, videoID domain.VideoID, page domain.PageRequest) ([]*domain.Comment, error)
	ListUserTweets(ctx context.Context, owner domain.ActorID, page domain.PageRequest) ([]*domain.Tweet, error)
	ListUserPlaylists(ctx context.Context, owner domain.ActorID, page domain.PageRequest) ([]*domain.Playlist, error)
	ListChannelSubscribers(ctx context.Context, creator domain.ActorID, page domain.PageRequest) ([]domain.ActorSummary, error)
	ListSubscribedChannels(ctx context.Context, subscriber domain.ActorID, page domain.PageRequest) ([]domain.ActorSummary, error)
	ListLikedVideos(ctx context.Context, actor domain.ActorID, page domain.PageRequest) ([]*domain.Video, error)

	ChannelProfile(ctx context.Context, username string, viewer domain.ActorID) (*domain.ChannelProfile, error)
	ChannelStats(ctx context.Context, creator domain.ActorID) (*domain.ChannelStats, error)
	WatchHistory(ctx context.Context, actor domain.ActorID) ([]domain.WatchedVideo, error)
}

type PublishVideoInput struct {
	Title         string  `validate:"required,min=1,max=200"`
	Description   string  `validate:"required,max=5000"`
	Duration      float64 `validate:"gte=0"`
	VideoPath     string  `validate:"required"`
	ThumbnailPath string  `validate:"required"`
}

type UpdateVideoInput struct {
	Title         *string `validate:"omitempty,min=1,max=200"`
	Description   *string `validate:"omitempty,max=5000"`
	ThumbnailPath string
}

type ContentService interface {
	PublishVideo(ctx context.Context, actor domain.ActorID, in PublishVideoInput) (*domain.Video, error)
	GetVideo(ctx context.Context, viewer domain.ActorID, id domain.VideoID) (*domain.Video, error)
	UpdateVideo(ctx context.Context, actor domain.ActorID, id domain.VideoID, in UpdateVideoInput) (*domain.Video, error)
	DeleteVideo(ctx context.Context, actor domain.ActorID, id domain.VideoID) error
	TogglePublishStatus(ctx context.Context, actor domain.ActorID, id domain.VideoID) (*domain.Video, error)
	RecordView(ctx context.Context, viewer domain.ActorID, id domain.VideoID) (*domain.Video, error)

	CreateTweet(ctx context.Context, actor domain.ActorID, content string) (*domain.Tweet, error)
	UpdateTweet(ctx context.Context, actor domain.ActorID, id domain.TweetID, content string) (*domain.Tweet, error)
	DeleteTweet(ctx context.Context, actor domain.ActorID, id domain.TweetID) error

	AddComment(ctx context.Context, actor domain.ActorID, videoID domain.VideoID, content string) (*domain.Comment, error)
	UpdateComment(ctx context.Context, actor domain.ActorID, id domain.CommentID, content string) (*domain.Comment, error)
	DeleteComment(ctx context.Context, actor domain.ActorID, id domain.CommentID) error
}

type PlaylistService interface {
	Create(ctx context.Context, actor domain.ActorID, name, description string) (*domain.Playlist, error)
	Get(ctx context.Context, id domain.PlaylistID) (*domain.Playlist, error)
	Update(ctx context.Context, actor domain.ActorID, id domain.PlaylistID, name, description *string) (*domain.Playlist, error)
	Delete(ctx context.Context, actor domain.ActorID, id domain.PlaylistID) error
	AddVideo(ctx context.Context, actor domain.ActorID, id domain.PlaylistID, videoID domain.VideoID) (*domain.Playlist, error)
	RemoveVideo(ctx context.Context, actor domain.ActorID, id domain.PlaylistID, videoID domain.VideoID) (*domain.Playlist, error)
}

type RegisterInput struct {
	Username       string `validate:"required,username"`
	Email          string `validate:"required,email,max=254"`
	FullName       string `validate:"required,max=100"`
	Password       string `validate:"required,min=6,max=72"`
	AvatarPath     string `validate:"required"`
	CoverImagePath string
}

type UpdateAccountInput struct {
	FullName *string `validate:"omitempty,min=1,max=100"`
	Email    *string `validate:"omitempty,email,max=254"`
}

// TokenPair is issued on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type ActorService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Actor, error)
	Login(ctx context.Context, login, password string) (*domain.Actor, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, actor domain.ActorID) error
	ChangePassword(ctx context.Context, actor domain.ActorID, oldPassword, newPassword string) error
	GetCurrent(ctx context.Context, actor domain.ActorID) (*domain.Actor, error)
	UpdateAccount(ctx context.Context, actor domain.ActorID, in UpdateAccountInput) (*domain.Actor, error)
	UpdateAvatar(ctx context.Context, actor domain.ActorID, localPath string) (*domain.Actor, error)
	UpdateCoverImage(ctx context.Context, actor domain.ActorID, localPath string) (*domain.Actor, error)
}
