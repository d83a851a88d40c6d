package services

import (
	"context"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	"vidtube/pkg/utils"
	"vidtube/pkg/validation"

	"go.uber.org/zap"
)

const (
	maxTweetLength   = 280
	maxCommentLength = 1000

	defaultHistoryLimit = 100
)

type contentService struct {
	repos        ports.Repositories
	toggles      ports.ToggleService
	guard        *AccessGuard
	assets       ports.AssetStore
	janitor      assetJanitor
	historyLimit int
	logger       *zap.SugaredLogger
}

func NewContentService(
	repos ports.Repositories,
	toggles ports.ToggleService,
	guard *AccessGuard,
	assets ports.AssetStore,
	historyLimit int,
	metrics *MetricsService,
	logger *zap.SugaredLogger,
) ports.ContentService {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &contentService{
		repos:        repos,
		toggles:      toggles,
		guard:        guard,
		assets:       assets,
		janitor:      assetJanitor{store: assets, metrics: metrics, logger: logger},
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// PublishVideo uploads the video file and thumbnail, then records the video.
// Uploaded assets are deleted again if any later step fails.
func (s *contentService) PublishVideo(ctx context.Context, actor domain.ActorID, in ports.PublishVideoInput) (*domain.Video, error) {
	const op = "publish_video"

	if err := s.guard.RequireAuthenticated(op, actor); err != nil {
		return nil, err
	}
	in.Title = utils.SanitizeString(in.Title)
	in.Description = utils.SanitizeString(in.Description)
	if err := validation.Struct(in); err != nil {
		return nil, domain.InvalidArgument(op, "%s", err.Error())
	}

	file, err := s.assets.Upload(ctx, in.VideoPath)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	thumb, err := s.assets.Upload(ctx, in.ThumbnailPath)
	if err != nil {
		s.janitor.discard(ctx, op, file)
		return nil, domain.DependencyFailure(op, err)
	}

	now := utils.Now()
	video := &domain.Video{
		ID:          domain.VideoID(utils.NewID()),
		OwnerID:     domain.ActorID(actor.Canonical()),
		VideoFile:   file,
		Thumbnail:   thumb,
		Title:       in.Title,
		Description: in.Description,
		Duration:    in.Duration,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repos.Videos.Create(ctx, video); err != nil {
		s.janitor.discard(ctx, op, file, thumb)
		return nil, domain.DependencyFailure(op, err)
	}

	s.logger.Infow("Video published", "video_id", video.ID, "owner_id", video.OwnerID)
	return video, nil
}

// GetVideo hides unpublished videos from everyone but their owner.
func (s *contentService) GetVideo(ctx context.Context, viewer domain.ActorID, id domain.VideoID) (*domain.Video, error) {
	return s.visibleVideo(ctx, "get_video", viewer, id)
}

func (s *contentService) visibleVideo(ctx context.Context, op string, viewer domain.ActorID, id domain.VideoID) (*domain.Video, error) {
	video, err := s.repos.Videos.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(op, err, "video %s not found", id)
	}
	if !video.VisibleTo(viewer) {
		return nil, domain.NotFound(op, "video %s not found", id)
	}
	return video, nil
}

func (s *contentService) ownedVideo(ctx context.Context, op string, actor domain.ActorID, id domain.VideoID) (*domain.Video, error) {
	if err := s.guard.RequireAuthenticated(op, actor); err != nil {
		return nil, err
	}
	video, err := s.repos.Videos.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(op, err, "video %s not found", id)
	}
	if err := s.guard.RequireOwner(op, actor, video); err != nil {
		return nil, err
	}
	return video, nil
}

func (s *contentService) UpdateVideo(ctx context.Context, actor domain.ActorID, id domain.VideoID, in ports.UpdateVideoInput) (*domain.Video, error) {
	const op = "update_video"

	video, err := s.ownedVideo(ctx, op, actor, id)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, domain.InvalidArgument(op, "%s", err.Error())
	}
	if in.Title == nil && in.Description == nil && in.ThumbnailPath == "" {
		return nil, domain.InvalidArgument(op, "nothing to update")
	}

	updated := *video
	if in.Title != nil {
		updated.Title = utils.SanitizeString(*in.Title)
	}
	if in.Description != nil {
		updated.Description = utils.SanitizeString(*in.Description)
	}

	var newThumb domain.Asset
	if in.ThumbnailPath != "" {
		newThumb, err = s.assets.Upload(ctx, in.ThumbnailPath)
		if err != nil {
			return nil, domain.DependencyFailure(op, err)
		}
		updated.Thumbnail = newThumb
	}
	updated.UpdatedAt = utils.Now()

	if err := s.repos.Videos.Update(ctx, &updated); err != nil {
		s.janitor.discard(ctx, op, newThumb)
		return nil, domain.DependencyFailure(op, err)
	}
	if !newThumb.IsZero() {
		s.janitor.discard(ctx, "replaced thumbnail", video.Thumbnail)
	}
	return &updated, nil
}

// DeleteVideo removes the video, its comments and every edge pointing at
// them, then drops the stored files.
func (s *contentService) DeleteVideo(ctx context.Context, actor domain.ActorID, id domain.VideoID) error {
	const op = "delete_video"

	video, err := s.ownedVideo(ctx, op, actor, id)
	if err != nil {
		return err
	}
	commentIDs, err := s.repos.Comments.ListIDsByVideo(ctx, id)
	if err != nil {
		return domain.DependencyFailure(op, err)
	}
	if err := s.repos.Videos.Delete(ctx, id); err != nil {
		return lookupError(op, err, "video %s not found", id)
	}

	if err := s.toggles.PurgeTarget(ctx, string(id), domain.TargetVideo); err != nil {
		return err
	}
	playlists, err := s.repos.Playlists.PurgeVideo(ctx, id)
	if err != nil {
		return domain.DependencyFailure(op, err)
	}
	for _, cid := range commentIDs {
		if err := s.repos.Comments.Delete(ctx, domain.CommentID(cid)); err != nil && domain.KindOf(err) != domain.KindNotFound {
			return domain.DependencyFailure(op, err)
		}
		if err := s.toggles.PurgeTarget(ctx, cid, domain.TargetComment); err != nil {
			return err
		}
	}

	s.janitor.discard(ctx, op, video.VideoFile, video.Thumbnail)
	s.logger.Infow("Video deleted", "video_id", id, "comments", len(commentIDs), "playlists", playlists)
	return nil
}

func (s *contentService) TogglePublishStatus(ctx context.Context, actor domain.ActorID, id domain.VideoID) (*domain.Video, error) {
	const op = "toggle_publish_status"

	video, err := s.ownedVideo(ctx, op, actor, id)
	if err != nil {
		return nil, err
	}
	updated := *video
	updated.IsPublished = !video.IsPublished
	updated.UpdatedAt = utils.Now()
	if err := s.repos.Videos.Update(ctx, &updated); err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return &updated, nil
}

// RecordView counts a view and moves the video to the front of the viewer's
// watch history. Anonymous views only count.
func (s *contentService) RecordView(ctx context.Context, viewer domain.ActorID, id domain.VideoID) (*domain.Video, error) {
	const op = "record_view"

	video, err := s.visibleVideo(ctx, op, viewer, id)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Videos.IncrementViews(ctx, id); err != nil {
		return nil, lookupError(op, err, "video %s not found", id)
	}
	video.Views++

	if viewer.IsZero() {
		return video, nil
	}
	if err := s.repos.Actors.PushHistory(ctx, viewer, id, s.historyLimit); err != nil {
		return nil, lookupError(op, err, "actor %s not found", viewer)
	}
	return video, nil
}

func (s *contentService) CreateTweet(ctx context.Context, actor domain.ActorID, content string) (*domain.Tweet, error) {
	const op = "create_tweet"

	if err := s.guard.RequireAuthenticated(op, actor); err != nil {
		return nil, err
	}
	content = utils.SanitizeString(content)
	if err := validation.ValidateText(content, "content", maxTweetLength); err != nil {
		return nil, domain.InvalidArgument(op, "%s", err.Error())
	}

	now := utils.Now()
	tweet := &domain.Tweet{
		ID:        domain.TweetID(utils.NewID()),
		OwnerID:   domain.ActorID(actor.Canonical()),
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Tweets.Create(ctx, tweet); err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return tweet, nil
}

func (s *contentService) ownedTweet(ctx context.Context, op string, actor domain.ActorID, id domain.TweetID) (*domain.Tweet, error) {
	if err := s.guard.RequireAuthenticated(op, actor); err != nil {
		return nil, err
	}
	tweet, err := s.repos.Tweets.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(op, err, "tweet %s not found", id)
	}
	if err := s.guard.RequireOwner(op, actor, tweet); err != nil {
		return nil, err
	}
	return tweet, nil
}

func (s *contentService) UpdateTweet(ctx context.Context, actor domain.ActorID, id domain.TweetID, content string) (*domain.Tweet, error) {
	const op = "update_tweet"

	tweet, err := s.ownedTweet(ctx, op, actor, id)
	if err != nil {
		return nil, err
	}
	content = utils.SanitizeString(content)
	if err := validation.ValidateText(content, "content", maxTweetLength); err != nil {
		return nil, domain.InvalidArgument(op, "%s", err.Error())
	}

	updated := *tweet
	updated.Content = content
	updated.UpdatedAt = utils.Now()
	if err := s.repos.Tweets.Update(ctx, &updated); err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return &updated, nil
}

func (s *contentService) DeleteTweet(ctx context.Context, actor domain.ActorID, id domain.TweetID) error {
	const op = "delete_tweet"

	if _, err := s.ownedTweet(ctx, op, actor, id); err != nil {
		return err
	}
	if err := s.repos.Tweets.Delete(ctx, id); err != nil {
		return lookupError(op, err, "tweet %s not found", id)
	}
	return s.toggles.PurgeTarget(ctx, string(id), domain.TargetTweet)
}

func (s *contentService) AddComment(ctx context.Context, actor domain.ActorID, videoID domain.VideoID, content string) (*domain.Comment, error) {
	const op = "add_comment"

	if err := s.guard.RequireAuthenticated(op, actor); err != nil {
		return nil, err
	}
	content = utils.SanitizeString(content)
	if err := validation.ValidateText(content, "content", maxCommentLength); err != nil {
		return nil, domain.InvalidArgument(op, "%s", err.Error())
	}
	if _, err := s.visibleVideo(ctx, op, actor, videoID); err != nil {
		return nil, err
	}

	now := utils.Now()
	comment := &domain.Comment{
		ID:        domain.CommentID(utils.NewID()),
		OwnerID:   domain.ActorID(actor.Canonical()),
		VideoID:   videoID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Comments.Create(ctx, comment); err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return comment, nil
}

func (s *contentService) ownedComment(ctx context.Context, op string, actor domain.ActorID, id domain.CommentID) (*domain.Comment, error) {
	if err := s.guard.RequireAuthenticated(op, actor); err != nil {
		return nil, err
	}
	comment, err := s.repos.Comments.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(op, err, "comment %s not found", id)
	}
	if err := s.guard.RequireOwner(op, actor, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *contentService) UpdateComment(ctx context.Context, actor domain.ActorID, id domain.CommentID, content string) (*domain.Comment, error) {
	const op = "update_comment"

	comment, err := s.ownedComment(ctx, op, actor, id)
	if err != nil {
		return nil, err
	}
	content = utils.SanitizeString(content)
	if err := validation.ValidateText(content, "content", maxCommentLength); err != nil {
		return nil, domain.InvalidArgument(op, "%s", err.Error())
	}

	updated := *comment
	updated.Content = content
	updated.UpdatedAt = utils.Now()
	if err := s.repos.Comments.Update(ctx, &updated); err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return &updated, nil
}

func (s *contentService) DeleteComment(ctx context.Context, actor domain.ActorID, id domain.CommentID) error {
	const op = "delete_comment"

	if _, err := s.ownedComment(ctx, op, actor, id); err != nil {
		return err
	}
	if err := s.repos.Comments.Delete(ctx, id); err != nil {
		return lookupError(op, err, "comment %s not found", id)
	}
	return s.toggles.PurgeTarget(ctx, string(id), domain.TargetComment)
}
