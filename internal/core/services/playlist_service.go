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
	maxPlaylistName        = 100
	maxPlaylistDescription = 1000
)

type playlistService struct {
	repos  ports.Repositories
	guard  *AccessGuard
	logger *zap.SugaredLogger
}

func NewPlaylistService(repos ports.Repositories, guard *AccessGuard, logger *zap.SugaredLogger) ports.PlaylistService {
	return &playlistService{
		repos:  repos,
		guard:  guard,
		logger: logger,
	}
}

func (s *playlistService) Create(ctx context.Context, actor domain.ActorID, name, description string) (*domain.Playlist, error) {
	const op = "create_playlist"

	if err := s.guard.RequireAuthenticated(op, actor); err != nil {
		return nil, err
	}
	name = utils.SanitizeString(name)
	description = utils.SanitizeString(description)
	if err := validatePlaylistFields(name, description); err != nil {
		return nil, domain.InvalidArgument(op, "%s", err.Error())
	}

	now := utils.Now()
	playlist := &domain.Playlist{
		ID:          domain.PlaylistID(utils.NewID()),
		OwnerID:     domain.ActorID(actor.Canonical()),
		Name:        name,
		Description: description,
		Videos:      []domain.VideoID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repos.Playlists.Create(ctx, playlist); err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return playlist, nil
}

func (s *playlistService) Get(ctx context.Context, id domain.PlaylistID) (*domain.Playlist, error) {
	playlist, err := s.repos.Playlists.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("get_playlist", err, "playlist %s not found", id)
	}
	return playlist, nil
}

func (s *playlistService) owned(ctx context.Context, op string, actor domain.ActorID, id domain.PlaylistID) (*domain.Playlist, error) {
	if err := s.guard.RequireAuthenticated(op, actor); err != nil {
		return nil, err
	}
	playlist, err := s.repos.Playlists.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(op, err, "playlist %s not found", id)
	}
	if err := s.guard.RequireOwner(op, actor, playlist); err != nil {
		return nil, err
	}
	return playlist, nil
}

func (s *playlistService) Update(ctx context.Context, actor domain.ActorID, id domain.PlaylistID, name, description *string) (*domain.Playlist, error) {
	const op = "update_playlist"

	playlist, err := s.owned(ctx, op, actor, id)
	if err != nil {
		return nil, err
	}
	if name == nil && description == nil {
		return nil, domain.InvalidArgument(op, "nothing to update")
	}

	updated := *playlist
	if name != nil {
		updated.Name = utils.SanitizeString(*name)
	}
	if description != nil {
		updated.Description = utils.SanitizeString(*description)
	}
	if err := validatePlaylistFields(updated.Name, updated.Description); err != nil {
		return nil, domain.InvalidArgument(op, "%s", err.Error())
	}
	updated.UpdatedAt = utils.Now()

	if err := s.repos.Playlists.Update(ctx, &updated); err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return &updated, nil
}

func (s *playlistService) Delete(ctx context.Context, actor domain.ActorID, id domain.PlaylistID) error {
	const op = "delete_playlist"

	if _, err := s.owned(ctx, op, actor, id); err != nil {
		return err
	}
	if err := s.repos.Playlists.Delete(ctx, id); err != nil {
		return lookupError(op, err, "playlist %s not found", id)
	}
	return nil
}

// AddVideo appends a video. The store rejects duplicates atomically.
func (s *playlistService) AddVideo(ctx context.Context, actor domain.ActorID, id domain.PlaylistID, videoID domain.VideoID) (*domain.Playlist, error) {
	const op = "add_playlist_video"

	playlist, err := s.owned(ctx, op, actor, id)
	if err != nil {
		return nil, err
	}
	if playlist.Contains(videoID) {
		return nil, domain.InvalidOperation(op, "video %s is already in playlist", videoID)
	}
	if _, err := s.repos.Videos.GetByID(ctx, videoID); err != nil {
		return nil, lookupError(op, err, "video %s not found", videoID)
	}

	updated, err := s.repos.Playlists.AddVideo(ctx, id, videoID)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return updated, nil
}

func (s *playlistService) RemoveVideo(ctx context.Context, actor domain.ActorID, id domain.PlaylistID, videoID domain.VideoID) (*domain.Playlist, error) {
	const op = "remove_playlist_video"

	playlist, err := s.owned(ctx, op, actor, id)
	if err != nil {
		return nil, err
	}
	if !playlist.Contains(videoID) {
		return nil, domain.InvalidOperation(op, "video %s is not in playlist", videoID)
	}

	updated, err := s.repos.Playlists.RemoveVideo(ctx, id, videoID)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return updated, nil
}

func validatePlaylistFields(name, description string) error {
	if err := validation.ValidateText(name, "name", maxPlaylistName); err != nil {
		return err
	}
	return validation.ValidateStringLength(description, 0, maxPlaylistDescription, "description")
}
