package memory

import (
	"context"
	"strings"

	"vidtube/internal/core/domain"
)

type PlaylistRepository struct {
	s *Store
}

func clonePlaylist(p *domain.Playlist) *domain.Playlist {
	cp := *p
	cp.Videos = append([]domain.VideoID{}, p.Videos...)
	return &cp
}

func (r *PlaylistRepository) Create(ctx context.Context, playlist *domain.Playlist) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.playlists[playlist.ID]; exists {
		return domain.Conflict("create_playlist", "playlist %s already exists", playlist.ID)
	}
	r.s.playlists[playlist.ID] = clonePlaylist(playlist)
	return nil
}

func (r *PlaylistRepository) GetByID(ctx context.Context, id domain.PlaylistID) (*domain.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	playlist, exists := r.s.playlists[id]
	if !exists {
		return nil, domain.NotFound("get_playlist", "playlist %s not found", id)
	}
	return clonePlaylist(playlist), nil
}

// Update writes name and description. The video list only changes through
// AddVideo and RemoveVideo.
func (r *PlaylistRepository) Update(ctx context.Context, playlist *domain.Playlist) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, exists := r.s.playlists[playlist.ID]
	if !exists {
		return domain.NotFound("update_playlist", "playlist %s not found", playlist.ID)
	}
	current.Name = playlist.Name
	current.Description = playlist.Description
	current.UpdatedAt = playlist.UpdatedAt
	return nil
}

func (r *PlaylistRepository) Delete(ctx context.Context, id domain.PlaylistID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.playlists[id]; !exists {
		return domain.NotFound("delete_playlist", "playlist %s not found", id)
	}
	delete(r.s.playlists, id)
	return nil
}

func (r *PlaylistRepository) ListByOwner(ctx context.Context, owner domain.ActorID, req domain.PageRequest) ([]*domain.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.Playlist
	for _, p := range r.s.playlists {
		if domain.SameActor(p.OwnerID, owner) {
			matched = append(matched, clonePlaylist(p))
		}
	}

	order := func(a, b *domain.Playlist) int { return a.CreatedAt.Compare(b.CreatedAt) }
	switch req.SortBy {
	case domain.SortUpdatedAt:
		order = func(a, b *domain.Playlist) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	case domain.SortName:
		order = func(a, b *domain.Playlist) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}
	sortBy(matched, req.Direction, order, func(p *domain.Playlist) string { return string(p.ID) })
	return page(matched, req), nil
}

func (r *PlaylistRepository) AddVideo(ctx context.Context, id domain.PlaylistID, videoID domain.VideoID) (*domain.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	playlist, exists := r.s.playlists[id]
	if !exists {
		return nil, domain.NotFound("add_playlist_video", "playlist %s not found", id)
	}
	if playlist.Contains(videoID) {
		return nil, domain.InvalidOperation("add_playlist_video", "video %s is already in playlist", videoID)
	}
	playlist.Videos = append(playlist.Videos, videoID)
	return clonePlaylist(playlist), nil
}

func (r *PlaylistRepository) RemoveVideo(ctx context.Context, id domain.PlaylistID, videoID domain.VideoID) (*domain.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	playlist, exists := r.s.playlists[id]
	if !exists {
		return nil, domain.NotFound("remove_playlist_video", "playlist %s not found", id)
	}
	kept := playlist.Videos[:0:0]
	for _, v := range playlist.Videos {
		if v != videoID {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(playlist.Videos) {
		return nil, domain.InvalidOperation("remove_playlist_video", "video %s is not in playlist", videoID)
	}
	playlist.Videos = kept
	return clonePlaylist(playlist), nil
}

func (r *PlaylistRepository) PurgeVideo(ctx context.Context, videoID domain.VideoID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, playlist := range r.s.playlists {
		if !playlist.Contains(videoID) {
			continue
		}
		kept := playlist.Videos[:0:0]
		for _, v := range playlist.Videos {
			if v != videoID {
				kept = append(kept, v)
			}
		}
		playlist.Videos = kept
		n++
	}
	return n, nil
}
