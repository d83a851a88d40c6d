package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vidtube/internal/core/domain"
)

type PlaylistRepository struct {
	s *Store
}

var playlistSortColumns = map[string]string{
	domain.SortCreatedAt: "created_at",
	domain.SortUpdatedAt: "updated_at",
	domain.SortName:      "lower(name)",
}

const playlistColumns = `id, owner_id, name, description, created_at, updated_at`

func scanPlaylist(row rowScanner) (*domain.Playlist, error) {
	var (
		p                    domain.Playlist
		id, owner            string
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &owner, &p.Name, &p.Description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.ID = domain.PlaylistID(id)
	p.OwnerID = domain.ActorID(owner)
	p.Videos = []domain.VideoID{}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// loadPlaylist reads a playlist and its videos in insertion order.
func loadPlaylist(ctx context.Context, q querier, op string, id domain.PlaylistID) (*domain.Playlist, error) {
	p, err := scanPlaylist(q.QueryRowContext(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "playlist %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying playlist: %w", err)
	}

	videos, err := queryIDs(ctx, q, `SELECT video_id FROM playlist_videos WHERE playlist_id = ? ORDER BY position`, string(id))
	if err != nil {
		return nil, fmt.Errorf("querying playlist videos: %w", err)
	}
	for _, v := range videos {
		p.Videos = append(p.Videos, domain.VideoID(v))
	}
	return p, nil
}

func (r *PlaylistRepository) Create(ctx context.Context, playlist *domain.Playlist) error {
	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO playlists (`+playlistColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			string(playlist.ID), canonical(playlist.OwnerID), playlist.Name, playlist.Description,
			formatTime(playlist.CreatedAt), formatTime(playlist.UpdatedAt))
		if err != nil {
			if isConstraintViolation(err) {
				return domain.Conflict("create_playlist", "playlist %s already exists", playlist.ID)
			}
			return fmt.Errorf("inserting playlist: %w", err)
		}
		for i, videoID := range playlist.Videos {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO playlist_videos (playlist_id, video_id, position) VALUES (?, ?, ?)`,
				string(playlist.ID), string(videoID), i+1)
			if err != nil {
				return fmt.Errorf("inserting playlist video: %w", err)
			}
		}
		return nil
	})
}

func (r *PlaylistRepository) GetByID(ctx context.Context, id domain.PlaylistID) (*domain.Playlist, error) {
	return loadPlaylist(ctx, r.s.db, "get_playlist", id)
}

// Update writes name and description. The video list only changes through
// AddVideo and RemoveVideo.
func (r *PlaylistRepository) Update(ctx context.Context, playlist *domain.Playlist) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE playlists SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		playlist.Name, playlist.Description, formatTime(playlist.UpdatedAt), string(playlist.ID))
	if err != nil {
		return fmt.Errorf("updating playlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("update_playlist", "playlist %s not found", playlist.ID)
	}
	return nil
}

func (r *PlaylistRepository) Delete(ctx context.Context, id domain.PlaylistID) error {
	return deleteByID(ctx, r.s.db, "playlists", string(id), "delete_playlist", "playlist")
}

func (r *PlaylistRepository) ListByOwner(ctx context.Context, owner domain.ActorID, req domain.PageRequest) ([]*domain.Playlist, error) {
	var playlists []*domain.Playlist
	err := r.s.withTx(ctx, func(tx *sql.Tx) error {
		ids, err := queryIDs(ctx, tx,
			`SELECT id FROM playlists WHERE owner_id = ?`+orderClause(req, playlistSortColumns, "created_at"),
			canonical(owner), req.Limit(), req.Offset())
		if err != nil {
			return fmt.Errorf("listing playlists: %w", err)
		}
		playlists = make([]*domain.Playlist, 0, len(ids))
		for _, id := range ids {
			p, err := loadPlaylist(ctx, tx, "list_playlists", domain.PlaylistID(id))
			if err != nil {
				return err
			}
			playlists = append(playlists, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return playlists, nil
}

func (r *PlaylistRepository) AddVideo(ctx context.Context, id domain.PlaylistID, videoID domain.VideoID) (*domain.Playlist, error) {
	const op = "add_playlist_video"
	var out *domain.Playlist
	err := r.s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadPlaylist(ctx, tx, op, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO playlist_videos (playlist_id, video_id, position)
			SELECT ?, ?, COALESCE(MAX(position), 0) + 1 FROM playlist_videos WHERE playlist_id = ?`,
			string(id), string(videoID), string(id))
		if err != nil {
			if isConstraintViolation(err) {
				return domain.InvalidOperation(op, "video %s is already in playlist", videoID)
			}
			return fmt.Errorf("adding playlist video: %w", err)
		}
		out, err = loadPlaylist(ctx, tx, op, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PlaylistRepository) RemoveVideo(ctx context.Context, id domain.PlaylistID, videoID domain.VideoID) (*domain.Playlist, error) {
	const op = "remove_playlist_video"
	var out *domain.Playlist
	err := r.s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadPlaylist(ctx, tx, op, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM playlist_videos WHERE playlist_id = ? AND video_id = ?`, string(id), string(videoID))
		if err != nil {
			return fmt.Errorf("removing playlist video: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.InvalidOperation(op, "video %s is not in playlist", videoID)
		}
		out, err = loadPlaylist(ctx, tx, op, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PlaylistRepository) PurgeVideo(ctx context.Context, videoID domain.VideoID) (int64, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM playlist_videos WHERE video_id = ?`, string(videoID))
	if err != nil {
		return 0, fmt.Errorf("purging playlist video: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
