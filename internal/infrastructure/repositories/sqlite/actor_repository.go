package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vidtube/internal/core/domain"
	"vidtube/pkg/utils"
)

type ActorRepository struct {
	s *Store
}

const actorColumns = `id, username, email, full_name, avatar_url, avatar_id, cover_url, cover_id,
	password_hash, refresh_token, created_at, updated_at`

func (r *ActorRepository) Create(ctx context.Context, actor *domain.Actor) error {
	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO actors (`+actorColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			canonical(actor.ID), actor.Username, actor.Email, actor.FullName,
			actor.Avatar.URL, actor.Avatar.PublicID, actor.CoverImage.URL, actor.CoverImage.PublicID,
			actor.PasswordHash, actor.RefreshToken,
			formatTime(actor.CreatedAt), formatTime(actor.UpdatedAt),
		)
		if err != nil {
			if isConstraintViolation(err) {
				return domain.Conflict("create_actor", "username %q or email %q is taken", actor.Username, actor.Email)
			}
			return fmt.Errorf("inserting actor: %w", err)
		}
		return writeHistory(ctx, tx, actor.ID, actor.WatchHistory)
	})
}

func (r *ActorRepository) GetByID(ctx context.Context, id domain.ActorID) (*domain.Actor, error) {
	return r.getOne(ctx, "id = ?", canonical(id), fmt.Sprintf("actor %s not found", id))
}

func (r *ActorRepository) GetByUsername(ctx context.Context, username string) (*domain.Actor, error) {
	return r.getOne(ctx, "username = ?", domain.NormalizeUsername(username), fmt.Sprintf("username %q not found", username))
}

func (r *ActorRepository) GetByEmail(ctx context.Context, email string) (*domain.Actor, error) {
	return r.getOne(ctx, "email = ?", email, fmt.Sprintf("email %q not found", email))
}

func (r *ActorRepository) getOne(ctx context.Context, where string, arg interface{}, missing string) (*domain.Actor, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+actorColumns+` FROM actors WHERE `+where, arg)
	actor, err := scanActor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("get_actor", "%s", missing)
	}
	if err != nil {
		return nil, fmt.Errorf("querying actor: %w", err)
	}

	history, err := queryIDs(ctx, r.s.db,
		`SELECT video_id FROM watch_history WHERE actor_id = ? ORDER BY position`, string(actor.ID))
	if err != nil {
		return nil, fmt.Errorf("querying watch history: %w", err)
	}
	for _, id := range history {
		actor.WatchHistory = append(actor.WatchHistory, domain.VideoID(id))
	}
	return actor, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActor(row rowScanner) (*domain.Actor, error) {
	var (
		a                    domain.Actor
		id                   string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &a.Username, &a.Email, &a.FullName,
		&a.Avatar.URL, &a.Avatar.PublicID, &a.CoverImage.URL, &a.CoverImage.PublicID,
		&a.PasswordHash, &a.RefreshToken, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.ID = domain.ActorID(id)
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ActorRepository) Update(ctx context.Context, actor *domain.Actor) error {
	res, err := r.s.db.ExecContext(ctx, `
		UPDATE actors SET username = ?, email = ?, full_name = ?,
			avatar_url = ?, avatar_id = ?, cover_url = ?, cover_id = ?, updated_at = ?
		WHERE id = ?`,
		actor.Username, actor.Email, actor.FullName,
		actor.Avatar.URL, actor.Avatar.PublicID, actor.CoverImage.URL, actor.CoverImage.PublicID,
		formatTime(actor.UpdatedAt), canonical(actor.ID),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return domain.Conflict("update_actor", "username %q or email %q is taken", actor.Username, actor.Email)
		}
		return fmt.Errorf("updating actor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("update_actor", "actor %s not found", actor.ID)
	}
	return nil
}

// setColumn updates one credential column plus updated_at. extra narrows the
// WHERE clause; the result reports whether a row matched.
func (r *ActorRepository) setColumn(ctx context.Context, column, value string, id domain.ActorID, extra string, extraArgs ...interface{}) (bool, error) {
	args := append([]interface{}{value, formatTime(utils.Now()), canonical(id)}, extraArgs...)
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE actors SET `+column+` = ?, updated_at = ? WHERE id = ?`+extra, args...)
	if err != nil {
		return false, fmt.Errorf("updating %s: %w", column, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *ActorRepository) SetRefreshToken(ctx context.Context, id domain.ActorID, token string) error {
	ok, err := r.setColumn(ctx, "refresh_token", token, id, "")
	if err == nil && !ok {
		return domain.NotFound("set_refresh_token", "actor %s not found", id)
	}
	return err
}

func (r *ActorRepository) SwapRefreshToken(ctx context.Context, id domain.ActorID, current, next string) (bool, error) {
	if current == "" {
		return false, nil
	}
	return r.setColumn(ctx, "refresh_token", next, id, " AND refresh_token = ?", current)
}

func (r *ActorRepository) SetPasswordHash(ctx context.Context, id domain.ActorID, hash string) error {
	ok, err := r.setColumn(ctx, "password_hash", hash, id, "")
	if err == nil && !ok {
		return domain.NotFound("set_password_hash", "actor %s not found", id)
	}
	return err
}

// PushHistory reads and rewrites the history inside one transaction; the
// store's single connection serialises concurrent pushes.
func (r *ActorRepository) PushHistory(ctx context.Context, id domain.ActorID, videoID domain.VideoID, limit int) error {
	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := touchActor(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound("push_history", "actor %s not found", id)
		}

		ids, err := queryIDs(ctx, tx,
			`SELECT video_id FROM watch_history WHERE actor_id = ? ORDER BY position`, canonical(id))
		if err != nil {
			return fmt.Errorf("querying watch history: %w", err)
		}
		actor := domain.Actor{WatchHistory: make([]domain.VideoID, 0, len(ids))}
		for _, v := range ids {
			actor.WatchHistory = append(actor.WatchHistory, domain.VideoID(v))
		}
		actor.PushHistory(videoID, limit)
		return writeHistory(ctx, tx, id, actor.WatchHistory)
	})
}

func touchActor(ctx context.Context, tx *sql.Tx, id domain.ActorID) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE actors SET updated_at = ? WHERE id = ?`,
		formatTime(utils.Now()), canonical(id))
	if err != nil {
		return false, fmt.Errorf("touching actor: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// writeHistory replaces the stored history with history, most recent first.
func writeHistory(ctx context.Context, tx *sql.Tx, actorID domain.ActorID, history []domain.VideoID) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM watch_history WHERE actor_id = ?`, canonical(actorID)); err != nil {
		return fmt.Errorf("clearing watch history: %w", err)
	}
	for i, videoID := range history {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO watch_history (actor_id, position, video_id) VALUES (?, ?, ?)`,
			canonical(actorID), i, string(videoID))
		if err != nil {
			return fmt.Errorf("writing watch history: %w", err)
		}
	}
	return nil
}

func (r *ActorRepository) GetSummaries(ctx context.Context, ids []domain.ActorID) (map[domain.ActorID]domain.ActorSummary, error) {
	out := make(map[domain.ActorID]domain.ActorSummary, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, canonical(id))
	}

	for _, chunk := range chunks(keys) {
		rows, err := r.s.db.QueryContext(ctx, `
			SELECT id, username, full_name, avatar_url, cover_url
			FROM actors WHERE id IN (`+placeholders(len(chunk))+`)`, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("querying actor summaries: %w", err)
		}
		for rows.Next() {
			var s domain.ActorSummary
			var id string
			if err := rows.Scan(&id, &s.Username, &s.FullName, &s.Avatar, &s.CoverImage); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning actor summary: %w", err)
			}
			s.ID = domain.ActorID(id)
			out[s.ID] = s
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterating actor summaries: %w", err)
		}
	}
	return out, nil
}

// likePattern escapes a free-text query for LIKE ... ESCAPE '\'.
func likePattern(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}
