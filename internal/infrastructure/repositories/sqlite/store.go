package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// maxInArgs bounds the number of bound parameters in one IN (...) list.
const maxInArgs = 500

// Store is a SQLite-backed implementation of every repository port.
// A single connection serialises writers, so a transaction is also a
// consistent read snapshot.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore opens (or creates) the database at path and brings the schema up
// to date. ":memory:" is accepted for throwaway stores.
func NewStore(path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA foreign_keys=ON`,
		`PRAGMA busy_timeout=5000`,
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Infow("opened SQLite store", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS actors (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			full_name     TEXT NOT NULL,
			avatar_url    TEXT NOT NULL DEFAULT '',
			avatar_id     TEXT NOT NULL DEFAULT '',
			cover_url     TEXT NOT NULL DEFAULT '',
			cover_id      TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS watch_history (
			actor_id TEXT NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			video_id TEXT NOT NULL,

			PRIMARY KEY (actor_id, video_id)
		);

		CREATE INDEX IF NOT EXISTS idx_watch_history_position ON watch_history(actor_id, position);

		CREATE TABLE IF NOT EXISTS videos (
			id            TEXT PRIMARY KEY,
			owner_id      TEXT NOT NULL,
			file_url      TEXT NOT NULL,
			file_id       TEXT NOT NULL,
			thumbnail_url TEXT NOT NULL,
			thumbnail_id  TEXT NOT NULL,
			title         TEXT NOT NULL,
			description   TEXT NOT NULL,
			duration      REAL NOT NULL DEFAULT 0,
			views         INTEGER NOT NULL DEFAULT 0,
			is_published  INTEGER NOT NULL DEFAULT 1,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_videos_owner ON videos(owner_id);

		CREATE TABLE IF NOT EXISTS tweets (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tweets_owner ON tweets(owner_id, created_at);

		CREATE TABLE IF NOT EXISTS comments (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			video_id   TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_comments_owner ON comments(owner_id);
		CREATE INDEX IF NOT EXISTS idx_comments_video ON comments(video_id, created_at);

		CREATE TABLE IF NOT EXISTS playlists (
			id          TEXT PRIMARY KEY,
			owner_id    TEXT NOT NULL,
			name        TEXT NOT NULL,
			description TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_playlists_owner ON playlists(owner_id);

		CREATE TABLE IF NOT EXISTS playlist_videos (
			playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			video_id    TEXT NOT NULL,
			position    INTEGER NOT NULL,

			PRIMARY KEY (playlist_id, video_id)
		);

		CREATE INDEX IF NOT EXISTS idx_playlist_videos_video ON playlist_videos(video_id);

		CREATE TABLE IF NOT EXISTS edges (
			kind        TEXT NOT NULL,
			source      TEXT NOT NULL,
			target_id   TEXT NOT NULL,
			target_kind TEXT NOT NULL,
			created_at  TEXT NOT NULL,

			CHECK (kind IN ('like', 'subscription')),
			CHECK (target_kind IN ('video', 'tweet', 'comment', 'actor'))
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_edges_key ON edges(kind, source, target_id, target_kind);
		CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(kind, target_id, target_kind);
		CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(kind, source, target_kind, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies additive column changes for databases created by
// older builds. Each step is idempotent.
func (s *Store) runMigrations() error {
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "actors",
			column: "cover_id",
			apply:  `ALTER TABLE actors ADD COLUMN cover_id TEXT NOT NULL DEFAULT ''`,
		},
		{
			table:  "videos",
			column: "is_published",
			apply:  `ALTER TABLE videos ADD COLUMN is_published INTEGER NOT NULL DEFAULT 1`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking %s.%s: %w", m.table, m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Infow("applied migration", "column", m.column, "table", m.table)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Snapshot writes a consistent copy of the database to path, which must not
// exist yet.
func (s *Store) Snapshot(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("snapshot target %s already exists", path)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}
	s.logger.Debugw("wrote database snapshot", "path", path)
	return nil
}

// Repositories exposes the store through the core ports.
func (s *Store) Repositories() ports.Repositories {
	return ports.Repositories{
		Actors:        &ActorRepository{s: s},
		Videos:        &VideoRepository{s: s},
		Tweets:        &TweetRepository{s: s},
		Comments:      &CommentRepository{s: s},
		Playlists:     &PlaylistRepository{s: s},
		Relationships: &RelationshipRepository{s: s},
	}
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func canonical(id domain.ActorID) string {
	return id.Canonical()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// placeholders returns "?,?,..." for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// chunks splits ids into slices of at most maxInArgs.
func chunks(ids []string) [][]string {
	var out [][]string
	for len(ids) > maxInArgs {
		out = append(out, ids[:maxInArgs])
		ids = ids[maxInArgs:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func toArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// orderClause renders a whitelisted sort column. The id column breaks ties so
// equal keys page deterministically.
func orderClause(req domain.PageRequest, columns map[string]string, fallback string) string {
	col, ok := columns[req.SortBy]
	if !ok {
		col = fallback
	}
	dir := "DESC"
	if req.Direction == domain.SortAsc {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s LIMIT ? OFFSET ?", col, dir, dir)
}

// queryIDs runs a single-column query and collects the strings.
func queryIDs(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}, query string, args ...interface{}) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
