package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vidtube/internal/core/domain"
)

type VideoRepository struct {
	s *Store
}

const videoColumns = `id, owner_id, file_url, file_id, thumbnail_url, thumbnail_id, title, description,
	duration, views, is_published, created_at, updated_at`

var videoSortColumns = map[string]string{
	domain.SortCreatedAt: "created_at",
	domain.SortUpdatedAt: "updated_at",
	domain.SortViews:     "views",
	domain.SortDuration:  "duration",
	domain.SortTitle:     "lower(title)",
}

func scanVideo(row rowScanner) (*domain.Video, error) {
	var (
		v                    domain.Video
		id, owner            string
		published            int
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &owner, &v.VideoFile.URL, &v.VideoFile.PublicID, &v.Thumbnail.URL, &v.Thumbnail.PublicID,
		&v.Title, &v.Description, &v.Duration, &v.Views, &published, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	v.ID = domain.VideoID(id)
	v.OwnerID = domain.ActorID(owner)
	v.IsPublished = published != 0
	if v.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if v.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func collectVideos(rows *sql.Rows) ([]*domain.Video, error) {
	defer rows.Close()
	videos := []*domain.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (r *VideoRepository) Create(ctx context.Context, video *domain.Video) error {
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(video.ID), canonical(video.OwnerID),
		video.VideoFile.URL, video.VideoFile.PublicID, video.Thumbnail.URL, video.Thumbnail.PublicID,
		video.Title, video.Description, video.Duration, video.Views, boolInt(video.IsPublished),
		formatTime(video.CreatedAt), formatTime(video.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return domain.Conflict("create_video", "video %s already exists", video.ID)
		}
		return fmt.Errorf("inserting video: %w", err)
	}
	return nil
}

func (r *VideoRepository) GetByID(ctx context.Context, id domain.VideoID) (*domain.Video, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, string(id))
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("get_video", "video %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying video: %w", err)
	}
	return v, nil
}

func (r *VideoRepository) GetByIDs(ctx context.Context, ids []domain.VideoID) (map[domain.VideoID]*domain.Video, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}

	out := make(map[domain.VideoID]*domain.Video, len(ids))
	for _, chunk := range chunks(keys) {
		rows, err := r.s.db.QueryContext(ctx,
			`SELECT `+videoColumns+` FROM videos WHERE id IN (`+placeholders(len(chunk))+`)`, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("querying videos: %w", err)
		}
		videos, err := collectVideos(rows)
		if err != nil {
			return nil, err
		}
		for _, v := range videos {
			out[v.ID] = v
		}
	}
	return out, nil
}

// Update writes every mutable column except views, which only move through
// IncrementViews.
func (r *VideoRepository) Update(ctx context.Context, video *domain.Video) error {
	res, err := r.s.db.ExecContext(ctx, `
		UPDATE videos SET file_url = ?, file_id = ?, thumbnail_url = ?, thumbnail_id = ?,
			title = ?, description = ?, duration = ?, is_published = ?, updated_at = ?
		WHERE id = ?`,
		video.VideoFile.URL, video.VideoFile.PublicID, video.Thumbnail.URL, video.Thumbnail.PublicID,
		video.Title, video.Description, video.Duration, boolInt(video.IsPublished), formatTime(video.UpdatedAt),
		string(video.ID),
	)
	if err != nil {
		return fmt.Errorf("updating video: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("update_video", "video %s not found", video.ID)
	}
	return nil
}

func (r *VideoRepository) Delete(ctx context.Context, id domain.VideoID) error {
	return deleteByID(ctx, r.s.db, "videos", string(id), "delete_video", "video")
}

func deleteByID(ctx context.Context, db *sql.DB, table, id, op, noun string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", noun, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound(op, "%s %s not found", noun, id)
	}
	return nil
}

func (r *VideoRepository) List(ctx context.Context, filter domain.VideoFilter, req domain.PageRequest) ([]*domain.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE 1 = 1`
	var args []interface{}
	if filter.PublishedOnly {
		query += ` AND is_published = 1`
	}
	if !filter.OwnerID.IsZero() {
		query += ` AND owner_id = ?`
		args = append(args, canonical(filter.OwnerID))
	}
	if filter.Query != "" {
		query += ` AND (lower(title) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\')`
		pattern := likePattern(filter.Query)
		args = append(args, pattern, pattern)
	}
	query += orderClause(req, videoSortColumns, "created_at")
	args = append(args, req.Limit(), req.Offset())

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	return collectVideos(rows)
}

func (r *VideoRepository) ListIDsByOwner(ctx context.Context, owner domain.ActorID) ([]string, error) {
	ids, err := queryIDs(ctx, r.s.db, `SELECT id FROM videos WHERE owner_id = ?`, canonical(owner))
	if err != nil {
		return nil, fmt.Errorf("listing video ids: %w", err)
	}
	return ids, nil
}

func (r *VideoRepository) Totals(ctx context.Context, owner domain.ActorID) (domain.ContentTotals, error) {
	var t domain.ContentTotals
	err := r.s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(views), 0) FROM videos WHERE owner_id = ?`, canonical(owner),
	).Scan(&t.Videos, &t.Views)
	if err != nil {
		return t, fmt.Errorf("summing videos: %w", err)
	}
	return t, nil
}

func (r *VideoRepository) IncrementViews(ctx context.Context, id domain.VideoID) error {
	res, err := r.s.db.ExecContext(ctx, `UPDATE videos SET views = views + 1 WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("incrementing views: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("increment_views", "video %s not found", id)
	}
	return nil
}

type TweetRepository struct {
	s *Store
}

func scanTweet(row rowScanner) (*domain.Tweet, error) {
	var (
		t                    domain.Tweet
		id, owner            string
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &owner, &t.Content, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.ID = domain.TweetID(id)
	t.OwnerID = domain.ActorID(owner)
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TweetRepository) Create(ctx context.Context, tweet *domain.Tweet) error {
	_, err := r.s.db.ExecContext(ctx,
		`INSERT INTO tweets (id, owner_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		string(tweet.ID), canonical(tweet.OwnerID), tweet.Content,
		formatTime(tweet.CreatedAt), formatTime(tweet.UpdatedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return domain.Conflict("create_tweet", "tweet %s already exists", tweet.ID)
		}
		return fmt.Errorf("inserting tweet: %w", err)
	}
	return nil
}

func (r *TweetRepository) GetByID(ctx context.Context, id domain.TweetID) (*domain.Tweet, error) {
	row := r.s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, content, created_at, updated_at FROM tweets WHERE id = ?`, string(id))
	t, err := scanTweet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("get_tweet", "tweet %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying tweet: %w", err)
	}
	return t, nil
}

func (r *TweetRepository) Update(ctx context.Context, tweet *domain.Tweet) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE tweets SET content = ?, updated_at = ? WHERE id = ?`,
		tweet.Content, formatTime(tweet.UpdatedAt), string(tweet.ID))
	if err != nil {
		return fmt.Errorf("updating tweet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("update_tweet", "tweet %s not found", tweet.ID)
	}
	return nil
}

func (r *TweetRepository) Delete(ctx context.Context, id domain.TweetID) error {
	return deleteByID(ctx, r.s.db, "tweets", string(id), "delete_tweet", "tweet")
}

func (r *TweetRepository) ListByOwner(ctx context.Context, owner domain.ActorID, req domain.PageRequest) ([]*domain.Tweet, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT id, owner_id, content, created_at, updated_at FROM tweets WHERE owner_id = ?`+
			orderClause(req, nil, "created_at"),
		canonical(owner), req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("listing tweets: %w", err)
	}
	defer rows.Close()

	tweets := []*domain.Tweet{}
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tweet: %w", err)
		}
		tweets = append(tweets, t)
	}
	return tweets, rows.Err()
}

func (r *TweetRepository) ListIDsByOwner(ctx context.Context, owner domain.ActorID) ([]string, error) {
	ids, err := queryIDs(ctx, r.s.db, `SELECT id FROM tweets WHERE owner_id = ?`, canonical(owner))
	if err != nil {
		return nil, fmt.Errorf("listing tweet ids: %w", err)
	}
	return ids, nil
}

type CommentRepository struct {
	s *Store
}

const commentColumns = `id, owner_id, video_id, content, created_at, updated_at`

func scanComment(row rowScanner) (*domain.Comment, error) {
	var (
		c                    domain.Comment
		id, owner, videoID   string
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &owner, &videoID, &c.Content, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.ID = domain.CommentID(id)
	c.OwnerID = domain.ActorID(owner)
	c.VideoID = domain.VideoID(videoID)
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	_, err := r.s.db.ExecContext(ctx,
		`INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		string(comment.ID), canonical(comment.OwnerID), string(comment.VideoID), comment.Content,
		formatTime(comment.CreatedAt), formatTime(comment.UpdatedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return domain.Conflict("create_comment", "comment %s already exists", comment.ID)
		}
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

func (r *CommentRepository) GetByID(ctx context.Context, id domain.CommentID) (*domain.Comment, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, string(id))
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("get_comment", "comment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying comment: %w", err)
	}
	return c, nil
}

func (r *CommentRepository) Update(ctx context.Context, comment *domain.Comment) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`,
		comment.Content, formatTime(comment.UpdatedAt), string(comment.ID))
	if err != nil {
		return fmt.Errorf("updating comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("update_comment", "comment %s not found", comment.ID)
	}
	return nil
}

func (r *CommentRepository) Delete(ctx context.Context, id domain.CommentID) error {
	return deleteByID(ctx, r.s.db, "comments", string(id), "delete_comment", "comment")
}

func (r *CommentRepository) ListByVideo(ctx context.Context, videoID domain.VideoID, req domain.PageRequest) ([]*domain.Comment, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE video_id = ?`+orderClause(req, nil, "created_at"),
		string(videoID), req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	comments := []*domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *CommentRepository) ListIDsByOwner(ctx context.Context, owner domain.ActorID) ([]string, error) {
	ids, err := queryIDs(ctx, r.s.db, `SELECT id FROM comments WHERE owner_id = ?`, canonical(owner))
	if err != nil {
		return nil, fmt.Errorf("listing comment ids: %w", err)
	}
	return ids, nil
}

func (r *CommentRepository) ListIDsByVideo(ctx context.Context, videoID domain.VideoID) ([]string, error) {
	ids, err := queryIDs(ctx, r.s.db, `SELECT id FROM comments WHERE video_id = ?`, string(videoID))
	if err != nil {
		return nil, fmt.Errorf("listing comment ids: %w", err)
	}
	return ids, nil
}
