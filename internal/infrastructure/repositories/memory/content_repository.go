package memory

import (
	"context"
	"strings"

	"vidtube/internal/core/domain"
)

type VideoRepository struct {
	s *Store
}

func cloneVideo(v *domain.Video) *domain.Video {
	cp := *v
	return &cp
}

func (r *VideoRepository) Create(ctx context.Context, video *domain.Video) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.videos[video.ID]; exists {
		return domain.Conflict("create_video", "video %s already exists", video.ID)
	}
	r.s.videos[video.ID] = cloneVideo(video)
	return nil
}

func (r *VideoRepository) GetByID(ctx context.Context, id domain.VideoID) (*domain.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	video, exists := r.s.videos[id]
	if !exists {
		return nil, domain.NotFound("get_video", "video %s not found", id)
	}
	return cloneVideo(video), nil
}

func (r *VideoRepository) GetByIDs(ctx context.Context, ids []domain.VideoID) (map[domain.VideoID]*domain.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[domain.VideoID]*domain.Video, len(ids))
	for _, id := range ids {
		if v, ok := r.s.videos[id]; ok {
			out[id] = cloneVideo(v)
		}
	}
	return out, nil
}

func (r *VideoRepository) Update(ctx context.Context, video *domain.Video) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, exists := r.s.videos[video.ID]
	if !exists {
		return domain.NotFound("update_video", "video %s not found", video.ID)
	}
	cp := cloneVideo(video)
	// views only move through IncrementViews
	cp.Views = current.Views
	r.s.videos[video.ID] = cp
	return nil
}

func (r *VideoRepository) Delete(ctx context.Context, id domain.VideoID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.videos[id]; !exists {
		return domain.NotFound("delete_video", "video %s not found", id)
	}
	delete(r.s.videos, id)
	return nil
}

func (r *VideoRepository) List(ctx context.Context, filter domain.VideoFilter, req domain.PageRequest) ([]*domain.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	var matched []*domain.Video
	for _, v := range r.s.videos {
		if filter.PublishedOnly && !v.IsPublished {
			continue
		}
		if !filter.OwnerID.IsZero() && !domain.SameActor(v.OwnerID, filter.OwnerID) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(v.Title), query) &&
			!strings.Contains(strings.ToLower(v.Description), query) {
			continue
		}
		matched = append(matched, cloneVideo(v))
	}

	sortBy(matched, req.Direction, videoOrder(req.SortBy), func(v *domain.Video) string { return string(v.ID) })
	return page(matched, req), nil
}

func videoOrder(key string) func(a, b *domain.Video) int {
	switch key {
	case domain.SortUpdatedAt:
		return func(a, b *domain.Video) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	case domain.SortViews:
		return func(a, b *domain.Video) int { return cmpInt64(a.Views, b.Views) }
	case domain.SortDuration:
		return func(a, b *domain.Video) int { return cmpFloat(a.Duration, b.Duration) }
	case domain.SortTitle:
		return func(a, b *domain.Video) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	}
	return func(a, b *domain.Video) int { return a.CreatedAt.Compare(b.CreatedAt) }
}

func (r *VideoRepository) ListIDsByOwner(ctx context.Context, owner domain.ActorID) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.videoIDsLocked(owner), nil
}

func (s *Store) videoIDsLocked(owner domain.ActorID) []string {
	var ids []string
	for _, v := range s.videos {
		if domain.SameActor(v.OwnerID, owner) {
			ids = append(ids, string(v.ID))
		}
	}
	return ids
}

func (r *VideoRepository) Totals(ctx context.Context, owner domain.ActorID) (domain.ContentTotals, error) {
	if err := ctx.Err(); err != nil {
		return domain.ContentTotals{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.totalsLocked(owner), nil
}

func (s *Store) totalsLocked(owner domain.ActorID) domain.ContentTotals {
	var totals domain.ContentTotals
	for _, v := range s.videos {
		if domain.SameActor(v.OwnerID, owner) {
			totals.Videos++
			totals.Views += v.Views
		}
	}
	return totals
}

func (r *VideoRepository) IncrementViews(ctx context.Context, id domain.VideoID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	video, exists := r.s.videos[id]
	if !exists {
		return domain.NotFound("increment_views", "video %s not found", id)
	}
	video.Views++
	return nil
}

type TweetRepository struct {
	s *Store
}

func cloneTweet(t *domain.Tweet) *domain.Tweet {
	cp := *t
	return &cp
}

func (r *TweetRepository) Create(ctx context.Context, tweet *domain.Tweet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.tweets[tweet.ID]; exists {
		return domain.Conflict("create_tweet", "tweet %s already exists", tweet.ID)
	}
	r.s.tweets[tweet.ID] = cloneTweet(tweet)
	return nil
}

func (r *TweetRepository) GetByID(ctx context.Context, id domain.TweetID) (*domain.Tweet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tweet, exists := r.s.tweets[id]
	if !exists {
		return nil, domain.NotFound("get_tweet", "tweet %s not found", id)
	}
	return cloneTweet(tweet), nil
}

func (r *TweetRepository) Update(ctx context.Context, tweet *domain.Tweet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.tweets[tweet.ID]; !exists {
		return domain.NotFound("update_tweet", "tweet %s not found", tweet.ID)
	}
	r.s.tweets[tweet.ID] = cloneTweet(tweet)
	return nil
}

func (r *TweetRepository) Delete(ctx context.Context, id domain.TweetID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.tweets[id]; !exists {
		return domain.NotFound("delete_tweet", "tweet %s not found", id)
	}
	delete(r.s.tweets, id)
	return nil
}

func (r *TweetRepository) ListByOwner(ctx context.Context, owner domain.ActorID, req domain.PageRequest) ([]*domain.Tweet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.Tweet
	for _, t := range r.s.tweets {
		if domain.SameActor(t.OwnerID, owner) {
			matched = append(matched, cloneTweet(t))
		}
	}
	sortBy(matched, req.Direction,
		func(a, b *domain.Tweet) int { return a.CreatedAt.Compare(b.CreatedAt) },
		func(t *domain.Tweet) string { return string(t.ID) })
	return page(matched, req), nil
}

func (r *TweetRepository) ListIDsByOwner(ctx context.Context, owner domain.ActorID) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.tweetIDsLocked(owner), nil
}

func (s *Store) tweetIDsLocked(owner domain.ActorID) []string {
	var ids []string
	for _, t := range s.tweets {
		if domain.SameActor(t.OwnerID, owner) {
			ids = append(ids, string(t.ID))
		}
	}
	return ids
}

type CommentRepository struct {
	s *Store
}

func cloneComment(c *domain.Comment) *domain.Comment {
	cp := *c
	return &cp
}

func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.comments[comment.ID]; exists {
		return domain.Conflict("create_comment", "comment %s already exists", comment.ID)
	}
	r.s.comments[comment.ID] = cloneComment(comment)
	return nil
}

func (r *CommentRepository) GetByID(ctx context.Context, id domain.CommentID) (*domain.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	comment, exists := r.s.comments[id]
	if !exists {
		return nil, domain.NotFound("get_comment", "comment %s not found", id)
	}
	return cloneComment(comment), nil
}

func (r *CommentRepository) Update(ctx context.Context, comment *domain.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.comments[comment.ID]; !exists {
		return domain.NotFound("update_comment", "comment %s not found", comment.ID)
	}
	r.s.comments[comment.ID] = cloneComment(comment)
	return nil
}

func (r *CommentRepository) Delete(ctx context.Context, id domain.CommentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.comments[id]; !exists {
		return domain.NotFound("delete_comment", "comment %s not found", id)
	}
	delete(r.s.comments, id)
	return nil
}

func (r *CommentRepository) ListByVideo(ctx context.Context, videoID domain.VideoID, req domain.PageRequest) ([]*domain.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.Comment
	for _, c := range r.s.comments {
		if c.VideoID == videoID {
			matched = append(matched, cloneComment(c))
		}
	}
	sortBy(matched, req.Direction,
		func(a, b *domain.Comment) int { return a.CreatedAt.Compare(b.CreatedAt) },
		func(c *domain.Comment) string { return string(c.ID) })
	return page(matched, req), nil
}

func (r *CommentRepository) ListIDsByOwner(ctx context.Context, owner domain.ActorID) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.commentIDsLocked(owner), nil
}

func (s *Store) commentIDsLocked(owner domain.ActorID) []string {
	var ids []string
	for _, c := range s.comments {
		if domain.SameActor(c.OwnerID, owner) {
			ids = append(ids, string(c.ID))
		}
	}
	return ids
}

func (r *CommentRepository) ListIDsByVideo(ctx context.Context, videoID domain.VideoID) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ids []string
	for _, c := range r.s.comments {
		if c.VideoID == videoID {
			ids = append(ids, string(c.ID))
		}
	}
	return ids, nil
}
