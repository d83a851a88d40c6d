package services_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	"vidtube/internal/core/services"
	"vidtube/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type MockAssetStore struct {
	mock.Mock
}

func (m *MockAssetStore) Upload(ctx context.Context, localPath string) (domain.Asset, error) {
	args := m.Called(ctx, localPath)
	return args.Get(0).(domain.Asset), args.Error(1)
}

func (m *MockAssetStore) Delete(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishEdgeEvent(ctx context.Context, event domain.EdgeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// plainHasher stands in for bcrypt so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return fmt.Errorf("password mismatch")
	}
	return nil
}

type fixture struct {
	store   *memory.Store
	repos   ports.Repositories
	guard   *services.AccessGuard
	metrics *services.MetricsService
	events  *MockEventPublisher
	assets  *MockAssetStore
	logger  *zap.SugaredLogger

	toggles  ports.ToggleService
	agg      ports.AggregationService
	content  ports.ContentService
	playlist ports.PlaylistService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:   store,
		repos:   store.Repositories(),
		guard:   services.NewAccessGuard(),
		metrics: services.NewMetricsService(),
		events:  &MockEventPublisher{},
		assets:  &MockAssetStore{},
		logger:  zaptest.NewLogger(t).Sugar(),
	}
	f.events.On("PublishEdgeEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.rebuild()
	return f
}

// rebuild wires the services again after f.repos was swapped.
func (f *fixture) rebuild() {
	f.toggles = services.NewToggleService(f.repos, f.guard, f.events, f.metrics, f.logger)
	f.agg = services.NewAggregationService(f.repos, 50, f.metrics, f.logger)
	f.content = services.NewContentService(f.repos, f.toggles, f.guard, f.assets, 10, f.metrics, f.logger)
	f.playlist = services.NewPlaylistService(f.repos, f.guard, f.logger)
}

var seedClock = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func (f *fixture) actor(t *testing.T, username string) *domain.Actor {
	t.Helper()
	a := &domain.Actor{
		ID:           domain.ActorID("actor-" + strings.ToLower(username)),
		Username:     strings.ToLower(username),
		Email:        strings.ToLower(username) + "@example.com",
		FullName:     username,
		Avatar:       domain.Asset{URL: "https://cdn.example.com/" + username + ".png", PublicID: "avatar-" + username},
		PasswordHash: "hashed:secret",
		WatchHistory: []domain.VideoID{},
		CreatedAt:    seedClock,
		UpdatedAt:    seedClock,
	}
	require.NoError(t, f.repos.Actors.Create(context.Background(), a))
	return a
}

func (f *fixture) video(t *testing.T, owner *domain.Actor, id string, published bool) *domain.Video {
	t.Helper()
	seedClock = seedClock.Add(time.Minute)
	v := &domain.Video{
		ID:          domain.VideoID(id),
		OwnerID:     owner.ID,
		VideoFile:   domain.Asset{URL: "https://cdn.example.com/" + id + ".mp4", PublicID: "file-" + id},
		Thumbnail:   domain.Asset{URL: "https://cdn.example.com/" + id + ".jpg", PublicID: "thumb-" + id},
		Title:       "Video " + id,
		Description: "about " + id,
		Duration:    60,
		IsPublished: published,
		CreatedAt:   seedClock,
		UpdatedAt:   seedClock,
	}
	require.NoError(t, f.repos.Videos.Create(context.Background(), v))
	return v
}

func (f *fixture) tweet(t *testing.T, owner *domain.Actor, id string) *domain.Tweet {
	t.Helper()
	seedClock = seedClock.Add(time.Minute)
	tw := &domain.Tweet{ID: domain.TweetID(id), OwnerID: owner.ID, Content: "tweet " + id, CreatedAt: seedClock, UpdatedAt: seedClock}
	require.NoError(t, f.repos.Tweets.Create(context.Background(), tw))
	return tw
}

func (f *fixture) comment(t *testing.T, owner *domain.Actor, video *domain.Video, id string) *domain.Comment {
	t.Helper()
	seedClock = seedClock.Add(time.Minute)
	c := &domain.Comment{ID: domain.CommentID(id), OwnerID: owner.ID, VideoID: video.ID, Content: "comment " + id, CreatedAt: seedClock, UpdatedAt: seedClock}
	require.NoError(t, f.repos.Comments.Create(context.Background(), c))
	return c
}

func firstPage(size int) domain.PageRequest {
	return domain.PageRequest{Page: 1, PageSize: size}
}

func requireKind(t *testing.T, err error, kind domain.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, domain.KindOf(err), "unexpected error: %v", err)
}
