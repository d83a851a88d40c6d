package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, ports.Repositories) {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "vidtube.db"), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, store.Repositories()
}

func seedActor(t *testing.T, repos ports.Repositories, name string) *domain.Actor {
	t.Helper()
	a := &domain.Actor{
		ID:           domain.ActorID("actor-" + name),
		Username:     name,
		Email:        name + "@example.com",
		FullName:     "Full " + name,
		Avatar:       domain.Asset{URL: "https://cdn/" + name, PublicID: "avatar-" + name},
		PasswordHash: "hash",
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
	require.NoError(t, repos.Actors.Create(context.Background(), a))
	return a
}

func seedVideo(t *testing.T, repos ports.Repositories, owner domain.ActorID, id, title string, offset time.Duration) *domain.Video {
	t.Helper()
	v := &domain.Video{
		ID:          domain.VideoID(id),
		OwnerID:     owner,
		VideoFile:   domain.Asset{URL: "https://cdn/" + id, PublicID: "file-" + id},
		Thumbnail:   domain.Asset{URL: "https://cdn/t/" + id, PublicID: "thumb-" + id},
		Title:       title,
		Description: "about " + title,
		Duration:    float64(offset / time.Second),
		IsPublished: true,
		CreatedAt:   epoch.Add(offset),
		UpdatedAt:   epoch.Add(offset),
	}
	require.NoError(t, repos.Videos.Create(context.Background(), v))
	return v
}

func firstPage(size int) domain.PageRequest {
	return domain.PageRequest{Page: 1, PageSize: size, SortBy: domain.SortCreatedAt, Direction: domain.SortDesc}
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vidtube.db")
	logger := zaptest.NewLogger(t).Sugar()

	store, err := NewStore(path, logger)
	require.NoError(t, err)
	seedActor(t, store.Repositories(), "alice")
	require.NoError(t, store.Close())

	reopened, err := NewStore(path, logger)
	require.NoError(t, err)
	defer reopened.Close()

	actor, err := reopened.Repositories().Actors.GetByUsername(context.Background(), "  ALICE ")
	require.NoError(t, err)
	assert.Equal(t, domain.ActorID("actor-alice"), actor.ID)
	assert.Equal(t, epoch, actor.CreatedAt)
}

func TestStore_Snapshot(t *testing.T) {
	store, repos := newTestStore(t)
	seedActor(t, repos, "alice")

	path := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, store.Snapshot(context.Background(), path))
	assert.Error(t, store.Snapshot(context.Background(), path), "existing targets are not overwritten")

	copied, err := NewStore(path, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer copied.Close()

	actor, err := copied.Repositories().Actors.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.ActorID("actor-alice"), actor.ID)
}

func TestActorRepository_Uniqueness(t *testing.T) {
	_, repos := newTestStore(t)
	ctx := context.Background()
	seedActor(t, repos, "alice")

	dup := &domain.Actor{ID: "other", Username: "alice", Email: "x@example.com", PasswordHash: "h", CreatedAt: epoch, UpdatedAt: epoch}
	err := repos.Actors.Create(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrConflict)

	bob := seedActor(t, repos, "bob")
	bob.Email = "alice@example.com"
	assert.ErrorIs(t, repos.Actors.Update(ctx, bob), domain.ErrConflict)

	_, err = repos.Actors.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestActorRepository_WatchHistoryRoundTrip(t *testing.T) {
	_, repos := newTestStore(t)
	ctx := context.Background()
	alice := seedActor(t, repos, "alice")

	for _, v := range []domain.VideoID{"v2", "v1", "v3", "v1"} {
		require.NoError(t, repos.Actors.PushHistory(ctx, alice.ID, v, 3))
	}
	got, err := repos.Actors.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.VideoID{"v1", "v3", "v2"}, got.WatchHistory)

	require.NoError(t, repos.Actors.PushHistory(ctx, alice.ID, "v4", 3))
	got, err = repos.Actors.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.VideoID{"v4", "v1", "v3"}, got.WatchHistory)

	assert.ErrorIs(t, repos.Actors.PushHistory(ctx, "missing", "v1", 3), domain.ErrNotFound)
}

func TestActorRepository_ColumnScopedWrites(t *testing.T) {
	_, repos := newTestStore(t)
	ctx := context.Background()
	alice := seedActor(t, repos, "alice")

	// a profile update from a stale read must not restore old credentials
	stale, err := repos.Actors.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NoError(t, repos.Actors.SetRefreshToken(ctx, alice.ID, "live"))
	require.NoError(t, repos.Actors.SetPasswordHash(ctx, alice.ID, "new-hash"))
	require.NoError(t, repos.Actors.PushHistory(ctx, alice.ID, "v1", 10))

	stale.FullName = "Alice A."
	require.NoError(t, repos.Actors.Update(ctx, stale))

	got, err := repos.Actors.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", got.FullName)
	assert.Equal(t, "live", got.RefreshToken)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Equal(t, []domain.VideoID{"v1"}, got.WatchHistory)

	swapped, err := repos.Actors.SwapRefreshToken(ctx, alice.ID, "stale", "next")
	require.NoError(t, err)
	assert.False(t, swapped)
	swapped, err = repos.Actors.SwapRefreshToken(ctx, alice.ID, "live", "next")
	require.NoError(t, err)
	assert.True(t, swapped)

	require.NoError(t, repos.Actors.SetRefreshToken(ctx, alice.ID, ""))
	swapped, err = repos.Actors.SwapRefreshToken(ctx, alice.ID, "", "revived")
	require.NoError(t, err)
	assert.False(t, swapped)

	assert.ErrorIs(t, repos.Actors.SetRefreshToken(ctx, "missing", "x"), domain.ErrNotFound)
}

func TestRelationshipRepository_ToggleEdge(t *testing.T) {
	_, repos := newTestStore(t)
	ctx := context.Background()
	edge := domain.Edge{EdgeKey: domain.LikeKey("actor-a", "v1", domain.TargetVideo), CreatedAt: epoch}

	outcome, err := repos.Relationships.ToggleEdge(ctx, edge)
	require.NoError(t, err)
	assert.Equal(t, domain.ToggleCreated, outcome)

	has, err := repos.Relationships.HasEdge(ctx, edge.EdgeKey)
	require.NoError(t, err)
	assert.True(t, has)

	outcome, err = repos.Relationships.ToggleEdge(ctx, edge)
	require.NoError(t, err)
	assert.Equal(t, domain.ToggleRemoved, outcome)

	n, err := repos.Relationships.CountByTarget(ctx, domain.EdgeLike, "v1", domain.TargetVideo)
	require.NoError(t, err)
	assert.Zero(t, n)

	deleted, err := repos.Relationships.DeleteEdge(ctx, edge.EdgeKey)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRelationshipRepository_ConcurrentTogglesKeepOneEdgePerKey(t *testing.T) {
	for _, n := range []int{1, 2, 7, 8} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			_, repos := newTestStore(t)
			ctx := context.Background()
			edge := domain.Edge{EdgeKey: domain.SubscriptionKey("actor-a", "actor-b"), CreatedAt: epoch}

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := repos.Relationships.ToggleEdge(ctx, edge)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			count, err := repos.Relationships.CountByTarget(ctx, domain.EdgeSubscription, "actor-b", domain.TargetActor)
			require.NoError(t, err)
			assert.Equal(t, int64(n%2), count)
		})
	}
}

func TestRelationshipRepository_CountsAndListings(t *testing.T) {
	_, repos := newTestStore(t)
	ctx := context.Background()
	rel := repos.Relationships

	for i, src := range []domain.ActorID{"actor-a", "actor-b", "actor-c"} {
		_, err := rel.ToggleEdge(ctx, domain.Edge{EdgeKey: domain.SubscriptionKey(src, "actor-z"), CreatedAt: epoch.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	for _, tgt := range []domain.ActorID{"actor-x", "actor-y"} {
		_, err := rel.ToggleEdge(ctx, domain.Edge{EdgeKey: domain.SubscriptionKey("actor-z", tgt), CreatedAt: epoch})
		require.NoError(t, err)
	}

	counts, err := rel.SubscriptionCounts(ctx, "actor-z")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCounts{Subscribers: 3, Subscribed: 2}, counts)

	subs, err := rel.ListSubscribers(ctx, "actor-z", domain.PageRequest{Page: 1, PageSize: 2, Direction: domain.SortDesc})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, domain.ActorID("actor-c"), subs[0].Source)
	assert.Equal(t, domain.ActorID("actor-b"), subs[1].Source)

	beyond, err := rel.ListSubscribers(ctx, "actor-z", domain.PageRequest{Page: 5, PageSize: 2, Direction: domain.SortDesc})
	require.NoError(t, err)
	assert.NotNil(t, beyond)
	assert.Empty(t, beyond)

	for _, id := range []string{"v1", "v2", "v3"} {
		_, err := rel.ToggleEdge(ctx, domain.Edge{EdgeKey: domain.LikeKey("actor-a", id, domain.TargetVideo), CreatedAt: epoch})
		require.NoError(t, err)
	}
	_, err = rel.ToggleEdge(ctx, domain.Edge{EdgeKey: domain.LikeKey("actor-b", "v1", domain.TargetVideo), CreatedAt: epoch})
	require.NoError(t, err)

	likes, err := rel.CountLikesOnTargets(ctx, domain.TargetVideo, []string{"v1", "v2", "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), likes)

	none, err := rel.CountLikesOnTargets(ctx, domain.TargetVideo, nil)
	require.NoError(t, err)
	assert.Zero(t, none)

	liked, err := rel.ListLiked(ctx, "actor-a", domain.TargetVideo, firstPage(10))
	require.NoError(t, err)
	assert.Len(t, liked, 3)

	purged, err := rel.PurgeTarget(ctx, "v1", domain.TargetVideo)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)
}

func TestRelationshipRepository_PurgeTargetUsesTargetIndex(t *testing.T) {
	store, repos := newTestStore(t)
	ctx := context.Background()

	rows, err := store.db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+purgeTargetQuery, purgeTargetArgs("v1", domain.TargetVideo)...)
	require.NoError(t, err)
	defer rows.Close()

	var details []string
	for rows.Next() {
		var id, parent, notUsed int
		var detail string
		require.NoError(t, rows.Scan(&id, &parent, &notUsed, &detail))
		details = append(details, detail)
	}
	require.NoError(t, rows.Err())
	plan := strings.Join(details, "\n")
	assert.Contains(t, plan, "idx_edges_target")
	assert.NotContains(t, plan, "SCAN edges")

	rel := repos.Relationships
	_, err = rel.ToggleEdge(ctx, domain.Edge{EdgeKey: domain.SubscriptionKey("actor-a", "actor-b"), CreatedAt: epoch})
	require.NoError(t, err)
	_, err = rel.ToggleEdge(ctx, domain.Edge{EdgeKey: domain.LikeKey("actor-a", "actor-b", domain.TargetTweet), CreatedAt: epoch})
	require.NoError(t, err)

	purged, err := rel.PurgeTarget(ctx, "actor-b", domain.TargetActor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	left, err := rel.CountByTarget(ctx, domain.EdgeLike, "actor-b", domain.TargetTweet)
	require.NoError(t, err)
	assert.Equal(t, int64(1), left)
}

func TestVideoRepository_ListFiltersAndSorts(t *testing.T) {
	_, repos := newTestStore(t)
	ctx := context.Background()
	alice := seedActor(t, repos, "alice")
	bob := seedActor(t, repos, "bob")

	seedVideo(t, repos, alice.ID, "v1", "Go Concurrency", time.Minute)
	seedVideo(t, repos, alice.ID, "v2", "Cooking 100%", 2*time.Minute)
	hidden := seedVideo(t, repos, bob.ID, "v3", "go tooling", 3*time.Minute)
	hidden.IsPublished = false
	require.NoError(t, repos.Videos.Update(ctx, hidden))

	published, err := repos.Videos.List(ctx, domain.VideoFilter{PublishedOnly: true}, firstPage(10))
	require.NoError(t, err)
	require.Len(t, published, 2)
	assert.Equal(t, domain.VideoID("v2"), published[0].ID)

	matches, err := repos.Videos.List(ctx, domain.VideoFilter{Query: "GO"}, firstPage(10))
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	literal, err := repos.Videos.List(ctx, domain.VideoFilter{Query: "100%"}, firstPage(10))
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, domain.VideoID("v2"), literal[0].ID)

	byTitle, err := repos.Videos.List(ctx, domain.VideoFilter{OwnerID: alice.ID},
		domain.PageRequest{Page: 1, PageSize: 10, SortBy: domain.SortTitle, Direction: domain.SortAsc})
	require.NoError(t, err)
	require.Len(t, byTitle, 2)
	assert.Equal(t, domain.VideoID("v2"), byTitle[0].ID)

	require.NoError(t, repos.Videos.IncrementViews(ctx, "v1"))
	require.NoError(t, repos.Videos.IncrementViews(ctx, "v1"))
	totals, err := repos.Videos.Totals(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentTotals{Videos: 2, Views: 2}, totals)

	assert.ErrorIs(t, repos.Videos.IncrementViews(ctx, "gone"), domain.ErrNotFound)
}

func TestVideoRepository_UpdateKeepsViews(t *testing.T) {
	_, repos := newTestStore(t)
	ctx := context.Background()
	alice := seedActor(t, repos, "alice")
	v := seedVideo(t, repos, alice.ID, "v1", "title", time.Minute)

	require.NoError(t, repos.Videos.IncrementViews(ctx, v.ID))
	v.Title = "renamed"
	v.Views = 0
	require.NoError(t, repos.Videos.Update(ctx, v))

	got, err := repos.Videos.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, int64(1), got.Views)
}

func TestPlaylistRepository_AddRemoveVideo(t *testing.T) {
	_, repos := newTestStore(t)
	ctx := context.Background()
	p := &domain.Playlist{ID: "p1", OwnerID: "actor-a", Name: "mix", CreatedAt: epoch, UpdatedAt: epoch}
	require.NoError(t, repos.Playlists.Create(ctx, p))

	got, err := repos.Playlists.AddVideo(ctx, p.ID, "v2")
	require.NoError(t, err)
	got, err = repos.Playlists.AddVideo(ctx, p.ID, "v1")
	require.NoError(t, err)
	assert.Equal(t, []domain.VideoID{"v2", "v1"}, got.Videos)

	_, err = repos.Playlists.AddVideo(ctx, p.ID, "v2")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	got, err = repos.Playlists.RemoveVideo(ctx, p.ID, "v2")
	require.NoError(t, err)
	assert.Equal(t, []domain.VideoID{"v1"}, got.Videos)

	_, err = repos.Playlists.RemoveVideo(ctx, p.ID, "v2")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = repos.Playlists.AddVideo(ctx, "missing", "v1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	listed, err := repos.Playlists.ListByOwner(ctx, "actor-a", firstPage(10))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, []domain.VideoID{"v1"}, listed[0].Videos)
}

func TestPlaylistRepository_PurgeVideo(t *testing.T) {
	_, repos := newTestStore(t)
	ctx := context.Background()
	for _, id := range []domain.PlaylistID{"p1", "p2", "p3"} {
		require.NoError(t, repos.Playlists.Create(ctx, &domain.Playlist{ID: id, OwnerID: "actor-a", Name: string(id), CreatedAt: epoch, UpdatedAt: epoch}))
	}
	for _, add := range []struct {
		playlist domain.PlaylistID
		video    domain.VideoID
	}{{"p1", "v1"}, {"p1", "v2"}, {"p2", "v1"}, {"p3", "v2"}} {
		_, err := repos.Playlists.AddVideo(ctx, add.playlist, add.video)
		require.NoError(t, err)
	}

	n, err := repos.Playlists.PurgeVideo(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	p1, err := repos.Playlists.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []domain.VideoID{"v2"}, p1.Videos)
	p2, err := repos.Playlists.GetByID(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, p2.Videos)

	n, err = repos.Playlists.PurgeVideo(ctx, "v1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelationshipRepository_ChannelStats(t *testing.T) {
	_, repos := newTestStore(t)
	ctx := context.Background()
	rel := repos.Relationships.(*RelationshipRepository)

	alice := seedActor(t, repos, "alice")
	seedActor(t, repos, "bob")
	seedVideo(t, repos, alice.ID, "v1", "one", time.Minute)
	seedVideo(t, repos, alice.ID, "v2", "two", 2*time.Minute)
	require.NoError(t, repos.Videos.IncrementViews(ctx, "v1"))
	require.NoError(t, repos.Tweets.Create(ctx, &domain.Tweet{ID: "t1", OwnerID: alice.ID, Content: "hi", CreatedAt: epoch, UpdatedAt: epoch}))
	require.NoError(t, repos.Comments.Create(ctx, &domain.Comment{ID: "c1", OwnerID: alice.ID, VideoID: "v1", Content: "c", CreatedAt: epoch, UpdatedAt: epoch}))

	toggle := func(key domain.EdgeKey) {
		_, err := rel.ToggleEdge(ctx, domain.Edge{EdgeKey: key, CreatedAt: epoch})
		require.NoError(t, err)
	}
	toggle(domain.LikeKey("actor-bob", "v1", domain.TargetVideo))
	toggle(domain.LikeKey("actor-alice", "v1", domain.TargetVideo))
	toggle(domain.LikeKey("actor-bob", "v2", domain.TargetVideo))
	toggle(domain.LikeKey("actor-bob", "t1", domain.TargetTweet))
	toggle(domain.LikeKey("actor-bob", "c1", domain.TargetComment))
	toggle(domain.SubscriptionKey("actor-bob", alice.ID))

	stats, err := rel.ChannelStats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, &domain.ChannelStats{
		CreatorID:         alice.ID,
		TotalViews:        1,
		TotalSubscribers:  1,
		TotalVideos:       2,
		TotalVideoLikes:   3,
		TotalTweetLikes:   1,
		TotalCommentLikes: 1,
	}, stats)
}

func TestRelationshipRepository_WatchHistorySkipsDeletedVideos(t *testing.T) {
	_, repos := newTestStore(t)
	ctx := context.Background()
	rel := repos.Relationships.(*RelationshipRepository)

	alice := seedActor(t, repos, "alice")
	bob := seedActor(t, repos, "bob")
	seedVideo(t, repos, bob.ID, "v1", "one", time.Minute)
	seedVideo(t, repos, bob.ID, "v2", "two", 2*time.Minute)

	require.NoError(t, repos.Actors.PushHistory(ctx, alice.ID, "v1", 10))
	require.NoError(t, repos.Actors.PushHistory(ctx, alice.ID, "v2", 10))
	require.NoError(t, repos.Videos.Delete(ctx, "v2"))

	history, err := rel.WatchHistory(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.VideoID("v1"), history[0].Video.ID)
	assert.Equal(t, "bob", history[0].Creator.Username)
	assert.Equal(t, bob.ID, history[0].Creator.ID)

	_, err = rel.WatchHistory(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
