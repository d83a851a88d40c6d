package services_test

import (
	"context"
	"fmt"
	"testing"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelProfile_Counts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.actor(t, "c-username")

	for i := 0; i < 3; i++ {
		fan := f.actor(t, fmt.Sprintf("fan%d", i))
		_, err := f.toggles.ToggleSubscription(ctx, fan.ID, c.ID)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		creator := f.actor(t, fmt.Sprintf("creator%d", i))
		_, err := f.toggles.ToggleSubscription(ctx, c.ID, creator.ID)
		require.NoError(t, err)
	}

	profile, err := f.agg.ChannelProfile(ctx, "c-username", "")
	require.NoError(t, err)
	assert.Equal(t, c.ID, profile.Actor.ID)
	assert.Equal(t, int64(3), profile.SubscriberCount)
	assert.Equal(t, int64(2), profile.SubscribedCount)
	assert.False(t, profile.IsSubscribed)

	// lookup is case-insensitive and trimmed
	profile, err = f.agg.ChannelProfile(ctx, "  C-Username ", "actor-fan1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), profile.SubscriberCount)
	assert.True(t, profile.IsSubscribed)

	profile, err = f.agg.ChannelProfile(ctx, "c-username", "actor-creator0")
	require.NoError(t, err)
	assert.False(t, profile.IsSubscribed)
}

func TestChannelProfile_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.agg.ChannelProfile(context.Background(), "ghost", "")
	requireKind(t, err, domain.KindNotFound)

	_, err = f.agg.ChannelProfile(context.Background(), "   ", "")
	requireKind(t, err, domain.KindInvalidArgument)
}

func TestPagination_Boundaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.actor(t, "alice")
	video := f.video(t, alice, "v1", true)

	comments, err := f.agg.ListVideoComments(ctx, "", video.ID, firstPage(10))
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)

	subs, err := f.agg.ListChannelSubscribers(ctx, alice.ID, firstPage(10))
	require.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)

	bad := []domain.PageRequest{
		{Page: 0, PageSize: 10},
		{Page: 1, PageSize: 0},
		{Page: -1, PageSize: 10},
		{Page: 1, PageSize: 51},
		{Page: 1, PageSize: 10, SortBy: "password"},
		{Page: 1, PageSize: 10, Direction: "sideways"},
	}
	for _, req := range bad {
		_, err := f.agg.ListVideoComments(ctx, "", video.ID, req)
		requireKind(t, err, domain.KindInvalidArgument)
		_, err = f.agg.ListUserTweets(ctx, alice.ID, req)
		requireKind(t, err, domain.KindInvalidArgument)
	}

	_, err = f.agg.ListVideoComments(ctx, "", "missing", firstPage(10))
	requireKind(t, err, domain.KindNotFound)
	_, err = f.agg.ListUserPlaylists(ctx, "actor-ghost", firstPage(10))
	requireKind(t, err, domain.KindNotFound)
}

func TestListVideos_SortAndPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.actor(t, "alice")
	bob := f.actor(t, "bob")

	for i := 1; i <= 5; i++ {
		f.video(t, alice, fmt.Sprintf("a%d", i), true)
	}
	f.video(t, alice, "hidden", false)
	f.video(t, bob, "b1", true)

	all, err := f.agg.ListVideos(ctx, domain.VideoFilter{}, firstPage(50))
	require.NoError(t, err)
	assert.Len(t, all, 6, "unpublished videos are not listed")
	assert.Equal(t, domain.VideoID("b1"), all[0].ID, "newest first by default")

	page2, err := f.agg.ListVideos(ctx, domain.VideoFilter{OwnerID: alice.ID},
		domain.PageRequest{Page: 2, PageSize: 2, SortBy: domain.SortCreatedAt, Direction: domain.SortAsc})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, domain.VideoID("a3"), page2[0].ID)
	assert.Equal(t, domain.VideoID("a4"), page2[1].ID)

	beyond, err := f.agg.ListVideos(ctx, domain.VideoFilter{OwnerID: alice.ID}, domain.PageRequest{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond)

	found, err := f.agg.ListVideos(ctx, domain.VideoFilter{Query: "VIDEO A2"}, firstPage(10))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, domain.VideoID("a2"), found[0].ID)

	dashboard, err := f.agg.ListChannelVideos(ctx, alice.ID, firstPage(10))
	require.NoError(t, err)
	assert.Len(t, dashboard, 6, "the channel dashboard includes unpublished videos")

	_, err = f.agg.ListVideos(ctx, domain.VideoFilter{OwnerID: "actor-ghost"}, firstPage(10))
	requireKind(t, err, domain.KindNotFound)
}

func TestListSubscriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.actor(t, "alice")
	bob := f.actor(t, "bob")
	carol := f.actor(t, "carol")

	_, err := f.toggles.ToggleSubscription(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.toggles.ToggleSubscription(ctx, carol.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.toggles.ToggleSubscription(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	subscribers, err := f.agg.ListChannelSubscribers(ctx, alice.ID, firstPage(10))
	require.NoError(t, err)
	usernames := []string{}
	for _, s := range subscribers {
		usernames = append(usernames, s.Username)
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, usernames)

	channels, err := f.agg.ListSubscribedChannels(ctx, alice.ID, firstPage(10))
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, carol.ID, channels[0].ID)
}

func TestListLikedVideos_SkipsDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.actor(t, "alice")
	bob := f.actor(t, "bob")
	v1 := f.video(t, bob, "v1", true)
	v2 := f.video(t, bob, "v2", true)

	for _, v := range []*domain.Video{v1, v2} {
		_, err := f.toggles.ToggleLike(ctx, alice.ID, string(v.ID), domain.TargetVideo)
		require.NoError(t, err)
	}
	// an orphaned edge left behind by a raw delete
	require.NoError(t, f.repos.Videos.Delete(ctx, v1.ID))

	liked, err := f.agg.ListLikedVideos(ctx, alice.ID, firstPage(10))
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, v2.ID, liked[0].ID)

	_, err = f.agg.CountLikes(ctx, "", string(v1.ID), domain.TargetVideo)
	requireKind(t, err, domain.KindNotFound)
}

// plainRelationships hides the store's join capabilities so the batched fallback runs.
type plainRelationships struct {
	ports.RelationshipStore
}

func TestChannelStats(t *testing.T) {
	for _, joined := range []bool{true, false} {
		t.Run(fmt.Sprintf("joined=%v", joined), func(t *testing.T) {
			f := newFixture(t)
			if !joined {
				f.repos.Relationships = plainRelationships{f.repos.Relationships}
				f.rebuild()
			}
			ctx := context.Background()
			creator := f.actor(t, "creator")
			fan1 := f.actor(t, "fan1")
			fan2 := f.actor(t, "fan2")

			v1 := f.video(t, creator, "v1", true)
			v2 := f.video(t, creator, "v2", true)
			tw := f.tweet(t, creator, "t1")
			cm := f.comment(t, creator, v1, "c1")
			otherVideo := f.video(t, fan1, "other", true)

			for i := 0; i < 3; i++ {
				_, err := f.content.RecordView(ctx, "", v1.ID)
				require.NoError(t, err)
			}
			_, err := f.content.RecordView(ctx, creator.ID, v2.ID)
			require.NoError(t, err)

			likes := []struct {
				actor *domain.Actor
				id    string
				kind  domain.TargetKind
			}{
				{fan1, string(v1.ID), domain.TargetVideo},
				{fan2, string(v1.ID), domain.TargetVideo},
				{fan1, string(v2.ID), domain.TargetVideo},
				{fan1, string(tw.ID), domain.TargetTweet},
				{fan2, string(cm.ID), domain.TargetComment},
				{creator, string(otherVideo.ID), domain.TargetVideo},
			}
			for _, l := range likes {
				_, err := f.toggles.ToggleLike(ctx, l.actor.ID, l.id, l.kind)
				require.NoError(t, err)
			}
			_, err = f.toggles.ToggleSubscription(ctx, fan1.ID, creator.ID)
			require.NoError(t, err)
			// likes taken while v2 was public still count once it is withdrawn
			_, err = f.content.TogglePublishStatus(ctx, creator.ID, v2.ID)
			require.NoError(t, err)

			stats, err := f.agg.ChannelStats(ctx, creator.ID)
			require.NoError(t, err)
			assert.Equal(t, &domain.ChannelStats{
				CreatorID:         creator.ID,
				TotalViews:        4,
				TotalSubscribers:  1,
				TotalVideos:       2,
				TotalVideoLikes:   3,
				TotalTweetLikes:   1,
				TotalCommentLikes: 1,
			}, stats)

			empty, err := f.agg.ChannelStats(ctx, fan2.ID)
			require.NoError(t, err)
			assert.Zero(t, empty.TotalVideos)
			assert.Zero(t, empty.TotalVideoLikes)

			_, err = f.agg.ChannelStats(ctx, "actor-ghost")
			requireKind(t, err, domain.KindNotFound)
		})
	}
}

func TestWatchHistory(t *testing.T) {
	for _, joined := range []bool{true, false} {
		t.Run(fmt.Sprintf("joined=%v", joined), func(t *testing.T) {
			f := newFixture(t)
			if !joined {
				f.repos.Relationships = plainRelationships{f.repos.Relationships}
				f.rebuild()
			}
			ctx := context.Background()
			viewer := f.actor(t, "viewer")
			bob := f.actor(t, "bob")
			carol := f.actor(t, "carol")
			v1 := f.video(t, bob, "v1", true)
			v2 := f.video(t, carol, "v2", true)
			v3 := f.video(t, bob, "v3", true)

			for _, id := range []domain.VideoID{v1.ID, v2.ID, v3.ID, v1.ID} {
				_, err := f.content.RecordView(ctx, viewer.ID, id)
				require.NoError(t, err)
			}
			require.NoError(t, f.repos.Videos.Delete(ctx, v3.ID))

			history, err := f.agg.WatchHistory(ctx, viewer.ID)
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, v1.ID, history[0].Video.ID, "most recent first")
			assert.Equal(t, "bob", history[0].Creator.Username)
			assert.Equal(t, v2.ID, history[1].Video.ID)
			assert.Equal(t, "carol", history[1].Creator.Username)

			_, err = f.agg.WatchHistory(ctx, "actor-ghost")
			requireKind(t, err, domain.KindNotFound)
		})
	}
}
