package services_test

import (
	"context"
	"testing"

	"vidtube/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaylist_AddRemoveVideos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.actor(t, "alice")
	v1 := f.video(t, alice, "v1", true)
	v2 := f.video(t, alice, "v2", true)

	pl, err := f.playlist.Create(ctx, alice.ID, "Favourites", "best of")
	require.NoError(t, err)
	assert.Empty(t, pl.Videos)

	_, err = f.playlist.AddVideo(ctx, alice.ID, pl.ID, v2.ID)
	require.NoError(t, err)
	pl, err = f.playlist.AddVideo(ctx, alice.ID, pl.ID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.VideoID{v2.ID, v1.ID}, pl.Videos, "insertion order is kept")

	_, err = f.playlist.AddVideo(ctx, alice.ID, pl.ID, v1.ID)
	requireKind(t, err, domain.KindInvalidOperation)

	_, err = f.playlist.AddVideo(ctx, alice.ID, pl.ID, "missing")
	requireKind(t, err, domain.KindNotFound)

	pl, err = f.playlist.RemoveVideo(ctx, alice.ID, pl.ID, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.VideoID{v1.ID}, pl.Videos)

	_, err = f.playlist.RemoveVideo(ctx, alice.ID, pl.ID, v2.ID)
	requireKind(t, err, domain.KindInvalidOperation)
}

func TestPlaylist_NonOwnerIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.actor(t, "owner")
	intruder := f.actor(t, "intruder")
	v1 := f.video(t, owner, "v1", true)

	pl, err := f.playlist.Create(ctx, owner.ID, "Mine", "")
	require.NoError(t, err)
	pl, err = f.playlist.AddVideo(ctx, owner.ID, pl.ID, v1.ID)
	require.NoError(t, err)

	name := "stolen"
	_, err = f.playlist.Update(ctx, intruder.ID, pl.ID, &name, nil)
	requireKind(t, err, domain.KindForbidden)
	_, err = f.playlist.AddVideo(ctx, intruder.ID, pl.ID, v1.ID)
	requireKind(t, err, domain.KindForbidden)
	_, err = f.playlist.RemoveVideo(ctx, intruder.ID, pl.ID, v1.ID)
	requireKind(t, err, domain.KindForbidden)
	requireKind(t, f.playlist.Delete(ctx, intruder.ID, pl.ID), domain.KindForbidden)

	stored, err := f.playlist.Get(ctx, pl.ID)
	require.NoError(t, err)
	assert.Equal(t, pl, stored)
}

func TestPlaylist_UpdateDeleteAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.actor(t, "alice")

	pl, err := f.playlist.Create(ctx, alice.ID, "Old", "")
	require.NoError(t, err)

	_, err = f.playlist.Create(ctx, alice.ID, " ", "")
	requireKind(t, err, domain.KindInvalidArgument)

	name := "New"
	updated, err := f.playlist.Update(ctx, alice.ID, pl.ID, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)

	_, err = f.playlist.Update(ctx, alice.ID, pl.ID, nil, nil)
	requireKind(t, err, domain.KindInvalidArgument)

	lists, err := f.agg.ListUserPlaylists(ctx, alice.ID, domain.PageRequest{Page: 1, PageSize: 10, SortBy: domain.SortName})
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "New", lists[0].Name)

	require.NoError(t, f.playlist.Delete(ctx, alice.ID, pl.ID))
	_, err = f.playlist.Get(ctx, pl.ID)
	requireKind(t, err, domain.KindNotFound)
}
