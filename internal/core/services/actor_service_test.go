package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	"vidtube/internal/core/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type failingActors struct {
	ports.ActorRepository
}

func (failingActors) Create(ctx context.Context, actor *domain.Actor) error {
	return errors.New("constraint failed")
}

func newActorService(f *fixture) (ports.ActorService, services.AuthService) {
	auth := services.NewAuthService("test-secret", time.Minute, time.Hour)
	return services.NewActorService(f.repos, f.guard, plainHasher{}, auth, f.assets, f.metrics, f.logger), auth
}

func registerInput() ports.RegisterInput {
	return ports.RegisterInput{
		Username:   "  ChaiCode ",
		Email:      "Chai@Example.com",
		FullName:   "Chai Code",
		Password:   "secret123",
		AvatarPath: "/tmp/avatar.png",
	}
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, auth := newActorService(f)
	f.assets.On("Upload", mock.Anything, "/tmp/avatar.png").Return(domain.Asset{URL: "https://cdn/a.png", PublicID: "a"}, nil).Once()

	actor, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)
	assert.Equal(t, "chaicode", actor.Username)
	assert.Equal(t, "chai@example.com", actor.Email)
	assert.Equal(t, "hashed:secret123", actor.PasswordHash)

	_, _, err = svc.Login(ctx, "chaicode", "wrong")
	requireKind(t, err, domain.KindUnauthenticated)
	_, _, err = svc.Login(ctx, "nobody", "secret123")
	requireKind(t, err, domain.KindUnauthenticated)

	_, tokens, err := svc.Login(ctx, "CHAI@example.com", "secret123")
	require.NoError(t, err)

	id, err := auth.VerifyIdentity(ctx, "Bearer "+tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, actor.ID, id)

	rotated, err := svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	_, err = svc.Refresh(ctx, tokens.RefreshToken)
	requireKind(t, err, domain.KindUnauthenticated)

	_, err = svc.Refresh(ctx, rotated.AccessToken)
	requireKind(t, err, domain.KindUnauthenticated)

	require.NoError(t, svc.Logout(ctx, actor.ID))
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	requireKind(t, err, domain.KindUnauthenticated)
}

// logoutDuringPush runs logout just before the history write lands, the way
// a Logout request racing a RecordView would commit.
type logoutDuringPush struct {
	ports.ActorRepository
	logout func()
}

func (r logoutDuringPush) PushHistory(ctx context.Context, id domain.ActorID, videoID domain.VideoID, limit int) error {
	r.logout()
	return r.ActorRepository.PushHistory(ctx, id, videoID, limit)
}

func TestRecordView_KeepsConcurrentLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, _ := newActorService(f)
	owner := f.actor(t, "owner")
	viewer := f.actor(t, "viewer")
	video := f.video(t, owner, "v1", true)

	_, tokens, err := svc.Login(ctx, "viewer", "secret")
	require.NoError(t, err)

	base := f.repos.Actors
	f.repos.Actors = logoutDuringPush{
		ActorRepository: base,
		logout:          func() { require.NoError(t, svc.Logout(ctx, viewer.ID)) },
	}
	f.rebuild()

	_, err = f.content.RecordView(ctx, viewer.ID, video.ID)
	require.NoError(t, err)

	stored, err := base.GetByID(ctx, viewer.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)
	assert.Equal(t, []domain.VideoID{video.ID}, stored.WatchHistory)

	_, err = svc.Refresh(ctx, tokens.RefreshToken)
	requireKind(t, err, domain.KindUnauthenticated)
}

func TestRecordView_ConcurrentViewsKeepEveryEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, _ := newActorService(f)
	owner := f.actor(t, "owner")
	viewer := f.actor(t, "viewer")

	ids := make([]domain.VideoID, 8)
	for i := range ids {
		ids[i] = f.video(t, owner, fmt.Sprintf("v%d", i), true).ID
	}
	_, tokens, err := svc.Login(ctx, "viewer", "secret")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id domain.VideoID) {
			defer wg.Done()
			_, err := f.content.RecordView(ctx, viewer.ID, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	stored, err := f.repos.Actors.GetByID(ctx, viewer.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, stored.WatchHistory)
	assert.Equal(t, tokens.RefreshToken, stored.RefreshToken)
}

func TestRegister_Duplicates(t *testing.T) {
	f := newFixture(t)
	f.actor(t, "chaicode")
	svc, _ := newActorService(f)

	_, err := svc.Register(context.Background(), registerInput())
	requireKind(t, err, domain.KindConflict)

	in := registerInput()
	in.Username = "other"
	_, err = svc.Register(context.Background(), in)
	requireKind(t, err, domain.KindConflict)
	f.assets.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestRegister_Invalid(t *testing.T) {
	f := newFixture(t)
	svc, _ := newActorService(f)

	in := registerInput()
	in.Email = "not-an-email"
	_, err := svc.Register(context.Background(), in)
	requireKind(t, err, domain.KindInvalidArgument)

	in = registerInput()
	in.AvatarPath = ""
	_, err = svc.Register(context.Background(), in)
	requireKind(t, err, domain.KindInvalidArgument)
}

func TestRegister_CleansUpAssetsWhenCreateFails(t *testing.T) {
	f := newFixture(t)
	f.repos.Actors = failingActors{f.repos.Actors}
	svc, _ := newActorService(f)

	in := registerInput()
	in.CoverImagePath = "/tmp/cover.png"
	f.assets.On("Upload", mock.Anything, "/tmp/avatar.png").Return(domain.Asset{URL: "https://cdn/a.png", PublicID: "a"}, nil).Once()
	f.assets.On("Upload", mock.Anything, "/tmp/cover.png").Return(domain.Asset{URL: "https://cdn/c.png", PublicID: "c"}, nil).Once()
	f.assets.On("Delete", mock.Anything, "a").Return(nil).Once()
	f.assets.On("Delete", mock.Anything, "c").Return(nil).Once()

	_, err := svc.Register(context.Background(), in)
	requireKind(t, err, domain.KindDependencyFailure)
	f.assets.AssertExpectations(t)
}

func TestChangePasswordAndAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.actor(t, "alice")
	f.actor(t, "bob")
	svc, _ := newActorService(f)

	requireKind(t, svc.ChangePassword(ctx, alice.ID, "wrong", "newsecret"), domain.KindInvalidArgument)
	requireKind(t, svc.ChangePassword(ctx, alice.ID, "secret", "123"), domain.KindInvalidArgument)
	require.NoError(t, svc.ChangePassword(ctx, alice.ID, "secret", "newsecret"))

	_, _, err := svc.Login(ctx, "alice", "newsecret")
	require.NoError(t, err)

	taken := "bob@example.com"
	_, err = svc.UpdateAccount(ctx, alice.ID, ports.UpdateAccountInput{Email: &taken})
	requireKind(t, err, domain.KindConflict)

	name := "Alice Liddell"
	email := "  Alice@Wonderland.io "
	updated, err := svc.UpdateAccount(ctx, alice.ID, ports.UpdateAccountInput{FullName: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "alice@wonderland.io", updated.Email)
	assert.Equal(t, "Alice Liddell", updated.FullName)

	_, err = svc.GetCurrent(ctx, "")
	requireKind(t, err, domain.KindUnauthenticated)
}

func TestUpdateAvatar_ReplacesOldAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.actor(t, "alice")
	svc, _ := newActorService(f)

	f.assets.On("Upload", mock.Anything, "/tmp/new.png").Return(domain.Asset{URL: "https://cdn/new.png", PublicID: "new"}, nil).Once()
	f.assets.On("Delete", mock.Anything, "avatar-alice").Return(nil).Once()

	updated, err := svc.UpdateAvatar(ctx, alice.ID, "/tmp/new.png")
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Avatar.PublicID)
	f.assets.AssertExpectations(t)

	_, err = svc.UpdateCoverImage(ctx, alice.ID, " ")
	requireKind(t, err, domain.KindInvalidArgument)
}
