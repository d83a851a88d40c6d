package services_test

import (
	"context"
	"testing"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Tokens(t *testing.T) {
	auth := services.NewAuthService("secret", time.Minute, time.Hour)
	actor := &domain.Actor{ID: "actor-1", Username: "alice", Email: "alice@example.com"}

	pair, err := auth.IssueTokens(actor)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, actor.ID, claims.ActorID)
	assert.Equal(t, "alice", claims.Username)

	_, err = auth.ValidateToken(pair.RefreshToken)
	assert.ErrorIs(t, err, services.ErrInvalidToken, "refresh tokens are not access tokens")

	refresh, err := auth.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, actor.ID, refresh.ActorID)

	other := services.NewAuthService("other-secret", time.Minute, time.Hour)
	_, err = other.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}

func TestAuthService_Expired(t *testing.T) {
	auth := services.NewAuthService("secret", -time.Minute, time.Hour)
	pair, err := auth.IssueTokens(&domain.Actor{ID: "actor-1"})
	require.NoError(t, err)

	_, err = auth.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, services.ErrExpiredToken)
}

func TestAuthService_VerifyIdentity(t *testing.T) {
	auth := services.NewAuthService("secret", time.Minute, time.Hour)
	pair, err := auth.IssueTokens(&domain.Actor{ID: "actor-1"})
	require.NoError(t, err)

	id, err := auth.VerifyIdentity(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.ActorID("actor-1"), id)

	for _, credential := range []string{"", "Bearer ", "garbage", "Bearer " + pair.RefreshToken} {
		_, err := auth.VerifyIdentity(context.Background(), credential)
		assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err), "credential %q", credential)
	}
}
