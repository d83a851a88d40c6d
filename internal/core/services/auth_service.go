package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	"vidtube/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AuthService issues and verifies the bearer tokens used by the HTTP layer.
type AuthService interface {
	ports.IdentityVerifier
	IssueTokens(actor *domain.Actor) (*ports.TokenPair, error)
	ValidateToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

type Claims struct {
	ActorID   domain.ActorID `json:"actor_id"`
	Username  string         `json:"username,omitempty"`
	Email     string         `json:"email,omitempty"`
	TokenType string         `json:"token_type"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret       []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewAuthService(jwtSecret string, accessTokenTTL, refreshTokenTTL time.Duration) AuthService {
	return &authService{
		jwtSecret:       []byte(jwtSecret),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

func (s *authService) IssueTokens(actor *domain.Actor) (*ports.TokenPair, error) {
	access, err := s.sign(&Claims{
		ActorID:   actor.ID,
		Username:  actor.Username,
		Email:     actor.Email,
		TokenType: tokenTypeAccess,
	}, s.accessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(&Claims{
		ActorID:   actor.ID,
		TokenType: tokenTypeRefresh,
	}, s.refreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &ports.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *authService) sign(claims *Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        utils.NewID(),
		Subject:   string(claims.ActorID),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) parse(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != tokenType || claims.ActorID.IsZero() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, tokenTypeAccess)
}

func (s *authService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, tokenTypeRefresh)
}

// VerifyIdentity accepts an access token, with or without a "Bearer " prefix.
func (s *authService) VerifyIdentity(ctx context.Context, credential string) (domain.ActorID, error) {
	const op = "verify_identity"

	credential = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(credential), "Bearer "))
	if credential == "" {
		return "", domain.Unauthenticated(op, "missing access token")
	}
	claims, err := s.ValidateToken(credential)
	if err != nil {
		return "", &domain.Error{Kind: domain.KindUnauthenticated, Op: op, Message: "invalid access token", Err: err}
	}
	return claims.ActorID, nil
}
