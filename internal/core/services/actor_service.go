package services

import (
	"context"
	"errors"
	"strings"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	"vidtube/pkg/utils"
	"vidtube/pkg/validation"

	"go.uber.org/zap"
)

type actorService struct {
	repos   ports.Repositories
	guard   *AccessGuard
	hasher  ports.CredentialHasher
	auth    AuthService
	assets  ports.AssetStore
	janitor assetJanitor
	logger  *zap.SugaredLogger
}

func NewActorService(
	repos ports.Repositories,
	guard *AccessGuard,
	hasher ports.CredentialHasher,
	auth AuthService,
	assets ports.AssetStore,
	metrics *MetricsService,
	logger *zap.SugaredLogger,
) ports.ActorService {
	return &actorService{
		repos:   repos,
		guard:   guard,
		hasher:  hasher,
		auth:    auth,
		assets:  assets,
		janitor: assetJanitor{store: assets, metrics: metrics, logger: logger},
		logger:  logger,
	}
}

// Register creates an account. The avatar is required and the cover image
// optional; uploads are rolled back when the account cannot be stored.
func (s *actorService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Actor, error) {
	const op = "register"

	in.Username = domain.NormalizeUsername(in.Username)
	in.Email = utils.NormalizeEmail(in.Email)
	in.FullName = utils.SanitizeString(in.FullName)
	if err := validation.Struct(in); err != nil {
		return nil, domain.InvalidArgument(op, "%s", err.Error())
	}

	if err := s.ensureAvailable(ctx, op, in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}

	avatar, err := s.assets.Upload(ctx, in.AvatarPath)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	var cover domain.Asset
	if in.CoverImagePath != "" {
		cover, err = s.assets.Upload(ctx, in.CoverImagePath)
		if err != nil {
			s.janitor.discard(ctx, op, avatar)
			return nil, domain.DependencyFailure(op, err)
		}
	}

	now := utils.Now()
	actor := &domain.Actor{
		ID:           domain.ActorID(utils.NewID()),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		Avatar:       avatar,
		CoverImage:   cover,
		PasswordHash: hash,
		WatchHistory: []domain.VideoID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repos.Actors.Create(ctx, actor); err != nil {
		s.janitor.discard(ctx, op, avatar, cover)
		return nil, domain.DependencyFailure(op, err)
	}

	s.logger.Infow("Actor registered", "actor_id", actor.ID, "username", actor.Username)
	return actor, nil
}

func (s *actorService) ensureAvailable(ctx context.Context, op, username, email string) error {
	if _, err := s.repos.Actors.GetByUsername(ctx, username); err == nil {
		return domain.Conflict(op, "username %q is taken", username)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.DependencyFailure(op, err)
	}
	if _, err := s.repos.Actors.GetByEmail(ctx, email); err == nil {
		return domain.Conflict(op, "email %q is already registered", email)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.DependencyFailure(op, err)
	}
	return nil
}

// Login accepts either a username or an email. Unknown accounts and wrong
// passwords fail the same way.
func (s *actorService) Login(ctx context.Context, login, password string) (*domain.Actor, *ports.TokenPair, error) {
	const op = "login"

	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, nil, domain.InvalidArgument(op, "username or email and password are required")
	}

	var (
		actor *domain.Actor
		err   error
	)
	if strings.Contains(login, "@") {
		actor, err = s.repos.Actors.GetByEmail(ctx, utils.NormalizeEmail(login))
	} else {
		actor, err = s.repos.Actors.GetByUsername(ctx, domain.NormalizeUsername(login))
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Infow("login rejected", "login", utils.MaskSensitive(login, 3), "reason", "unknown")
			return nil, nil, domain.Unauthenticated(op, "invalid credentials")
		}
		return nil, nil, domain.DependencyFailure(op, err)
	}
	if err := s.hasher.Compare(actor.PasswordHash, password); err != nil {
		s.logger.Infow("login rejected", "actor_id", actor.ID, "reason", "password")
		return nil, nil, domain.Unauthenticated(op, "invalid credentials")
	}

	tokens, err := s.auth.IssueTokens(actor)
	if err != nil {
		return nil, nil, domain.DependencyFailure(op, err)
	}
	if err := s.repos.Actors.SetRefreshToken(ctx, actor.ID, tokens.RefreshToken); err != nil {
		return nil, nil, domain.DependencyFailure(op, err)
	}
	actor.RefreshToken = tokens.RefreshToken
	return actor, tokens, nil
}

// Refresh exchanges the live refresh token for a new pair. A token that was
// already rotated away or revoked fails Unauthenticated, including when a
// concurrent refresh or logout wins the race.
func (s *actorService) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	const op = "refresh"

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, domain.Unauthenticated(op, "refresh token is required")
	}
	claims, err := s.auth.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindUnauthenticated, Op: op, Message: "invalid refresh token", Err: err}
	}

	actor, err := s.repos.Actors.GetByID(ctx, claims.ActorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Unauthenticated(op, "invalid refresh token")
		}
		return nil, domain.DependencyFailure(op, err)
	}

	tokens, err := s.auth.IssueTokens(actor)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	swapped, err := s.repos.Actors.SwapRefreshToken(ctx, actor.ID, refreshToken, tokens.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Unauthenticated(op, "invalid refresh token")
		}
		return nil, domain.DependencyFailure(op, err)
	}
	if !swapped {
		return nil, domain.Unauthenticated(op, "refresh token is expired or used")
	}
	return tokens, nil
}

func (s *actorService) Logout(ctx context.Context, actorID domain.ActorID) error {
	const op = "logout"

	if err := s.guard.RequireAuthenticated(op, actorID); err != nil {
		return err
	}
	if err := s.repos.Actors.SetRefreshToken(ctx, actorID, ""); err != nil {
		return lookupError(op, err, "actor %s not found", actorID)
	}
	return nil
}

func (s *actorService) ChangePassword(ctx context.Context, actorID domain.ActorID, oldPassword, newPassword string) error {
	const op = "change_password"

	actor, err := s.current(ctx, op, actorID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(actor.PasswordHash, oldPassword); err != nil {
		return domain.InvalidArgument(op, "invalid old password")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return domain.InvalidArgument(op, "%s", err.Error())
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return domain.DependencyFailure(op, err)
	}
	if err := s.repos.Actors.SetPasswordHash(ctx, actor.ID, hash); err != nil {
		return lookupError(op, err, "actor %s not found", actorID)
	}
	return nil
}

func (s *actorService) GetCurrent(ctx context.Context, actorID domain.ActorID) (*domain.Actor, error) {
	return s.current(ctx, "get_current_actor", actorID)
}

func (s *actorService) current(ctx context.Context, op string, actorID domain.ActorID) (*domain.Actor, error) {
	if err := s.guard.RequireAuthenticated(op, actorID); err != nil {
		return nil, err
	}
	actor, err := s.repos.Actors.GetByID(ctx, actorID)
	if err != nil {
		return nil, lookupError(op, err, "actor %s not found", actorID)
	}
	return actor, nil
}

func (s *actorService) UpdateAccount(ctx context.Context, actorID domain.ActorID, in ports.UpdateAccountInput) (*domain.Actor, error) {
	const op = "update_account"

	actor, err := s.current(ctx, op, actorID)
	if err != nil {
		return nil, err
	}
	if in.FullName == nil && in.Email == nil {
		return nil, domain.InvalidArgument(op, "nothing to update")
	}
	if in.FullName != nil {
		name := utils.SanitizeString(*in.FullName)
		in.FullName = &name
	}
	if in.Email != nil {
		email := utils.NormalizeEmail(*in.Email)
		in.Email = &email
	}
	if err := validation.Struct(in); err != nil {
		return nil, domain.InvalidArgument(op, "%s", err.Error())
	}

	if in.Email != nil && *in.Email != actor.Email {
		if _, err := s.repos.Actors.GetByEmail(ctx, *in.Email); err == nil {
			return nil, domain.Conflict(op, "email %q is already registered", *in.Email)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, domain.DependencyFailure(op, err)
		}
		actor.Email = *in.Email
	}
	if in.FullName != nil {
		actor.FullName = *in.FullName
	}
	actor.UpdatedAt = utils.Now()
	if err := s.repos.Actors.Update(ctx, actor); err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	return actor, nil
}

func (s *actorService) UpdateAvatar(ctx context.Context, actorID domain.ActorID, localPath string) (*domain.Actor, error) {
	return s.replaceImage(ctx, "update_avatar", actorID, localPath, func(a *domain.Actor) *domain.Asset { return &a.Avatar })
}

func (s *actorService) UpdateCoverImage(ctx context.Context, actorID domain.ActorID, localPath string) (*domain.Actor, error) {
	return s.replaceImage(ctx, "update_cover_image", actorID, localPath, func(a *domain.Actor) *domain.Asset { return &a.CoverImage })
}

// replaceImage uploads a new profile image and drops the old one once the
// actor record points at the new file.
func (s *actorService) replaceImage(ctx context.Context, op string, actorID domain.ActorID, localPath string, field func(*domain.Actor) *domain.Asset) (*domain.Actor, error) {
	actor, err := s.current(ctx, op, actorID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(localPath) == "" {
		return nil, domain.InvalidArgument(op, "image file is required")
	}

	uploaded, err := s.assets.Upload(ctx, localPath)
	if err != nil {
		return nil, domain.DependencyFailure(op, err)
	}
	slot := field(actor)
	previous := *slot
	*slot = uploaded
	actor.UpdatedAt = utils.Now()

	if err := s.repos.Actors.Update(ctx, actor); err != nil {
		s.janitor.discard(ctx, op, uploaded)
		return nil, domain.DependencyFailure(op, err)
	}
	s.janitor.discard(ctx, "replaced image", previous)
	return actor, nil
}
