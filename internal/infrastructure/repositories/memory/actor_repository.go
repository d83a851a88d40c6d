package memory

import (
	"context"

	"vidtube/internal/core/domain"
	"vidtube/pkg/utils"
)

type ActorRepository struct {
	s *Store
}

func cloneActor(a *domain.Actor) *domain.Actor {
	cp := *a
	cp.WatchHistory = append([]domain.VideoID(nil), a.WatchHistory...)
	return &cp
}

func (r *ActorRepository) Create(ctx context.Context, actor *domain.Actor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.actors[actor.ID]; exists {
		return domain.Conflict("create_actor", "actor %s already exists", actor.ID)
	}
	if _, taken := r.s.byUsername[actor.Username]; taken {
		return domain.Conflict("create_actor", "username %q is taken", actor.Username)
	}
	if _, taken := r.s.byEmail[actor.Email]; taken {
		return domain.Conflict("create_actor", "email %q is already registered", actor.Email)
	}

	r.s.actors[actor.ID] = cloneActor(actor)
	r.s.byUsername[actor.Username] = actor.ID
	r.s.byEmail[actor.Email] = actor.ID
	return nil
}

func (r *ActorRepository) GetByID(ctx context.Context, id domain.ActorID) (*domain.Actor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	actor, exists := r.s.actors[domain.ActorID(id.Canonical())]
	if !exists {
		return nil, domain.NotFound("get_actor", "actor %s not found", id)
	}
	return cloneActor(actor), nil
}

func (r *ActorRepository) GetByUsername(ctx context.Context, username string) (*domain.Actor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, exists := r.s.byUsername[domain.NormalizeUsername(username)]
	if !exists {
		return nil, domain.NotFound("get_actor", "username %q not found", username)
	}
	return cloneActor(r.s.actors[id]), nil
}

func (r *ActorRepository) GetByEmail(ctx context.Context, email string) (*domain.Actor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, exists := r.s.byEmail[email]
	if !exists {
		return nil, domain.NotFound("get_actor", "email %q not found", email)
	}
	return cloneActor(r.s.actors[id]), nil
}

func (r *ActorRepository) Update(ctx context.Context, actor *domain.Actor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, exists := r.s.actors[actor.ID]
	if !exists {
		return domain.NotFound("update_actor", "actor %s not found", actor.ID)
	}
	if actor.Email != current.Email {
		if owner, taken := r.s.byEmail[actor.Email]; taken && owner != actor.ID {
			return domain.Conflict("update_actor", "email %q is already registered", actor.Email)
		}
		delete(r.s.byEmail, current.Email)
		r.s.byEmail[actor.Email] = actor.ID
	}
	if actor.Username != current.Username {
		if owner, taken := r.s.byUsername[actor.Username]; taken && owner != actor.ID {
			return domain.Conflict("update_actor", "username %q is taken", actor.Username)
		}
		delete(r.s.byUsername, current.Username)
		r.s.byUsername[actor.Username] = actor.ID
	}

	updated := cloneActor(current)
	updated.Username = actor.Username
	updated.Email = actor.Email
	updated.FullName = actor.FullName
	updated.Avatar = actor.Avatar
	updated.CoverImage = actor.CoverImage
	updated.UpdatedAt = actor.UpdatedAt
	r.s.actors[actor.ID] = updated
	return nil
}

// mutate applies fn to the stored actor under the write lock.
func (r *ActorRepository) mutate(ctx context.Context, op string, id domain.ActorID, fn func(a *domain.Actor) bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	actor, exists := r.s.actors[domain.ActorID(id.Canonical())]
	if !exists {
		return false, domain.NotFound(op, "actor %s not found", id)
	}
	if !fn(actor) {
		return false, nil
	}
	actor.UpdatedAt = utils.Now()
	return true, nil
}

func (r *ActorRepository) PushHistory(ctx context.Context, id domain.ActorID, videoID domain.VideoID, limit int) error {
	_, err := r.mutate(ctx, "push_history", id, func(a *domain.Actor) bool {
		a.PushHistory(videoID, limit)
		return true
	})
	return err
}

func (r *ActorRepository) SetRefreshToken(ctx context.Context, id domain.ActorID, token string) error {
	_, err := r.mutate(ctx, "set_refresh_token", id, func(a *domain.Actor) bool {
		a.RefreshToken = token
		return true
	})
	return err
}

func (r *ActorRepository) SwapRefreshToken(ctx context.Context, id domain.ActorID, current, next string) (bool, error) {
	return r.mutate(ctx, "swap_refresh_token", id, func(a *domain.Actor) bool {
		if current == "" || a.RefreshToken != current {
			return false
		}
		a.RefreshToken = next
		return true
	})
}

func (r *ActorRepository) SetPasswordHash(ctx context.Context, id domain.ActorID, hash string) error {
	_, err := r.mutate(ctx, "set_password_hash", id, func(a *domain.Actor) bool {
		a.PasswordHash = hash
		return true
	})
	return err
}

func (r *ActorRepository) GetSummaries(ctx context.Context, ids []domain.ActorID) (map[domain.ActorID]domain.ActorSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[domain.ActorID]domain.ActorSummary, len(ids))
	for _, id := range ids {
		if actor, ok := r.s.actors[id]; ok {
			out[id] = actor.Summary()
		}
	}
	return out, nil
}
