package services

import (
	"vidtube/internal/core/domain"
)

// Relation is the requirement an actor must satisfy against a resource.
type Relation int

const (
	IsAuthenticated Relation = iota
	IsOwner
)

func (r Relation) String() string {
	switch r {
	case IsAuthenticated:
		return "is_authenticated"
	case IsOwner:
		return "is_owner"
	}
	return "unknown"
}

// AccessGuard gates every mutation. Ownership is compared only through
// domain.SameActor.
type AccessGuard struct{}

func NewAccessGuard() *AccessGuard {
	return &AccessGuard{}
}

// Authorize fails Unauthenticated for an empty actor and Forbidden when an
// ownership requirement is not met. resource may be nil for IsAuthenticated.
func (g *AccessGuard) Authorize(op string, actor domain.ActorID, resource domain.Owned, rel Relation) error {
	if actor.IsZero() {
		return domain.Unauthenticated(op, "an authenticated actor is required")
	}

	switch rel {
	case IsAuthenticated:
		return nil
	case IsOwner:
		if resource == nil {
			return domain.Forbidden(op, "resource has no owner")
		}
		if !domain.SameActor(resource.Owner(), actor) {
			return domain.Forbidden(op, "actor %s does not own this resource", actor)
		}
		return nil
	}
	return domain.Forbidden(op, "unsupported relation %s", rel)
}

func (g *AccessGuard) RequireAuthenticated(op string, actor domain.ActorID) error {
	return g.Authorize(op, actor, nil, IsAuthenticated)
}

func (g *AccessGuard) RequireOwner(op string, actor domain.ActorID, resource domain.Owned) error {
	return g.Authorize(op, actor, resource, IsOwner)
}
