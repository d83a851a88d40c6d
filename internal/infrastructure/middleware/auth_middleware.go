package middleware

import (
	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	apperrors "vidtube/pkg/errors"
	"vidtube/pkg/logger"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor_id"

// AuthMiddleware requires a valid bearer token and stores the caller's id.
func AuthMiddleware(verifier ports.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := verifier.VerifyIdentity(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			abortWithAppError(c, apperrors.FromDomain(err))
			return
		}
		setActor(c, actor)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the caller when a valid token is present
// and lets anonymous requests through.
func OptionalAuthMiddleware(verifier ports.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			if actor, err := verifier.VerifyIdentity(c.Request.Context(), header); err == nil {
				setActor(c, actor)
			}
		}
		c.Next()
	}
}

// Actor returns the authenticated caller, or "" for anonymous requests.
func Actor(c *gin.Context) domain.ActorID {
	if v, ok := c.Get(actorKey); ok {
		if id, ok := v.(domain.ActorID); ok {
			return id
		}
	}
	return ""
}

func setActor(c *gin.Context, actor domain.ActorID) {
	c.Set(actorKey, actor)
	c.Request = c.Request.WithContext(logger.WithActorID(c.Request.Context(), string(actor)))
}
