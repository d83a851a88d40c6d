package services_test

import (
	"testing"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/services"

	"github.com/stretchr/testify/assert"
)

func TestAccessGuard_Authorize(t *testing.T) {
	guard := services.NewAccessGuard()
	video := &domain.Video{ID: "v1", OwnerID: "actor-1"}

	tests := []struct {
		name     string
		actor    domain.ActorID
		resource domain.Owned
		rel      services.Relation
		want     domain.Kind
	}{
		{"authenticated", "actor-2", nil, services.IsAuthenticated, ""},
		{"anonymous", "", nil, services.IsAuthenticated, domain.KindUnauthenticated},
		{"owner", "actor-1", video, services.IsOwner, ""},
		{"owner with padding", " actor-1 ", video, services.IsOwner, ""},
		{"non-owner", "actor-2", video, services.IsOwner, domain.KindForbidden},
		{"anonymous owner check", "", video, services.IsOwner, domain.KindUnauthenticated},
		{"owner check without resource", "actor-1", nil, services.IsOwner, domain.KindForbidden},
		{"unowned resource", "actor-1", &domain.Tweet{ID: "t1"}, services.IsOwner, domain.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Authorize("test", tt.actor, tt.resource, tt.rel)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, domain.KindOf(err))
		})
	}
}
