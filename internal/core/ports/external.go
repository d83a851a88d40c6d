package ports

import (
	"context"
	"time"

	"vidtube/internal/core/domain"
)

// IdentityVerifier turns a bearer credential into an authenticated actor.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, credential string) (domain.ActorID, error)
}

// AssetStore holds binary files (videos, images) outside the core.
type AssetStore interface {
	Upload(ctx context.Context, localPath string) (domain.Asset, error)
	Delete(ctx context.Context, publicID string) error
}

type CredentialHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type EventPublisher interface {
	PublishEdgeEvent(ctx context.Context, event domain.EdgeEvent) error
}

// MetricsSink receives core counters. The Prometheus collector implements it.
type MetricsSink interface {
	RecordToggle(kind domain.EdgeKind, outcome domain.ToggleOutcome)
	RecordToggleConflict(kind domain.EdgeKind)
	RecordAggregation(op string, d time.Duration)
	RecordAssetCleanupFailure()
}
