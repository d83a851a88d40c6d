package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	"vidtube/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type toggleService struct {
	repos   ports.Repositories
	guard   *AccessGuard
	events  ports.EventPublisher
	metrics *MetricsService
	logger  *zap.SugaredLogger
}

// NewToggleService builds the only mutator of Like and Subscription edges.
// events and metrics may be nil.
func NewToggleService(
	repos ports.Repositories,
	guard *AccessGuard,
	events ports.EventPublisher,
	metrics *MetricsService,
	logger *zap.SugaredLogger,
) ports.ToggleService {
	return &toggleService{
		repos:   repos,
		guard:   guard,
		events:  events,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *toggleService) ToggleLike(ctx context.Context, actor domain.ActorID, targetID string, kind domain.TargetKind) (*domain.ToggleResult, error) {
	return s.Toggle(ctx, domain.ToggleRequest{
		Kind:       domain.EdgeLike,
		Source:     actor,
		TargetID:   targetID,
		TargetKind: kind,
	})
}

func (s *toggleService) ToggleSubscription(ctx context.Context, subscriber, creator domain.ActorID) (*domain.ToggleResult, error) {
	return s.Toggle(ctx, domain.ToggleRequest{
		Kind:       domain.EdgeSubscription,
		Source:     subscriber,
		TargetID:   string(creator),
		TargetKind: domain.TargetActor,
	})
}

// Toggle removes the requested edge if it exists and creates it otherwise.
// A failed toggle leaves the edge set as it was.
func (s *toggleService) Toggle(ctx context.Context, req domain.ToggleRequest) (*domain.ToggleResult, error) {
	const op = "toggle"

	ctx, span := tracing.TraceToggle(ctx, string(req.Kind), string(req.Source), req.TargetID)
	defer span.End()

	if err := s.guard.RequireAuthenticated(op, req.Source); err != nil {
		return nil, err
	}
	req.Source = domain.ActorID(req.Source.Canonical())
	req.TargetID = strings.TrimSpace(req.TargetID)
	if req.TargetID == "" {
		return nil, domain.InvalidArgument(op, "target id is required")
	}

	switch req.Kind {
	case domain.EdgeSubscription:
		if domain.SameActor(req.Source, domain.ActorID(req.TargetID)) {
			return nil, domain.InvalidOperation(op, "an actor cannot subscribe to their own channel")
		}
		req.TargetKind = domain.TargetActor
	case domain.EdgeLike:
		if !req.TargetKind.Likeable() {
			return nil, domain.InvalidArgument(op, "cannot like a target of kind %q", req.TargetKind)
		}
	default:
		return nil, domain.InvalidArgument(op, "unknown edge kind %q", req.Kind)
	}

	owner, err := visibleTarget(ctx, s.repos, op, req.Source, req.TargetID, req.TargetKind)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	edge := domain.Edge{EdgeKey: req.Key(), CreatedAt: time.Now().UTC()}
	outcome, err := s.repos.Relationships.ToggleEdge(ctx, edge)
	if err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			tracing.RecordError(ctx, err)
			return nil, domain.DependencyFailure(op, err)
		}
		outcome, err = s.retryAsDelete(ctx, op, edge.EdgeKey)
		if err != nil {
			tracing.RecordError(ctx, err)
			return nil, err
		}
	}

	span.SetAttributes(attribute.String("toggle.outcome", string(outcome)))
	if s.metrics != nil {
		s.metrics.RecordToggle(req.Kind, outcome)
	}
	s.publish(ctx, domain.EdgeEvent{
		Applied:     outcome,
		Kind:        req.Kind,
		Source:      req.Source,
		TargetID:    req.TargetID,
		TargetKind:  req.TargetKind,
		TargetOwner: owner,
		At:          edge.CreatedAt,
	})

	result := &domain.ToggleResult{Applied: outcome, Edge: domain.Edge{EdgeKey: edge.EdgeKey}}
	if outcome == domain.ToggleCreated {
		result.Edge.CreatedAt = edge.CreatedAt
	}
	return result, nil
}

// retryAsDelete handles an insert that lost a race: the edge now exists, so
// the toggle resolves to removing it.
func (s *toggleService) retryAsDelete(ctx context.Context, op string, key domain.EdgeKey) (domain.ToggleOutcome, error) {
	if s.metrics != nil {
		s.metrics.RecordToggleConflict(key.Kind)
	}
	s.logger.Debugw("Toggle conflict, retrying as delete",
		"kind", key.Kind,
		"source", key.Source,
		"target_id", key.TargetID,
	)

	removed, err := s.repos.Relationships.DeleteEdge(ctx, key)
	if err != nil {
		return "", &domain.Error{Kind: domain.KindConflict, Op: op, Message: "toggle conflict could not be resolved", Err: err}
	}
	if !removed {
		return "", domain.Conflict(op, "toggle conflict could not be resolved")
	}
	return domain.ToggleRemoved, nil
}

// PurgeTarget drops every edge pointing at a deleted target.
func (s *toggleService) PurgeTarget(ctx context.Context, targetID string, kind domain.TargetKind) error {
	const op = "purge_target"

	ctx, span := tracing.StartSpan(ctx, "toggle.purge_target")
	defer span.End()

	n, err := s.repos.Relationships.PurgeTarget(ctx, targetID, kind)
	if err != nil {
		tracing.RecordError(ctx, err)
		return domain.DependencyFailure(op, err)
	}
	if n > 0 {
		s.logger.Infow("Purged edges of deleted target",
			"target_id", targetID,
			"target_kind", kind,
			"edges", n,
		)
	}
	return nil
}

func (s *toggleService) publish(ctx context.Context, event domain.EdgeEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEdgeEvent(ctx, event); err != nil {
		s.logger.Warnw("Failed to publish edge event",
			"kind", event.Kind,
			"target_id", event.TargetID,
			"error", err,
		)
	}
}
