package assets

import (
	"context"
	"errors"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	"vidtube/pkg/retry"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type ResilienceConfig struct {
	Name             string
	Timeout          time.Duration // per call, retries included
	MaxRetries       int
	FailureThreshold uint32        // consecutive failures before the breaker opens
	OpenTimeout      time.Duration // how long the breaker stays open
}

// ResilientStore guards an AssetStore with a timeout, retries on transient
// failures and a circuit breaker. Errors that reach the caller are typed:
// client mistakes keep their kind, everything else is a DependencyFailure.
type ResilientStore struct {
	next    ports.AssetStore
	breaker *gobreaker.CircuitBreaker[domain.Asset]
	retry   retry.Config
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewResilientStore(next ports.AssetStore, cfg ResilienceConfig, logger *zap.SugaredLogger) *ResilientStore {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a bad request says nothing about the health of the backend
		IsSuccessful: func(err error) bool {
			return err == nil || !retry.Transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("Asset store circuit breaker changed state",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.MaxRetries
	rc.Enabled = cfg.MaxRetries > 0
	rc.Retryable = func(err error) bool {
		return retry.Transient(err) && !breakerRejected(err)
	}

	return &ResilientStore{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[domain.Asset](settings),
		retry:   rc,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

func (s *ResilientStore) Upload(ctx context.Context, localPath string) (domain.Asset, error) {
	const op = "asset_upload"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	asset, err := retry.RetryWithResult(ctx, s.retry, func() (domain.Asset, error) {
		return s.breaker.Execute(func() (domain.Asset, error) {
			return s.next.Upload(ctx, localPath)
		})
	})
	if err != nil {
		s.logger.Warnw("Asset upload failed", "path", localPath, "error", err)
		return domain.Asset{}, domain.DependencyFailure(op, err)
	}
	return asset, nil
}

func (s *ResilientStore) Delete(ctx context.Context, publicID string) error {
	const op = "asset_delete"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := retry.Retry(ctx, s.retry, func() error {
		_, err := s.breaker.Execute(func() (domain.Asset, error) {
			return domain.Asset{}, s.next.Delete(ctx, publicID)
		})
		return err
	})
	return domain.DependencyFailure(op, err)
}

// State reports the breaker state for health checks.
func (s *ResilientStore) State() string {
	return s.breaker.State().String()
}

func (s *ResilientStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func breakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
