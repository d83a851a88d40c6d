package assets

import (
	"context"
	"fmt"

	"vidtube/internal/core/ports"
	"vidtube/pkg/config"

	"go.uber.org/zap"
)

// NewFromConfig builds the configured asset backend wrapped in a
// ResilientStore.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*ResilientStore, error) {
	var (
		backend ports.AssetStore
		err     error
	)

	switch cfg.Assets.Backend {
	case "s3":
		backend, err = newS3Backend(ctx, S3Options{
			Bucket:   cfg.Assets.S3.Bucket,
			Region:   cfg.Assets.S3.Region,
			Endpoint: cfg.Assets.S3.Endpoint,
			Prefix:   cfg.Assets.S3.Prefix,
			BaseURL:  cfg.Assets.S3.BaseURL,
		}, logger)
		if err == nil {
			logger.Infow("using S3 asset store", "bucket", cfg.Assets.S3.Bucket)
		}
	case "file", "":
		backend, err = NewFileStore(cfg.Assets.File.Root, cfg.Assets.File.BaseURL, logger)
		if err == nil {
			logger.Infow("using file asset store", "root", cfg.Assets.File.Root)
		}
	default:
		return nil, fmt.Errorf("unknown asset backend %q", cfg.Assets.Backend)
	}
	if err != nil {
		return nil, err
	}

	return NewResilientStore(backend, ResilienceConfig{
		Name:             "assets-" + cfg.Assets.Backend,
		Timeout:          cfg.Assets.Timeout,
		MaxRetries:       cfg.Assets.MaxRetries,
		FailureThreshold: cfg.Assets.BreakerFailures,
		OpenTimeout:      cfg.Assets.BreakerTimeout,
	}, logger), nil
}
