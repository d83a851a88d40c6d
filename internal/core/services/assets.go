package services

import (
	"context"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"

	"go.uber.org/zap"
)

// assetJanitor removes uploaded assets that ended up unreferenced. Failures
// are logged and counted, never returned.
type assetJanitor struct {
	store   ports.AssetStore
	metrics *MetricsService
	logger  *zap.SugaredLogger
}

func (j assetJanitor) discard(ctx context.Context, reason string, assets ...domain.Asset) {
	for _, a := range assets {
		if a.PublicID == "" {
			continue
		}
		if err := j.store.Delete(ctx, a.PublicID); err != nil {
			if j.metrics != nil {
				j.metrics.RecordAssetCleanupFailure()
			}
			j.logger.Warnw("Failed to delete asset",
				"public_id", a.PublicID,
				"reason", reason,
				"error", err,
			)
		}
	}
}
