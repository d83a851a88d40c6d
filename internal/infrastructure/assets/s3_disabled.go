//go:build !s3
// +build !s3

package assets

import (
	"context"
	"errors"

	"vidtube/internal/core/ports"

	"go.uber.org/zap"
)

type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
	BaseURL  string
}

func newS3Backend(ctx context.Context, opts S3Options, logger *zap.SugaredLogger) (ports.AssetStore, error) {
	return nil, errors.New("assets.backend s3 requires a build with -tags s3")
}
