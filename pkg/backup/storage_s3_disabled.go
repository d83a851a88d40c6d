//go:build !s3
// +build !s3

package backup

import (
	"context"
	"errors"
)

func newS3Storage(ctx context.Context, opts S3Options) (Storage, error) {
	return nil, errors.New("backup.backend s3 requires a build with -tags s3")
}
