package backup

import (
	"context"
	"fmt"
)

type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string // empty for AWS itself
	Prefix   string
}

// NewStorage opens the backup storage named by backend: "file" keeps
// backups in dir, "s3" in a bucket.
func NewStorage(ctx context.Context, backend, dir string, s3opts S3Options) (Storage, error) {
	switch backend {
	case "file", "":
		return NewFileStorage(dir)
	case "s3":
		return newS3Storage(ctx, s3opts)
	default:
		return nil, fmt.Errorf("unknown backup storage %q", backend)
	}
}
