//go:build s3
// +build s3

package assets

import (
	"context"
	"fmt"
	"strings"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Store keeps assets in an S3 bucket (or any S3-compatible endpoint).
type S3Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	baseURL string
	logger  *zap.SugaredLogger
}

type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string // empty for AWS itself
	Prefix   string
	BaseURL  string // public URL the bucket is served from
}

// NewS3Store loads AWS credentials from the environment and builds a store
// for opts.Bucket.
func NewS3Store(ctx context.Context, opts S3Options, logger *zap.SugaredLogger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}

	return &S3Store{
		client:  client,
		bucket:  opts.Bucket,
		prefix:  strings.Trim(opts.Prefix, "/"),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

// key returns the full S3 key for a public id
func (s *S3Store) key(publicID string) string {
	if s.prefix == "" {
		return publicID
	}
	return s.prefix + "/" + publicID
}

func (s *S3Store) Upload(ctx context.Context, localPath string) (domain.Asset, error) {
	src, err := openLocal("asset_upload", localPath)
	if err != nil {
		return domain.Asset{}, err
	}
	defer src.Close()

	publicID := newPublicID(localPath)
	key := s.key(publicID)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   src,
	})
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to upload to S3: %w", err)
	}

	s.logger.Debugw("Asset uploaded to S3", "bucket", s.bucket, "key", key)
	return domain.Asset{URL: s.baseURL + "/" + key, PublicID: publicID}, nil
}

// Delete removes an object; S3 reports success for keys that do not exist.
func (s *S3Store) Delete(ctx context.Context, publicID string) error {
	if err := validPublicID(publicID); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(publicID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func newS3Backend(ctx context.Context, opts S3Options, logger *zap.SugaredLogger) (ports.AssetStore, error) {
	return NewS3Store(ctx, opts, logger)
}
