// Package storage uploads generated artifacts to object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nexthr/linerelay/internal/config"
)

// Uploader stores a byte payload under a key and returns the stored key.
type Uploader interface {
	Upload(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

// S3Uploader writes objects to a single configured bucket. Credentials
// come from the default AWS chain (instance role in production).
type S3Uploader struct {
	logger *slog.Logger
	client *s3.Client
	bucket string
}

func NewS3Uploader(ctx context.Context, log *slog.Logger, cfg config.StorageConfig) (*S3Uploader, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is not configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Uploader{
		logger: log.With(slog.String("service", "storage")),
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	u.logger.Info("uploaded object", slog.String("key", key), slog.Int("bytes", len(data)))
	return key, nil
}
