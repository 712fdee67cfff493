package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when uploads are attempted without a
// configured bucket.
var ErrNotConfigured = errors.New("object storage is not configured")

// Disabled is the uploader used when no bucket is configured; every
// upload fails, which fails the report pipeline cleanly.
type Disabled struct{}

func (Disabled) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	return "", ErrNotConfigured
}
