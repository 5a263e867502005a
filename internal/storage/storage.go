// Package storage fronts the object store that holds avatar images and the
// local staging area where freshly picked images wait to be uploaded.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/config"
)

var (
	ErrObjectExists = errors.New("object already exists")
	ErrInvalidRef   = errors.New("not a staged asset reference")
	ErrNotImage     = errors.New("file is not an image")
	ErrTooLarge     = errors.New("file exceeds the maximum avatar size")
	ErrEmptyAsset   = errors.New("file is empty")
)

// UploadOptions controls a single upload. Without Upsert an existing object
// under the same key is left alone and ErrObjectExists is returned.
type UploadOptions struct {
	Upsert      bool
	ContentType string
}

// Asset is an opened local asset ready to be uploaded.
type Asset struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Bucket is an object-store bucket with public read URLs.
type Bucket interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, opts UploadOptions) error
	PublicURL(key string) string
	Ping(ctx context.Context) error
}

// Error carries the bucket and key of a failed object operation.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("storage.%s %s: %v", e.Op, e.Bucket, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds the bucket selected by STORAGE_DRIVER.
func New(ctx context.Context, cfg *config.Config) (Bucket, error) {
	switch cfg.StorageDriver {
	case "s3":
		return NewS3FromConfig(ctx, cfg)
	case "minio":
		return NewMinioFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func publicURL(base, bucket, key string) string {
	u, err := url.JoinPath(base, bucket, key)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + bucket + "/" + key
	}
	return u
}
