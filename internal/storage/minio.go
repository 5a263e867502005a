package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/config"
)

type MinioBucket struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

func NewMinioFromConfig(cfg *config.Config) (*MinioBucket, error) {
	if cfg.StorageEndpoint == "" {
		return nil, errors.New("STORAGE_ENDPOINT is required for the minio driver")
	}

	client, err := minio.New(cfg.StorageEndpoint, &minio.Options{
		Creds:      credentials.NewStaticV4(cfg.StorageAccessKey, cfg.StorageSecretKey, ""),
		Secure:     cfg.StorageUseSSL,
		Region:     cfg.StorageRegion,
		// A failed upload surfaces to the caller instead of being retried.
		MaxRetries: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	base := cfg.StoragePublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.StorageUseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.StorageEndpoint
	}

	return &MinioBucket{client: client, bucket: cfg.StorageBucket, publicBase: base}, nil
}

func (b *MinioBucket) Upload(ctx context.Context, key string, body io.Reader, size int64, opts UploadOptions) error {
	if !opts.Upsert {
		_, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return &Error{Op: "upload", Bucket: b.bucket, Key: key, Err: ErrObjectExists}
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return &Error{Op: "upload", Bucket: b.bucket, Key: key, Err: err}
		}
	}

	if size <= 0 {
		size = -1
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := b.client.PutObject(ctx, b.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return &Error{Op: "upload", Bucket: b.bucket, Key: key, Err: err}
	}
	return nil
}

func (b *MinioBucket) PublicURL(key string) string {
	return publicURL(b.publicBase, b.bucket, key)
}

func (b *MinioBucket) Ping(ctx context.Context) error {
	ok, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return &Error{Op: "ping", Bucket: b.bucket, Err: err}
	}
	if !ok {
		return &Error{Op: "ping", Bucket: b.bucket, Err: errors.New("bucket does not exist")}
	}
	return nil
}
