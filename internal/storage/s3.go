package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/config"
)

// S3API is the subset of the S3 client used here; tests replace it.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type S3Bucket struct {
	client     S3API
	bucket     string
	publicBase string
}

func NewS3Bucket(client S3API, bucket, publicBase string) *S3Bucket {
	return &S3Bucket{client: client, bucket: bucket, publicBase: publicBase}
}

// NewS3FromConfig loads AWS credentials from the default chain unless static
// keys are configured. A custom endpoint switches to path-style addressing so
// S3-compatible services work.
func NewS3FromConfig(ctx context.Context, cfg *config.Config) (*S3Bucket, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.StorageRegion),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if cfg.StorageAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.StorageAccessKey, cfg.StorageSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.StorageEndpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
			o.UsePathStyle = true
		})
	}

	base := cfg.StoragePublicBaseURL
	if base == "" {
		if cfg.StorageEndpoint != "" {
			base = cfg.StorageEndpoint
		} else {
			base = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.StorageRegion)
		}
	}

	return NewS3Bucket(s3.NewFromConfig(awsCfg, s3Opts...), cfg.StorageBucket, base), nil
}

func (b *S3Bucket) Upload(ctx context.Context, key string, body io.Reader, size int64, opts UploadOptions) error {
	if !opts.Upsert {
		exists, err := b.exists(ctx, key)
		if err != nil {
			return &Error{Op: "upload", Bucket: b.bucket, Key: key, Err: err}
		}
		if exists {
			return &Error{Op: "upload", Bucket: b.bucket, Key: key, Err: ErrObjectExists}
		}
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return &Error{Op: "upload", Bucket: b.bucket, Key: key, Err: err}
	}
	return nil
}

func (b *S3Bucket) exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, err
}

func (b *S3Bucket) PublicURL(key string) string {
	return publicURL(b.publicBase, b.bucket, key)
}

func (b *S3Bucket) Ping(ctx context.Context) error {
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}); err != nil {
		return &Error{Op: "ping", Bucket: b.bucket, Err: err}
	}
	return nil
}
