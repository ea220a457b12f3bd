// Package storage resolves uploaded files to opaque blob references in an
// S3-compatible object store.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"artisan-market/internal/apperror"
	appconfig "artisan-market/internal/config"
	"artisan-market/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// s3API is the subset of the S3 client the store uses; narrowed for tests.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// BlobStore saves uploads to a bucket and hands back opaque references.
// There is no deletion path; orphaned blobs from abandoned signups are
// bounded by the pending-registration TTL and cleaned up out of band.
type BlobStore struct {
	client s3API
	bucket string
}

// New builds a BlobStore against the configured S3-compatible endpoint
// using static credentials (MinIO root user in development).
func New(ctx context.Context, cfg appconfig.S3Config) (*BlobStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &BlobStore{client: client, bucket: cfg.Bucket}, nil
}

// newWithClient is used by tests to inject a fake S3 client.
func newWithClient(client s3API, bucket string) *BlobStore {
	return &BlobStore{client: client, bucket: bucket}
}

// Save sanitizes the filename, uploads the content under a fresh key and
// returns the blob reference. Transient upload failures are retried with
// exponential backoff before surfacing a storage error.
func (b *BlobStore) Save(ctx context.Context, filename string, content io.Reader) (domain.BlobRef, error) {
	name := SanitizeFilename(filename)
	if name == "" {
		return domain.BlobRef{}, apperror.Validation("file", "invalid filename")
	}

	// Buffer the upload so each retry attempt re-reads from the start.
	data, err := io.ReadAll(content)
	if err != nil {
		return domain.BlobRef{}, apperror.Storage(fmt.Errorf("failed to read upload: %w", err))
	}

	key := storageKey(name)

	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, putErr := b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if putErr != nil {
			return retry.RetryableError(putErr)
		}
		return nil
	})
	if err != nil {
		return domain.BlobRef{}, apperror.Storage(fmt.Errorf("failed to store %s: %w", name, err))
	}

	return domain.BlobRef{Key: key, Filename: name}, nil
}

// Fetch streams a stored blob by its key.
func (b *BlobStore) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, apperror.NotFound("file")
		}
		return nil, apperror.Storage(fmt.Errorf("failed to fetch %s: %w", key, err))
	}

	return out.Body, nil
}

func storageKey(name string) string {
	d := time.Now()
	return fmt.Sprintf("uploads/%d/%02d/%02d/%s-%s", d.Year(), d.Month(), d.Day(), uuid.New(), name)
}
