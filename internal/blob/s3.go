package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"govreport/internal/domain"
)

var _ domain.BlobStore = (*S3Store)(nil)

// S3Store writes to S3-compatible object storage.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3Store creates a store with static credentials and path-style addressing.
func NewS3Store(cfg Config) (*S3Store, error) {
	if cfg.S3KeyID == "" || cfg.S3Secret == "" || cfg.S3Region == "" || cfg.Container == "" {
		return nil, fmt.Errorf("S3 config is incomplete")
	}
	opts := s3.Options{
		Region:       cfg.S3Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.S3KeyID, cfg.S3Secret, ""),
		UsePathStyle: true,
	}
	if cfg.S3Endpoint != "" {
		endpoint := cfg.S3Endpoint
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}
	client := s3.New(opts)
	return &S3Store{client: client, presign: s3.NewPresignClient(client), bucket: cfg.Container}, nil
}

// Put uploads body. Bodies that implement io.Seeker are streamed; S3 rejects
// unsized non-seekable payloads.
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// SignReadURL presigns a GET for handle.
func (s *S3Store) SignReadURL(ctx context.Context, handle string, expiry time.Duration) (string, error) {
	bucket, key, err := parseHandle(handle, "s3")
	if err != nil {
		return "", err
	}
	out, err := s.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)},
		s3.WithPresignExpires(ClampExpiry(expiry)),
	)
	if err != nil {
		return "", fmt.Errorf("presign GetObject for %q: %w", handle, err)
	}
	return out.URL, nil
}
