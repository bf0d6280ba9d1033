package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"govreport/internal/domain"
)

var _ domain.BlobStore = (*GCSStore)(nil)

// GCSStore writes to Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a GCSStore. Without a key file, application default
// credentials are used.
func NewGCSStore(ctx context.Context, cfg Config) (*GCSStore, error) {
	if cfg.Container == "" {
		return nil, fmt.Errorf("GCS bucket is required")
	}
	var opts []option.ClientOption
	if cfg.GCSKeyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.GCSKeyFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.Container}, nil
}

// Put streams body to the object.
func (s *GCSStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gs://%s/%s: %w", s.bucket, key, err)
	}
	return "gs://" + s.bucket + "/" + key, nil
}

// SignReadURL signs a GET URL for handle.
func (s *GCSStore) SignReadURL(_ context.Context, handle string, expiry time.Duration) (string, error) {
	bucket, key, err := parseHandle(handle, "gs")
	if err != nil {
		return "", err
	}
	u, err := s.client.Bucket(bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ClampExpiry(expiry)),
	})
	if err != nil {
		return "", fmt.Errorf("sign GetObject for %q: %w", handle, err)
	}
	return u, nil
}
