// Package blob stores export artifacts in object storage and signs
// time-limited download URLs for them.
package blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"govreport/internal/domain"
)

// Providers.
const (
	ProviderS3    = "s3"
	ProviderAzure = "azure"
	ProviderGCS   = "gcs"
	ProviderLocal = "local"
)

// XLSXContentType is the content type of export workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Container string

	S3Endpoint string
	S3Region   string
	S3KeyID    string
	S3Secret   string

	AzureAccountName string
	AzureAccountKey  string

	GCSKeyFile string

	LocalDir      string
	PublicBaseURL string
	SigningKey    string
}

// Open creates the store for cfg.Provider.
func Open(ctx context.Context, cfg Config) (domain.BlobStore, error) {
	switch cfg.Provider {
	case ProviderS3:
		return NewS3Store(cfg)
	case ProviderAzure:
		return NewAzureStore(cfg)
	case ProviderGCS:
		return NewGCSStore(ctx, cfg)
	case ProviderLocal, "":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL, []byte(cfg.SigningKey))
	}
	return nil, fmt.Errorf("unsupported blob provider %q", cfg.Provider)
}

// ExportKey is the deterministic object key of an export workbook.
func ExportKey(reportID, exportID int64) string {
	return fmt.Sprintf("exports/%d/%d.xlsx", reportID, exportID)
}

// ClampExpiry caps a signed URL lifetime at domain.MaxSignedURLTTL.
func ClampExpiry(expiry time.Duration) time.Duration {
	if expiry <= 0 || expiry > domain.MaxSignedURLTTL {
		return domain.MaxSignedURLTTL
	}
	return expiry
}

// parseHandle splits "scheme://container/key" into its parts.
func parseHandle(handle, scheme string) (container, key string, err error) {
	u, err := url.Parse(handle)
	if err != nil {
		return "", "", fmt.Errorf("parse blob handle %q: %w", handle, err)
	}
	if u.Scheme != scheme {
		return "", "", fmt.Errorf("expected %s:// scheme, got %q in %q", scheme, u.Scheme, handle)
	}
	container = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("empty key in blob handle %q", handle)
	}
	return container, key, nil
}
