package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	azblobblob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"govreport/internal/domain"
)

var _ domain.BlobStore = (*AzureStore)(nil)

// AzureStore writes to Azure Blob Storage with shared-key credentials and
// signs SAS URLs.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore creates an AzureStore.
func NewAzureStore(cfg Config) (*AzureStore, error) {
	if cfg.AzureAccountName == "" || cfg.AzureAccountKey == "" || cfg.Container == "" {
		return nil, fmt.Errorf("Azure blob config is incomplete")
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureStore{client: client, container: cfg.Container}, nil
}

// Put streams body as a block blob.
func (s *AzureStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := s.client.UploadStream(ctx, s.container, key, body, &azblob.UploadStreamOptions{
		HTTPHeaders: &azblobblob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("upload az://%s/%s: %w", s.container, key, err)
	}
	return "az://" + s.container + "/" + key, nil
}

// SignReadURL returns a read-only SAS URL for handle.
func (s *AzureStore) SignReadURL(_ context.Context, handle string, expiry time.Duration) (string, error) {
	container, key, err := parseHandle(handle, "az")
	if err != nil {
		return "", err
	}
	blobClient := s.client.ServiceClient().NewContainerClient(container).NewBlobClient(key)
	u, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().Add(ClampExpiry(expiry)), nil)
	if err != nil {
		return "", fmt.Errorf("generate SAS URL for %q: %w", handle, err)
	}
	return u, nil
}
