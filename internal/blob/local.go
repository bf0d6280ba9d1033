package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"govreport/internal/domain"
)

// DownloadPath is the API route prefix that serves local blobs.
const DownloadPath = "/api/v1/blobs/"

// ErrInvalidSignature is returned when a local download URL does not verify.
var ErrInvalidSignature = errors.New("invalid or expired blob signature")

var _ domain.BlobStore = (*LocalStore)(nil)

// LocalStore keeps blobs on the local filesystem. Download URLs point at the
// API and carry an HMAC-SHA256 signature over the key and expiry.
type LocalStore struct {
	dir     string
	baseURL string
	key     []byte
	now     func() time.Time
}

// NewLocalStore creates a LocalStore rooted at dir.
func NewLocalStore(dir, baseURL string, signingKey []byte) (*LocalStore, error) {
	if dir == "" {
		dir = "exports_data"
	}
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("local blob store requires a signing key")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve blob dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalStore{dir: abs, baseURL: strings.TrimRight(baseURL, "/"), key: signingKey, now: time.Now}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("empty blob key")
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

// Put writes body to a temporary file and renames it into place.
func (s *LocalStore) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	dst, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return "local:///" + strings.TrimPrefix(key, "/"), nil
}

// SignReadURL returns an API URL valid until now+expiry.
func (s *LocalStore) SignReadURL(_ context.Context, handle string, expiry time.Duration) (string, error) {
	_, key, err := parseHandle(handle, "local")
	if err != nil {
		return "", err
	}
	expires := s.now().Add(ClampExpiry(expiry)).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(key, expires))
	return s.baseURL + DownloadPath + key + "?" + q.Encode(), nil
}

func (s *LocalStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.key)
	fmt.Fprintf(mac, "%s\n%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// Open verifies a download signature and opens the blob.
func (s *LocalStore) Open(key, expires, signature string) (*os.File, error) {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || s.now().Unix() > exp {
		return nil, ErrInvalidSignature
	}
	want := s.sign(key, exp)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return nil, ErrInvalidSignature
	}
	p, err := s.path(key)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	f, err := os.Open(p) //nolint:gosec // path is confined to s.dir and signed
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound("blob %s not found", key)
		}
		return nil, err
	}
	return f, nil
}
