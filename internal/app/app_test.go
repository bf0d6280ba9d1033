package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govreport/internal/blob"
	"govreport/internal/cache"
	"govreport/internal/config"
	"govreport/internal/db"
	"govreport/internal/domain"
	tu "govreport/internal/testutil"
)

const secret = "test-secret"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() *config.Config {
	return &config.Config{
		CacheURL:            "memory://",
		ExportURLTTLSeconds: 3600,
		CacheTTLSeconds:     7200,
		ExportWorkers:       1,
		ExportJobTimeout:    time.Minute,
		ExportPageSize:      100,
		JWTSecret:           secret,
		RateLimitRPS:        100,
		RateLimitBurst:      200,
		CORSAllowedOrigins:  []string{"*"},
	}
}

func newApp(t *testing.T) *App {
	t.Helper()
	metaDB := db.OpenTestSQLite(t)
	local, err := blob.NewLocalStore(t.TempDir(), "http://example.test", []byte(secret))
	require.NoError(t, err)

	a, err := New(context.Background(), Deps{
		Cfg:       testConfig(),
		MetaDB:    metaDB,
		Warehouse: &tu.FakeWarehouse{},
		Blobs:     local,
		Cache:     cache.NewMemoryStore(),
		Logger:    discard,
	})
	require.NoError(t, err)
	return a
}

func bearer(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestNew_SeedsTemplates(t *testing.T) {
	t.Parallel()
	a := newApp(t)
	templates, total, err := a.Services.Reports.ListTemplates(context.Background(), domain.PageRequest{})
	require.NoError(t, err)
	assert.Positive(t, total)
	for _, tmpl := range templates {
		assert.True(t, tmpl.IsPredefined, tmpl.Name)
	}
}

func TestRouter(t *testing.T) {
	t.Parallel()
	a := newApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := a.Router(ctx)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		auth   bool
		status int
	}{
		{"health is public", "/healthz", false, http.StatusOK},
		{"metrics are public", "/metrics", false, http.StatusOK},
		{"api requires a token", "/api/v1/reports", false, http.StatusUnauthorized},
		{"api with token", "/api/v1/reports", true, http.StatusOK},
		{"unsigned download", blob.DownloadPath + "exports/1/1.xlsx", false, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.auth {
				req.Header.Set("Authorization", bearer(t))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestRouter_CreatedByTokenSubject(t *testing.T) {
	t.Parallel()
	a := newApp(t)
	h, err := a.Router(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tags", strings.NewReader(`{"name":"finance"}`))
	req.Header.Set("Authorization", bearer(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tag map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tag))
	assert.Equal(t, "alice", tag["created_by"])
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	a := newApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, a.Start(ctx))
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	a.Stop(stopCtx)
}

func TestUnavailableWarehouse(t *testing.T) {
	t.Parallel()
	_, err := unavailableWarehouse{}.Query(context.Background(), "SELECT 1", nil)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	_, err = unavailableWarehouse{}.Count(context.Background(), "SELECT 1", nil)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}
