package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govreport/internal/domain"
)

const secret = "test-secret-32-bytes-long-xxxxx"

func makeToken(t *testing.T, key string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestHS256Validator(t *testing.T) {
	t.Parallel()
	v, err := NewHS256Validator(secret)
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		want    domain.ContextPrincipal
		wantErr bool
	}{
		{
			name:  "email wins over sub",
			token: makeToken(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u-1", "email": "alice@example.gov", "exp": exp}),
			want:  domain.ContextPrincipal{Name: "alice@example.gov"},
		},
		{
			name:  "sub and admin",
			token: makeToken(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc-reports", "admin": true, "exp": exp}),
			want:  domain.ContextPrincipal{Name: "svc-reports", IsAdmin: true},
		},
		{
			name:    "wrong secret",
			token:   makeToken(t, "other-secret", jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u", "exp": exp}),
			wantErr: true,
		},
		{
			name:    "expired",
			token:   makeToken(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Minute).Unix()}),
			wantErr: true,
		},
		{
			name:    "no expiry",
			token:   makeToken(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}),
			wantErr: true,
		},
		{
			name:    "wrong algorithm",
			token:   makeToken(t, secret, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "u", "exp": exp}),
			wantErr: true,
		},
		{
			name:    "no identity",
			token:   makeToken(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp}),
			wantErr: true,
		},
		{name: "garbage", token: "not.a.jwt", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := v.Validate(context.Background(), tc.token)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err = NewHS256Validator("")
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	v, err := NewHS256Validator(secret)
	require.NoError(t, err)
	handler := Authenticate(v, slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(domain.PrincipalName(r.Context())))
	}))
	valid := makeToken(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "bob", "exp": time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "bob"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"basic auth", "Basic Ym9iOnB3", http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/reports", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, tc.wantBody, rec.Body.String())
				return
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "Unauthenticated", body["kind"])
			assert.Equal(t, "unauthorized", body["status"])
		})
	}
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:2222").Code, "port is ignored")
	limited := do("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2:1111").Code, "buckets are per client")
}

func TestRateLimiter_Sweep(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: 20 * time.Millisecond})
	rl.limiter("10.0.0.9")

	assert.Eventually(t, func() bool {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		return len(rl.clients) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRequestIDAndAccessLog(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	var seen string
	handler := RequestID(AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/reports/1/exports", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, float64(http.StatusAccepted), line["status"])
	assert.Equal(t, "/v1/reports/1/exports", line["path"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36, "generated ids are uuids")
}
