package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"govreport/internal/domain"
)

// Authenticate requires a valid bearer token and stores the principal in the
// request context. Requests without one get 401.
func Authenticate(v TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeError(w, http.StatusUnauthorized, "Unauthenticated", "a bearer token is required")
				return
			}
			p, err := v.Validate(r.Context(), strings.TrimSpace(token))
			if err != nil {
				logger.Debug("rejected bearer token", "request_id", RequestIDFromContext(r.Context()), "error", err)
				writeError(w, http.StatusUnauthorized, "Unauthenticated", "invalid bearer token")
				return
			}
			next.ServeHTTP(w, r.WithContext(domain.WithPrincipal(r.Context(), p)))
		})
	}
}

// writeError writes the API error body for failures raised before a handler runs.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"kind":    kind,
		"status":  strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_")),
		"message": message,
	})
}
