package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"govreport/internal/api"
	"govreport/internal/blob"
	"govreport/internal/middleware"
)

// Router builds the HTTP handler. Health, metrics and signed blob downloads
// are public; everything under /api/v1 requires a bearer token. ctx bounds
// the rate limiter's background sweep.
func (a *App) Router(ctx context.Context) (http.Handler, error) {
	cfg := a.deps.Cfg
	logger := a.deps.Logger

	validator, err := middleware.NewHS256Validator(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("jwt validator: %w", err)
	}
	limiter := middleware.NewRateLimiter(ctx, middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(limiter.Handler)

	// Public endpoints, no auth required
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", a.Metrics.Handler())
	if local, ok := a.deps.Blobs.(*blob.LocalStore); ok {
		r.Get(blob.DownloadPath+"*", api.DownloadHandler(local, logger))
	}

	handler := api.NewHandler(a.Services.Reports, a.Services.Preview, a.Services.Export, logger)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(validator, logger))
		r.Mount("/api/v1", handler.Routes())
	})
	return r, nil
}
