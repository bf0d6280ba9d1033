// Package api exposes report definition, preview and export over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"govreport/internal/blob"
	"govreport/internal/domain"
	"govreport/internal/service/export"
	"govreport/internal/service/preview"
	"govreport/internal/service/report"
)

// maxBodyBytes bounds request bodies; sub-report configs are small.
const maxBodyBytes = 1 << 20

// Downloader serves blobs written by the local store.
type Downloader interface {
	Open(key, expires, signature string) (*os.File, error)
}

// Handler serves the HTTP API.
type Handler struct {
	reports  *report.Service
	previews *preview.Service
	exports  *export.Service
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(reports *report.Service, previews *preview.Service, exports *export.Service, logger *slog.Logger) *Handler {
	return &Handler{
		reports:  reports,
		previews: previews,
		exports:  exports,
		logger:   logger.With("component", "api"),
	}
}

// Routes returns the authenticated /api/v1 routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/reports", func(r chi.Router) {
		r.Post("/", h.createReport)
		r.Get("/", h.listReports)
		r.Route("/{reportID}", func(r chi.Router) {
			r.Get("/", h.getReport)
			r.Patch("/", h.updateReport)
			r.Delete("/", h.deleteReport)

			r.Post("/sub-reports", h.createSubReport)
			r.Route("/sub-reports/{subReportID}", func(r chi.Router) {
				r.Get("/", h.getSubReport)
				r.Patch("/", h.updateSubReport)
				r.Delete("/", h.deleteSubReport)
				r.Post("/preview", h.preview)
				r.Post("/explain", h.explain)
			})

			r.Post("/exports", h.createExport)
			r.Get("/exports", h.listExports)
			r.Get("/exports/latest", h.exportStatus)
		})
	})

	r.Post("/formulas/validate", h.validateFormula)

	r.Route("/templates", func(r chi.Router) {
		r.Post("/", h.createTemplate)
		r.Get("/", h.listTemplates)
		r.Get("/{templateID}", h.getTemplate)
		r.Delete("/{templateID}", h.deleteTemplate)
	})

	r.Post("/tags", h.createTag)
	r.Get("/tags", h.listTags)

	return r
}

// DownloadHandler serves signed local blob downloads. It sits outside
// authentication; the signature is the credential.
func DownloadHandler(d Downloader, logger *slog.Logger) http.HandlerFunc {
	logger = logger.With("component", "api")
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		q := r.URL.Query()
		f, err := d.Open(key, q.Get("expires"), q.Get("signature"))
		if err != nil {
			if errors.Is(err, blob.ErrInvalidSignature) {
				writeError(w, r, logger, domain.ErrAccessDenied("invalid or expired download link"))
				return
			}
			writeError(w, r, logger, err)
			return
		}
		defer f.Close()

		st, err := f.Stat()
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName(key)+`"`)
		http.ServeContent(w, r, downloadName(key), st.ModTime(), f)
	}
}

func downloadName(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}

// ---- request helpers ----

func pathID(r *http.Request, name string) (int64, error) {
	return domain.ParseID(chi.URLParam(r, name))
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrValidation("request body is required")
		}
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

func pageRequest(r *http.Request) (domain.PageRequest, error) {
	q := r.URL.Query()
	page := domain.PageRequest{PageToken: q.Get("page_token")}
	if raw := q.Get("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, domain.ErrValidation("invalid max_results %q", raw)
		}
		page.MaxResults = n
	}
	return page, page.Validate()
}

func principal(r *http.Request) string {
	return domain.PrincipalName(r.Context())
}

func caller(r *http.Request) domain.ContextPrincipal {
	p, _ := domain.PrincipalFromContext(r.Context())
	return p
}
