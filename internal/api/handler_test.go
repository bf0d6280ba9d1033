package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govreport/internal/blob"
	"govreport/internal/cache"
	"govreport/internal/db"
	"govreport/internal/db/repository"
	"govreport/internal/domain"
	"govreport/internal/schema"
	"govreport/internal/service/export"
	"govreport/internal/service/preview"
	"govreport/internal/service/report"
	"govreport/internal/sqlgen"
	tu "govreport/internal/testutil"
	"govreport/internal/validate"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type testServer struct {
	router  http.Handler
	reports *report.Service
	queue   *tu.FakeQueue
	local   *blob.LocalStore
	admin   bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	metaDB := db.OpenTestSQLite(t)

	wh := &tu.FakeWarehouse{Columns: []string{tu.FieldTxDate, tu.FieldAmount, tu.FieldAgency}}
	for i := 0; i < 5; i++ {
		wh.Rows = append(wh.Rows, []any{"2025-01-0" + string(rune('1'+i)), int64(i * 10), "Agency"})
	}

	reg := schema.Master()
	validator := validate.New(reg)
	execCache := cache.New(cache.NewMemoryStore(), time.Hour, nil, discard)
	reportRepo := repository.NewReportRepo(metaDB)
	subRepo := repository.NewSubReportRepo(metaDB)
	exportRepo := repository.NewExportRepo(metaDB)

	reports := report.New(report.Deps{
		Reports:    reportRepo,
		SubReports: subRepo,
		Templates:  repository.NewTemplateRepo(metaDB),
		Tags:       repository.NewTagRepo(metaDB),
		Exports:    exportRepo,
		Validator:  validator,
		Cache:      execCache,
		Logger:     discard,
	})
	previews := preview.New(subRepo, validator, sqlgen.New(reg), execCache, wh, nil, discard)
	q := &tu.FakeQueue{}
	exports := export.New(export.Deps{
		Reports:   reportRepo,
		Exports:   exportRepo,
		Queue:     q,
		Blobs:     tu.NewFakeBlobStore(),
		SQL:       previews,
		Warehouse: wh,
		Logger:    discard,
	}, export.DefaultConfig())

	local, err := blob.NewLocalStore(t.TempDir(), "http://example.test", []byte("secret"))
	require.NoError(t, err)

	ts := &testServer{reports: reports, queue: q, local: local}
	h := NewHandler(reports, previews, exports, discard)
	r := chi.NewRouter()
	r.Get(blob.DownloadPath+"*", DownloadHandler(local, discard))
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := domain.WithPrincipal(req.Context(), domain.ContextPrincipal{Name: "alice", IsAdmin: ts.admin})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		r.Mount("/api/v1", h.Routes())
	})
	ts.router = r
	return ts
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (s *testServer) createReport(t *testing.T, name string) int64 {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/api/v1/reports", map[string]any{
		"name": name,
		"sub_reports": []map[string]any{
			{"name": "Detail", "config": tu.DetailConfig()},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return int64(body["id"].(float64))
}

func subReportID(t *testing.T, report map[string]any) int64 {
	t.Helper()
	subs := report["sub_reports"].([]any)
	require.NotEmpty(t, subs)
	return int64(subs[0].(map[string]any)["id"].(float64))
}

func TestReportLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := s.createReport(t, "Spend")
	base := "/api/v1/reports/" + itoa(id)

	rec, body := s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Spend", body["name"])
	assert.Equal(t, "alice", body["created_by"])
	assert.Len(t, body["sub_reports"], 1)

	rec, body = s.do(t, http.MethodGet, "/api/v1/reports?search=spe", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total_count"])

	rec, body = s.do(t, http.MethodPatch, base, map[string]any{"name": "Spend 2025", "rerun_cadence": "weekly"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Spend 2025", body["name"])
	assert.Equal(t, "weekly", body["rerun_cadence"])

	rec, body = s.do(t, http.MethodPatch, base, map[string]any{"clear_rerun_cadence": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, body["rerun_cadence"])

	rec, _ = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, body = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", body["kind"])
}

func TestRequestErrors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := s.createReport(t, "Spend")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"empty name", http.MethodPost, "/api/v1/reports", map[string]any{"name": ""}, http.StatusBadRequest, "ValidationFailed"},
		{"unknown field", http.MethodPost, "/api/v1/reports", `{"name":"x","bogus":1}`, http.StatusBadRequest, "ValidationFailed"},
		{"malformed json", http.MethodPost, "/api/v1/reports", `{"name":`, http.StatusBadRequest, "ValidationFailed"},
		{"missing body", http.MethodPost, "/api/v1/tags", nil, http.StatusBadRequest, "ValidationFailed"},
		{"bad id", http.MethodGet, "/api/v1/reports/abc", nil, http.StatusBadRequest, "ValidationFailed"},
		{"bad max_results", http.MethodGet, "/api/v1/reports?max_results=-1", nil, http.StatusBadRequest, "ValidationFailed"},
		{"bad page_token", http.MethodGet, "/api/v1/reports?page_token=MjA", nil, http.StatusBadRequest, "ValidationFailed"},
		{"duplicate name", http.MethodPost, "/api/v1/reports", map[string]any{"name": "Spend"}, http.StatusConflict, "NameConflict"},
		{"unknown template", http.MethodPost, "/api/v1/reports", map[string]any{"name": "T", "template_id": 999}, http.StatusNotFound, "TemplateNotFound"},
		{"unknown tag", http.MethodPost, "/api/v1/reports", map[string]any{"name": "T", "tags": []string{"nope"}}, http.StatusNotFound, "TagsNotFound"},
		{"missing sub-report", http.MethodGet, "/api/v1/reports/" + itoa(id) + "/sub-reports/999", nil, http.StatusNotFound, "NotFound"},
		{"no export yet", http.MethodGet, "/api/v1/reports/" + itoa(id) + "/exports/latest", nil, http.StatusNotFound, "NotFound"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := s.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.kind, body["kind"])
		})
	}
}

func TestSubReportPreviewAndExplain(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := s.createReport(t, "Spend")
	_, rep := s.do(t, http.MethodGet, "/api/v1/reports/"+itoa(id), nil)
	base := "/api/v1/reports/" + itoa(id) + "/sub-reports/" + itoa(subReportID(t, rep))

	rec, body := s.do(t, http.MethodPost, base+"/preview", map[string]any{"page": 2, "page_size": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, body["rows"], 2)
	assert.Len(t, body["fields"], 3)
	opts := body["search_options"].(map[string]any)
	assert.EqualValues(t, 5, opts["total_count"])
	assert.EqualValues(t, 3, opts["total_pages"])

	rec, body = s.do(t, http.MethodPost, base+"/preview", map[string]any{"page": 0, "page_size": 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationFailed", body["kind"])

	rec, body = s.do(t, http.MethodPost, base+"/explain", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, body["data_sql"], "FETCH NEXT")
	assert.Contains(t, body["count_sql"], "COUNT(*)")

	rec, body = s.do(t, http.MethodPatch, base, map[string]any{"name": "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", body["name"])

	rec, _ = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = s.do(t, http.MethodPost, base+"/preview", map[string]any{"page": 1, "page_size": 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSubReport_InvalidConfig(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := s.createReport(t, "Spend")

	cfg := tu.DetailConfig()
	cfg.Fields = append(cfg.Fields, tu.FormulaField("f-1", "{agency.missing} + 1", "Broken", domain.TypeNumber, nil))
	rec, body := s.do(t, http.MethodPost, "/api/v1/reports/"+itoa(id)+"/sub-reports", map[string]any{"name": "Broken", "config": cfg})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["violations"])
}

func TestExports(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := s.createReport(t, "Spend")
	base := "/api/v1/reports/" + itoa(id) + "/exports"

	rec, body := s.do(t, http.MethodPost, base, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", body["status"])
	assert.NotContains(t, body, "file_handle")
	exportID := body["id"]
	assert.Equal(t, 1, s.queue.Len())

	rec, body = s.do(t, http.MethodPost, base, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "AlreadyRunning", body["kind"])
	assert.Equal(t, exportID, body["export_id"])

	rec, body = s.do(t, http.MethodGet, base+"/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, exportID, body["id"])
	assert.Nil(t, body["url"])

	rec, body = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total_count"])

	rec, _ = s.do(t, http.MethodPost, "/api/v1/reports/999/exports", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateFormula(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/api/v1/formulas/validate", map[string]any{
		"formula": "round({transaction.transaction_amount}/100, 2)",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "number", body["type"])

	rec, body = s.do(t, http.MethodPost, "/api/v1/formulas/validate", map[string]any{"formula": "NOPE(1)"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidFormula", body["kind"])
	f := body["formula"].(map[string]any)
	assert.Equal(t, string(domain.CodeUnknownFunction), f["code"])
}

func TestTemplatesAndTags(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/api/v1/tags", map[string]any{"name": "finance"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, body := s.do(t, http.MethodGet, "/api/v1/tags", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total_count"])

	rec, body = s.do(t, http.MethodPost, "/api/v1/templates", map[string]any{
		"name":        "Detail listing",
		"tags":        []string{"finance"},
		"sub_reports": []domain.TemplateSubReport{{Name: "Detail", Config: tu.DetailConfig()}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, false, body["is_predefined"])
	tmplID := int64(body["id"].(float64))

	rec, body = s.do(t, http.MethodPost, "/api/v1/reports", map[string]any{"name": "From template", "template_id": tmplID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, body["sub_reports"], 1)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/templates/"+itoa(tmplID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, "/api/v1/templates/"+itoa(tmplID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/api/v1/templates/"+itoa(tmplID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownload(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ctx := context.Background()

	handle, err := s.local.Put(ctx, blob.ExportKey(1, 2), strings.NewReader("workbook"), blob.XLSXContentType)
	require.NoError(t, err)
	signed, err := s.local.SignReadURL(ctx, handle, time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)

	rec, _ := s.do(t, http.MethodGet, u.RequestURI(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "workbook", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	q := u.Query()
	q.Set("signature", "00"+q.Get("signature")[2:])
	u.RawQuery = q.Encode()
	rec, body := s.do(t, http.MethodGet, u.RequestURI(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AccessDenied", body["kind"])
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestDeletePredefinedTemplate(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	_, err := s.reports.SeedTemplates(context.Background())
	require.NoError(t, err)

	rec, body := s.do(t, http.MethodGet, "/api/v1/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := body["items"].([]any)
	require.NotEmpty(t, items)
	path := "/api/v1/templates/" + itoa(int64(items[0].(map[string]any)["id"].(float64)))

	rec, body = s.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AccessDenied", body["kind"])

	s.admin = true
	rec, _ = s.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = s.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
