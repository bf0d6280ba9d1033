// Package preview runs paginated previews of sub-reports against the
// warehouse, reusing compiled SQL from the execution cache.
package preview

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"govreport/internal/cache"
	"govreport/internal/domain"
	"govreport/internal/metrics"
	"govreport/internal/sqlgen"
	"govreport/internal/validate"
	"govreport/internal/warehouse"
)

// Find selects the page of a preview and optionally replaces the stored filters.
type Find struct {
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Filters  *domain.FilterTree `json:"filters,omitempty"`
}

// Validate checks the page window.
func (f Find) Validate() error {
	if f.Page < 1 {
		return domain.ErrValidation("page must be at least 1")
	}
	if f.PageSize < 1 || f.PageSize > domain.MaxPreviewPageSize {
		return domain.ErrValidation("page_size must be between 1 and %d", domain.MaxPreviewPageSize)
	}
	return nil
}

// FieldView names one column of a preview.
type FieldView struct {
	ID    string              `json:"uuid"`
	Label string              `json:"label"`
	Type  domain.SemanticType `json:"type"`
}

// Result is one page of a preview.
type Result struct {
	Fields        []FieldView          `json:"fields"`
	Rows          []map[string]any     `json:"rows"`
	SearchOptions domain.SearchOptions `json:"search_options"`
}

// Service executes previews.
type Service struct {
	subReports domain.SubReportRepository
	validator  *validate.Validator
	compiler   *sqlgen.Compiler
	cache      *cache.ExecutionCache
	warehouse  domain.Warehouse
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates a Service.
func New(
	subReports domain.SubReportRepository,
	validator *validate.Validator,
	compiler *sqlgen.Compiler,
	execCache *cache.ExecutionCache,
	wh domain.Warehouse,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		subReports: subReports,
		validator:  validator,
		compiler:   compiler,
		cache:      execCache,
		warehouse:  wh,
		metrics:    m,
		logger:     logger.With("component", "preview"),
	}
}

// Preview returns one page of a sub-report. Filters in find replace the
// stored filters for this call only.
func (s *Service) Preview(ctx context.Context, reportID, subReportID int64, find Find) (res *Result, err error) {
	start := time.Now()
	defer func() { s.metrics.ObservePreview(start, err) }()

	if err := find.Validate(); err != nil {
		return nil, err
	}
	sub, err := s.load(ctx, reportID, subReportID)
	if err != nil {
		return nil, err
	}
	cfg := sub.Config
	if find.Filters != nil {
		cfg = cfg.WithFilters(find.Filters)
	}
	a, compiled, err := s.Compile(ctx, reportID, subReportID, cfg)
	if err != nil {
		return nil, err
	}

	var (
		rows  *domain.RowSet
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.warehouse.Query(gctx, compiled.DataSQL, compiled.PageArgs(find.Page, find.PageSize))
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.warehouse.Count(gctx, compiled.CountSQL, compiled.Args)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("preview query failed", "report_id", reportID, "sub_report_id", subReportID, "error", err)
		return nil, err
	}

	return &Result{
		Fields:        fieldViews(a, compiled),
		Rows:          Rows(compiled, rows),
		SearchOptions: domain.NewSearchOptions(find.Page, find.PageSize, total),
	}, nil
}

// Explain compiles a sub-report without executing it.
func (s *Service) Explain(ctx context.Context, reportID, subReportID int64, filters *domain.FilterTree) (*sqlgen.Compiled, error) {
	sub, err := s.load(ctx, reportID, subReportID)
	if err != nil {
		return nil, err
	}
	cfg := sub.Config
	if filters != nil {
		cfg = cfg.WithFilters(filters)
	}
	_, compiled, err := s.Compile(ctx, reportID, subReportID, cfg)
	return compiled, err
}

// Compile validates cfg and returns its SQL, from the cache when possible.
func (s *Service) Compile(ctx context.Context, reportID, subReportID int64, cfg domain.SubReportConfig) (*validate.Analysis, *sqlgen.Compiled, error) {
	a, err := s.validator.Validate(cfg)
	if err != nil {
		return nil, nil, err
	}
	compiled, hit, err := s.cache.GetOrCompile(ctx, reportID, subReportID, a, func() (*sqlgen.Compiled, error) {
		return s.compiler.Compile(a)
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug("sub-report compiled", "report_id", reportID, "sub_report_id", subReportID, "cache_hit", hit)
	return a, compiled, nil
}

func (s *Service) load(ctx context.Context, reportID, subReportID int64) (*domain.SubReport, error) {
	sub, err := s.subReports.GetByID(ctx, subReportID)
	if err != nil {
		return nil, err
	}
	if sub.ReportID != reportID {
		return nil, domain.ErrNotFound("sub-report %d not found in report %d", subReportID, reportID)
	}
	return sub, nil
}

func fieldViews(a *validate.Analysis, c *sqlgen.Compiled) []FieldView {
	views := make([]FieldView, 0, len(c.Columns))
	for _, id := range c.Columns {
		v := FieldView{ID: id, Type: c.FieldTypes[id]}
		if f, ok := a.Field(id); ok {
			v.Label = f.Spec.Label
		}
		views = append(views, v)
	}
	return views
}

// Rows keys each warehouse row by field id, normalizing values to their
// semantic types.
func Rows(c *sqlgen.Compiled, rs *domain.RowSet) []map[string]any {
	out := make([]map[string]any, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		m := make(map[string]any, len(c.Columns))
		for i, id := range c.Columns {
			if i < len(row) {
				m[id] = warehouse.Normalize(row[i], c.FieldTypes[id])
			}
		}
		out = append(out, m)
	}
	return out
}
