// Package export runs report exports: it guards the one-export-at-a-time
// rule, hands work to the background queue, renders workbooks, and signs
// download URLs for finished exports.
package export

import (
	"context"
	"log/slog"
	"time"

	"govreport/internal/blob"
	"govreport/internal/domain"
	"govreport/internal/metrics"
	"govreport/internal/sqlgen"
	"govreport/internal/validate"
)

// SQLSource validates a sub-report configuration and returns its compiled SQL.
type SQLSource interface {
	Compile(ctx context.Context, reportID, subReportID int64, cfg domain.SubReportConfig) (*validate.Analysis, *sqlgen.Compiled, error)
}

// Config tunes exports.
type Config struct {
	// URLTTL is the lifetime of download URLs, capped at one hour.
	URLTTL time.Duration
	// JobTimeout bounds one export run.
	JobTimeout time.Duration
	// PageSize is the number of rows fetched from the warehouse per query.
	PageSize int
}

// DefaultConfig returns the export defaults.
func DefaultConfig() Config {
	return Config{URLTTL: time.Hour, JobTimeout: time.Hour, PageSize: 5000}
}

// Deps holds the collaborators of a Service.
type Deps struct {
	Reports   domain.ReportRepository
	Exports   domain.ExportRepository
	Queue     domain.TaskQueue
	Blobs     domain.BlobStore
	SQL       SQLSource
	Warehouse domain.Warehouse
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Service implements export, export_status and list_exports, and runs export tasks.
type Service struct {
	reports   domain.ReportRepository
	exports   domain.ExportRepository
	queue     domain.TaskQueue
	blobs     domain.BlobStore
	sql       SQLSource
	warehouse domain.Warehouse
	metrics   *metrics.Metrics
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Service. Zero config values take their defaults.
func New(d Deps, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = def.URLTTL
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	return &Service{
		reports:   d.Reports,
		exports:   d.Exports,
		queue:     d.Queue,
		blobs:     d.Blobs,
		sql:       d.SQL,
		warehouse: d.Warehouse,
		metrics:   d.Metrics,
		cfg:       cfg,
		logger:    d.Logger.With("component", "export"),
		now:       time.Now,
	}
}

// Export records a pending export of the report and enqueues the task that
// renders it. It fails with AlreadyRunning while a younger export is active.
func (s *Service) Export(ctx context.Context, principal string, reportID int64) (*domain.Export, error) {
	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return nil, err
	}

	exp, err := s.exports.CreateIfIdle(ctx, &domain.Export{ReportID: reportID, CreatedBy: principal}, domain.ExportRunningWindow, s.now())
	if err != nil {
		return nil, err
	}
	s.metrics.ExportTransition(string(domain.ExportStatusPending))

	args := domain.ExportTaskArgs{ExportID: exp.ID, ReportID: reportID}
	taskID, err := s.queue.Enqueue(ctx, domain.ExportTaskName, args)
	if err != nil {
		s.logger.Error("enqueue export", "export_id", exp.ID, "report_id", reportID, "error", err)
		if ferr := s.exports.MarkFailed(context.WithoutCancel(ctx), exp.ID, "export could not be queued"); ferr != nil {
			s.logger.Error("fail unqueued export", "export_id", exp.ID, "error", ferr)
		}
		s.metrics.ExportTransition(string(domain.ExportStatusFailed))
		return nil, domain.ErrInternal("export could not be queued", err)
	}

	s.logger.Info("export requested", "export_id", exp.ID, "report_id", reportID, "principal", principal, "task_id", taskID)
	return exp, nil
}

// Status returns the latest export of the report. A completed export carries a
// signed download URL.
func (s *Service) Status(ctx context.Context, reportID int64) (*domain.ExportStatusView, error) {
	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	exp, err := s.exports.Latest(ctx, reportID)
	if err != nil {
		return nil, err
	}

	view := &domain.ExportStatusView{Export: *exp}
	if exp.Status != domain.ExportStatusCompleted || exp.FileHandle == nil {
		return view, nil
	}

	ttl := blob.ClampExpiry(s.cfg.URLTTL)
	var url string
	for attempt := 0; attempt < 2; attempt++ {
		url, err = s.blobs.SignReadURL(ctx, *exp.FileHandle, ttl)
		if err == nil {
			break
		}
		s.logger.Warn("sign export url", "export_id", exp.ID, "attempt", attempt+1, "error", err)
	}
	if err != nil {
		return nil, domain.ErrInternal("export download url unavailable", err)
	}
	expires := s.now().Add(ttl).UTC()
	view.URL = &url
	view.URLExpiresAt = &expires
	return view, nil
}

// List returns the export history of a report, newest first.
func (s *Service) List(ctx context.Context, reportID int64, page domain.PageRequest) ([]domain.Export, int64, error) {
	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return nil, 0, err
	}
	return s.exports.ListByReport(ctx, reportID, page)
}
