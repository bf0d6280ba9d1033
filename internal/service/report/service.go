// Package report manages report definitions: reports, sub-reports, templates
// and tags. Every configuration write is validated against the schema registry
// and the formula language before it is stored.
package report

import (
	"context"
	"log/slog"
	"time"

	"govreport/internal/domain"
	"govreport/internal/validate"
)

// CacheInvalidator drops compiled SQL cached for a sub-report.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, subReportID int64) error
}

// Scheduler is told to re-read rerun cadences after reports change.
type Scheduler interface {
	Reload(ctx context.Context) error
}

// Deps holds the collaborators of a Service.
type Deps struct {
	Reports    domain.ReportRepository
	SubReports domain.SubReportRepository
	Templates  domain.TemplateRepository
	Tags       domain.TagRepository
	Exports    domain.ExportRepository
	Validator  *validate.Validator
	Cache      CacheInvalidator
	Logger     *slog.Logger
}

// Service implements the report definition operations.
type Service struct {
	reports    domain.ReportRepository
	subReports domain.SubReportRepository
	templates  domain.TemplateRepository
	tags       domain.TagRepository
	exports    domain.ExportRepository
	validator  *validate.Validator
	cache      CacheInvalidator
	scheduler  Scheduler
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Service.
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		reports:    d.Reports,
		subReports: d.SubReports,
		templates:  d.Templates,
		tags:       d.Tags,
		exports:    d.Exports,
		validator:  d.Validator,
		cache:      d.Cache,
		logger:     logger.With("component", "report-service"),
		now:        time.Now,
	}
}

// SetScheduler registers the rerun scheduler. It is set after construction
// because the scheduler itself depends on the export service.
func (s *Service) SetScheduler(sch Scheduler) {
	s.scheduler = sch
}

// CreateReport creates a report owned by principal. When the request names a
// template, the template's sub-reports are cloned ahead of the request's own.
func (s *Service) CreateReport(ctx context.Context, principal string, req domain.CreateReportRequest) (*domain.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var subs []domain.SubReport
	if req.TemplateID != nil {
		tmpl, err := s.templates.GetByID(ctx, *req.TemplateID)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return nil, domain.ErrTemplateNotFound(*req.TemplateID)
			}
			return nil, err
		}
		for _, ts := range tmpl.SubReports {
			subs = append(subs, domain.SubReport{Name: ts.Name, Config: ts.Config})
		}
	}
	for _, sr := range req.SubReports {
		subs = append(subs, domain.SubReport{Name: sr.Name, Config: sr.Config})
	}
	for i := range subs {
		a, err := s.validator.Validate(subs[i].Config)
		if err != nil {
			return nil, err
		}
		subs[i].Config = a.Config
	}

	rep, err := s.reports.Create(ctx, &domain.Report{
		Name:            req.Name,
		Description:     req.Description,
		RerunCadence:    req.RerunCadence,
		TemplateID:      req.TemplateID,
		ConversationKey: req.ConversationKey,
		CreatedBy:       principal,
		Tags:            req.Tags,
		SubReports:      subs,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("report created", "report_id", rep.ID, "principal", principal, "sub_reports", len(rep.SubReports))
	if rep.RerunCadence != nil {
		s.reloadSchedule(ctx)
	}
	return rep, nil
}

// GetReport returns a report with its tags and sub-reports.
func (s *Service) GetReport(ctx context.Context, id int64) (*domain.Report, error) {
	return s.reports.GetByID(ctx, id)
}

// UpdateReport applies a partial update and marks the latest completed export stale.
func (s *Service) UpdateReport(ctx context.Context, id int64, req domain.UpdateReportRequest) (*domain.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rep, err := s.reports.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.markStale(ctx, id)
	if req.RerunCadence != nil || req.ClearCadence {
		s.reloadSchedule(ctx)
	}
	s.logger.Info("report updated", "report_id", id)
	return rep, nil
}

// DeleteReport removes a report with its sub-reports, tag links and exports.
func (s *Service) DeleteReport(ctx context.Context, id int64) error {
	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.reports.Delete(ctx, id); err != nil {
		return err
	}
	for _, sr := range rep.SubReports {
		s.invalidate(ctx, sr.ID)
	}
	if rep.RerunCadence != nil {
		s.reloadSchedule(ctx)
	}
	s.logger.Info("report deleted", "report_id", id)
	return nil
}

// ListReports returns a page of reports matching filter.
func (s *Service) ListReports(ctx context.Context, filter domain.ReportFilter, page domain.PageRequest) ([]domain.Report, int64, error) {
	return s.reports.List(ctx, filter, page)
}

// markStale flags the latest completed export after any write to the report.
// The write has already committed, so a failure here is logged only.
func (s *Service) markStale(ctx context.Context, reportID int64) {
	if err := s.exports.MarkStale(ctx, reportID, s.now()); err != nil {
		s.logger.Error("mark export stale", "report_id", reportID, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, subReportID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, subReportID); err != nil {
		s.logger.Warn("invalidate compiled sql", "sub_report_id", subReportID, "error", err)
	}
}

func (s *Service) reloadSchedule(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Reload(ctx); err != nil {
		s.logger.Error("reload rerun schedule", "error", err)
	}
}
