package report

import (
	"context"

	"govreport/internal/domain"
)

// CreateSubReport appends a validated sub-report to a report.
func (s *Service) CreateSubReport(ctx context.Context, reportID int64, req domain.CreateSubReportRequest) (*domain.SubReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	a, err := s.validator.Validate(req.Config)
	if err != nil {
		return nil, err
	}

	sub, err := s.subReports.Create(ctx, &domain.SubReport{ReportID: reportID, Name: req.Name, Config: a.Config})
	if err != nil {
		return nil, err
	}
	s.reportEdited(ctx, reportID)
	s.logger.Info("sub-report created", "report_id", reportID, "sub_report_id", sub.ID)
	return sub, nil
}

// GetSubReport returns a sub-report of the given report.
func (s *Service) GetSubReport(ctx context.Context, reportID, subReportID int64) (*domain.SubReport, error) {
	sub, err := s.subReports.GetByID(ctx, subReportID)
	if err != nil {
		return nil, err
	}
	if sub.ReportID != reportID {
		return nil, domain.ErrNotFound("sub-report %d not found in report %d", subReportID, reportID)
	}
	return sub, nil
}

// UpdateSubReport applies a partial update. A new configuration is validated
// in full and drops the sub-report's cached SQL.
func (s *Service) UpdateSubReport(ctx context.Context, reportID, subReportID int64, req domain.UpdateSubReportRequest) (*domain.SubReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sub, err := s.GetSubReport(ctx, reportID, subReportID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		sub.Name = *req.Name
	}
	if req.Config != nil {
		a, err := s.validator.Validate(*req.Config)
		if err != nil {
			return nil, err
		}
		sub.Config = a.Config
	}

	updated, err := s.subReports.Update(ctx, sub)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, subReportID)
	s.reportEdited(ctx, reportID)
	s.logger.Info("sub-report updated", "report_id", reportID, "sub_report_id", subReportID)
	return updated, nil
}

// DeleteSubReport removes a sub-report from its report.
func (s *Service) DeleteSubReport(ctx context.Context, reportID, subReportID int64) error {
	if _, err := s.GetSubReport(ctx, reportID, subReportID); err != nil {
		return err
	}
	if err := s.subReports.Delete(ctx, subReportID); err != nil {
		return err
	}
	s.invalidate(ctx, subReportID)
	s.reportEdited(ctx, reportID)
	s.logger.Info("sub-report deleted", "report_id", reportID, "sub_report_id", subReportID)
	return nil
}

func (s *Service) reportEdited(ctx context.Context, reportID int64) {
	if err := s.reports.Touch(ctx, reportID); err != nil {
		s.logger.Warn("touch report", "report_id", reportID, "error", err)
	}
	s.markStale(ctx, reportID)
}
