package domain

import (
	"context"
	"time"
)

// ReportRepository persists reports together with their tag links and sub-reports.
type ReportRepository interface {
	Create(ctx context.Context, r *Report) (*Report, error)
	GetByID(ctx context.Context, id int64) (*Report, error)
	Update(ctx context.Context, id int64, req UpdateReportRequest) (*Report, error)
	Delete(ctx context.Context, id int64) error
	// Touch bumps the report's updated_at after a sub-report edit.
	Touch(ctx context.Context, id int64) error
	List(ctx context.Context, filter ReportFilter, page PageRequest) ([]Report, int64, error)
	ListScheduled(ctx context.Context) ([]Report, error)
}

// SubReportRepository persists sub-reports.
type SubReportRepository interface {
	Create(ctx context.Context, s *SubReport) (*SubReport, error)
	GetByID(ctx context.Context, id int64) (*SubReport, error)
	Update(ctx context.Context, s *SubReport) (*SubReport, error)
	Delete(ctx context.Context, id int64) error
	ListByReport(ctx context.Context, reportID int64) ([]SubReport, error)
}

// TemplateRepository persists report templates.
type TemplateRepository interface {
	Create(ctx context.Context, t *Template) (*Template, error)
	GetByID(ctx context.Context, id int64) (*Template, error)
	GetByName(ctx context.Context, name string) (*Template, error)
	List(ctx context.Context, page PageRequest) ([]Template, int64, error)
	Delete(ctx context.Context, id int64) error
}

// TagRepository persists tag definitions.
type TagRepository interface {
	Create(ctx context.Context, t *Tag) (*Tag, error)
	List(ctx context.Context, page PageRequest) ([]Tag, int64, error)
}

// ExportRepository persists the export history and guards its state machine.
type ExportRepository interface {
	// CreateIfIdle inserts a pending export unless an active export younger than
	// window exists, in which case it returns *AlreadyRunningError. Older active
	// exports are marked failed as abandoned in the same transaction.
	CreateIfIdle(ctx context.Context, e *Export, window time.Duration, now time.Time) (*Export, error)
	GetByID(ctx context.Context, id int64) (*Export, error)
	Latest(ctx context.Context, reportID int64) (*Export, error)
	ListByReport(ctx context.Context, reportID int64, page PageRequest) ([]Export, int64, error)
	// MarkInProgress performs the conditional pending -> in_progress transition
	// and reports whether this caller won it.
	MarkInProgress(ctx context.Context, id int64) (bool, error)
	MarkCompleted(ctx context.Context, id int64, fileHandle string) error
	MarkFailed(ctx context.Context, id int64, message string) error
	// MarkStale stamps stale_at on the most recent completed export of the report.
	MarkStale(ctx context.Context, reportID int64, at time.Time) error
}
