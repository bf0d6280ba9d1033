package domain

import "time"

// ExportStatus represents the lifecycle state of a report export.
type ExportStatus string

// Export lifecycle statuses. Completed and failed are terminal.
const (
	ExportStatusPending    ExportStatus = "pending"
	ExportStatusInProgress ExportStatus = "in_progress"
	ExportStatusCompleted  ExportStatus = "completed"
	ExportStatusFailed     ExportStatus = "failed"
)

// Active reports whether the export has not reached a terminal state.
func (s ExportStatus) Active() bool {
	return s == ExportStatusPending || s == ExportStatusInProgress
}

// ExportRunningWindow is how long a pending or in-progress export blocks new
// exports of the same report before it is considered abandoned.
const ExportRunningWindow = 24 * time.Hour

// MaxSignedURLTTL caps the lifetime of export download URLs.
const MaxSignedURLTTL = time.Hour

// Export messages recorded on failed rows.
const (
	ExportAbandonedMessage = "abandoned"
	ExportTimeoutMessage   = "export timed out"
)

// ExportTaskName is the background task name bound to export rows.
const ExportTaskName = "report.export"

// Export is one entry of a report's append-only export history.
type Export struct {
	ID           int64
	ReportID     int64
	Status       ExportStatus
	FileHandle   *string
	ErrorMessage *string
	CreatedBy    string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	StaleAt      *time.Time
	UpdatedAt    time.Time
}

// ExportStatusView is the result of export_status: the latest export plus a
// signed download URL when it has completed.
type ExportStatusView struct {
	Export       Export
	URL          *string
	URLExpiresAt *time.Time
}

// ExportTaskArgs is the payload enqueued for an export worker.
type ExportTaskArgs struct {
	ExportID int64 `json:"export_id"`
	ReportID int64 `json:"report_id"`
}
