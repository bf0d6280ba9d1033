package domain

import (
	"strings"
	"time"
)

// Cadence is how often a report is re-exported automatically.
type Cadence string

// Rerun cadences.
const (
	CadenceDaily     Cadence = "daily"
	CadenceWeekly    Cadence = "weekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceYearly    Cadence = "yearly"
)

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceQuarterly, CadenceYearly:
		return true
	}
	return false
}

// Report is a named, user-owned collection of sub-reports.
type Report struct {
	ID              int64
	Name            string
	Description     string
	RerunCadence    *Cadence
	TemplateID      *int64
	ConversationKey *string
	CreatedBy       string
	Tags            []string
	SubReports      []SubReport
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SubReport is a single tabular result definition belonging to a report.
type SubReport struct {
	ID        int64
	ReportID  int64
	Name      string
	Position  int
	Config    SubReportConfig
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateReportRequest holds parameters for creating a report.
type CreateReportRequest struct {
	Name            string
	Description     string
	RerunCadence    *Cadence
	TemplateID      *int64
	ConversationKey *string
	Tags            []string
	SubReports      []CreateSubReportRequest
}

// Validate checks that the request is well-formed.
func (r *CreateReportRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrValidation("report name is required")
	}
	if r.RerunCadence != nil && !r.RerunCadence.Valid() {
		return ErrValidation("unknown rerun cadence %q", *r.RerunCadence)
	}
	for i := range r.SubReports {
		if err := r.SubReports[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// UpdateReportRequest holds a partial report update. Nil fields are left unchanged.
type UpdateReportRequest struct {
	Name            *string
	Description     *string
	RerunCadence    *Cadence
	ClearCadence    bool
	ConversationKey *string
	Tags            *[]string
}

// Validate checks that the request is well-formed.
func (r *UpdateReportRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return ErrValidation("report name must not be empty")
	}
	if r.RerunCadence != nil && !r.RerunCadence.Valid() {
		return ErrValidation("unknown rerun cadence %q", *r.RerunCadence)
	}
	return nil
}

// CreateSubReportRequest holds parameters for creating a sub-report.
type CreateSubReportRequest struct {
	Name   string
	Config SubReportConfig
}

// Validate checks that the request is well-formed. Config semantics are checked
// separately against the schema.
func (r *CreateSubReportRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrValidation("sub-report name is required")
	}
	return nil
}

// UpdateSubReportRequest holds a partial sub-report update.
type UpdateSubReportRequest struct {
	Name   *string
	Config *SubReportConfig
}

// Validate checks that the request is well-formed.
func (r *UpdateSubReportRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return ErrValidation("sub-report name must not be empty")
	}
	return nil
}

// ReportFilter narrows list_reports.
type ReportFilter struct {
	Search string
	Tags   []string
}
