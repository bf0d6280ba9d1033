package domain

import (
	"strings"
	"time"
)

// Template is a named blueprint of sub-reports, cloned into new reports.
type Template struct {
	ID           int64
	Name         string
	Description  string
	IsPredefined bool
	Tags         []string
	SubReports   []TemplateSubReport
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TemplateSubReport is one sub-report blueprint inside a template.
type TemplateSubReport struct {
	Name   string          `json:"name" yaml:"name"`
	Config SubReportConfig `json:"config" yaml:"config"`
}

// CreateTemplateRequest holds parameters for creating a template.
type CreateTemplateRequest struct {
	Name         string
	Description  string
	IsPredefined bool
	Tags         []string
	SubReports   []TemplateSubReport
}

// Validate checks that the request is well-formed.
func (r *CreateTemplateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrValidation("template name is required")
	}
	for _, sr := range r.SubReports {
		if strings.TrimSpace(sr.Name) == "" {
			return ErrValidation("template sub-report name is required")
		}
	}
	return nil
}

// Tag labels reports and templates.
type Tag struct {
	ID        int64
	Name      string
	CreatedBy string
	CreatedAt time.Time
}
