package api

import (
	"time"

	"govreport/internal/domain"
)

type subReportView struct {
	ID        int64                  `json:"id"`
	ReportID  int64                  `json:"report_id"`
	Name      string                 `json:"name"`
	Position  int                    `json:"position"`
	Config    domain.SubReportConfig `json:"config"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func subReportToAPI(s domain.SubReport) subReportView {
	return subReportView{
		ID:        s.ID,
		ReportID:  s.ReportID,
		Name:      s.Name,
		Position:  s.Position,
		Config:    s.Config,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type reportView struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	RerunCadence    *domain.Cadence `json:"rerun_cadence"`
	TemplateID      *int64          `json:"template_id"`
	ConversationKey *string         `json:"conversation_key,omitempty"`
	CreatedBy       string          `json:"created_by"`
	Tags            []string        `json:"tags"`
	SubReports      []subReportView `json:"sub_reports,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func reportToAPI(r domain.Report) reportView {
	v := reportView{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		RerunCadence:    r.RerunCadence,
		TemplateID:      r.TemplateID,
		ConversationKey: r.ConversationKey,
		CreatedBy:       r.CreatedBy,
		Tags:            r.Tags,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	for _, s := range r.SubReports {
		v.SubReports = append(v.SubReports, subReportToAPI(s))
	}
	return v
}

type templateView struct {
	ID           int64                      `json:"id"`
	Name         string                     `json:"name"`
	Description  string                     `json:"description"`
	IsPredefined bool                       `json:"is_predefined"`
	Tags         []string                   `json:"tags"`
	SubReports   []domain.TemplateSubReport `json:"sub_reports"`
	CreatedBy    string                     `json:"created_by"`
	CreatedAt    time.Time                  `json:"created_at"`
}

func templateToAPI(t domain.Template) templateView {
	v := templateView{
		ID:           t.ID,
		Name:         t.Name,
		Description:  t.Description,
		IsPredefined: t.IsPredefined,
		Tags:         t.Tags,
		SubReports:   t.SubReports,
		CreatedBy:    t.CreatedBy,
		CreatedAt:    t.CreatedAt,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if v.SubReports == nil {
		v.SubReports = []domain.TemplateSubReport{}
	}
	return v
}

type tagView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func tagToAPI(t domain.Tag) tagView {
	return tagView{ID: t.ID, Name: t.Name, CreatedBy: t.CreatedBy, CreatedAt: t.CreatedAt}
}

type exportView struct {
	ID           int64               `json:"id"`
	ReportID     int64               `json:"report_id"`
	Status       domain.ExportStatus `json:"status"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CreatedBy    string              `json:"created_by"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	StaleAt      *time.Time          `json:"stale_at,omitempty"`
	URL          *string             `json:"url,omitempty"`
	URLExpiresAt *time.Time          `json:"url_expires_at,omitempty"`
}

// exportToAPI omits the blob handle; clients only ever see signed URLs.
func exportToAPI(e domain.Export) exportView {
	return exportView{
		ID:           e.ID,
		ReportID:     e.ReportID,
		Status:       e.Status,
		ErrorMessage: e.ErrorMessage,
		CreatedBy:    e.CreatedBy,
		CreatedAt:    e.CreatedAt,
		StartedAt:    e.StartedAt,
		CompletedAt:  e.CompletedAt,
		StaleAt:      e.StaleAt,
	}
}

func exportStatusToAPI(s domain.ExportStatusView) exportView {
	v := exportToAPI(s.Export)
	v.URL = s.URL
	v.URLExpiresAt = s.URLExpiresAt
	return v
}

// pageView wraps list results with an opaque continuation token.
type pageView[T any] struct {
	Items         []T    `json:"items"`
	TotalCount    int64  `json:"total_count"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

func newPage[S, T any](items []S, total int64, page domain.PageRequest, convert func(S) T) pageView[T] {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, convert(it))
	}
	return pageView[T]{
		Items:         out,
		TotalCount:    total,
		NextPageToken: page.Next(total),
	}
}
