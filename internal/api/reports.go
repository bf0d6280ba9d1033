package api

import (
	"net/http"

	"govreport/internal/domain"
)

type subReportBody struct {
	Name   string                 `json:"name"`
	Config domain.SubReportConfig `json:"config"`
}

type createReportBody struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	RerunCadence    *domain.Cadence `json:"rerun_cadence"`
	TemplateID      *int64          `json:"template_id"`
	ConversationKey *string         `json:"conversation_key"`
	Tags            []string        `json:"tags"`
	SubReports      []subReportBody `json:"sub_reports"`
}

type updateReportBody struct {
	Name              *string         `json:"name"`
	Description       *string         `json:"description"`
	RerunCadence      *domain.Cadence `json:"rerun_cadence"`
	ClearRerunCadence bool            `json:"clear_rerun_cadence"`
	ConversationKey   *string         `json:"conversation_key"`
	Tags              *[]string       `json:"tags"`
}

func (h *Handler) createReport(w http.ResponseWriter, r *http.Request) {
	var body createReportBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req := domain.CreateReportRequest{
		Name:            body.Name,
		Description:     body.Description,
		RerunCadence:    body.RerunCadence,
		TemplateID:      body.TemplateID,
		ConversationKey: body.ConversationKey,
		Tags:            body.Tags,
	}
	for _, s := range body.SubReports {
		req.SubReports = append(req.SubReports, domain.CreateSubReportRequest{Name: s.Name, Config: s.Config})
	}

	rep, err := h.reports.CreateReport(r.Context(), principal(r), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, reportToAPI(*rep))
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	filter := domain.ReportFilter{Search: q.Get("search"), Tags: q["tag"]}

	reps, total, err := h.reports.ListReports(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(reps, total, page, reportToAPI))
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "reportID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rep, err := h.reports.GetReport(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reportToAPI(*rep))
}

func (h *Handler) updateReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "reportID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body updateReportBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rep, err := h.reports.UpdateReport(r.Context(), id, domain.UpdateReportRequest{
		Name:            body.Name,
		Description:     body.Description,
		RerunCadence:    body.RerunCadence,
		ClearCadence:    body.ClearRerunCadence,
		ConversationKey: body.ConversationKey,
		Tags:            body.Tags,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reportToAPI(*rep))
}

func (h *Handler) deleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "reportID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.reports.DeleteReport(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
