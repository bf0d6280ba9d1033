package api

import (
	"net/http"

	"govreport/internal/domain"
)

type createTemplateBody struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Tags        []string                   `json:"tags"`
	SubReports  []domain.TemplateSubReport `json:"sub_reports"`
}

type createTagBody struct {
	Name string `json:"name"`
}

type validateFormulaBody struct {
	Formula  string             `json:"formula"`
	Siblings []domain.FieldSpec `json:"siblings"`
}

// createTemplate stores a user template. Predefined templates only come from
// seeding.
func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var body createTemplateBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.reports.CreateTemplate(r.Context(), principal(r), domain.CreateTemplateRequest{
		Name:        body.Name,
		Description: body.Description,
		Tags:        body.Tags,
		SubReports:  body.SubReports,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, templateToAPI(*t))
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ts, total, err := h.reports.ListTemplates(r.Context(), page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(ts, total, page, templateToAPI))
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "templateID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.reports.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, templateToAPI(*t))
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "templateID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.reports.DeleteTemplate(r.Context(), caller(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createTag(w http.ResponseWriter, r *http.Request) {
	var body createTagBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.reports.CreateTag(r.Context(), principal(r), body.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tagToAPI(*t))
}

func (h *Handler) listTags(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tags, total, err := h.reports.ListTags(r.Context(), page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(tags, total, page, tagToAPI))
}

func (h *Handler) validateFormula(w http.ResponseWriter, r *http.Request) {
	var body validateFormulaBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	check, err := h.reports.ValidateFormula(r.Context(), body.Formula, body.Siblings)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}
