package api

import (
	"net/http"

	"govreport/internal/domain"
	"govreport/internal/service/preview"
)

type updateSubReportBody struct {
	Name   *string                 `json:"name"`
	Config *domain.SubReportConfig `json:"config"`
}

type explainBody struct {
	Filters *domain.FilterTree `json:"filters"`
}

// subReportIDs reads both path identifiers.
func subReportIDs(r *http.Request) (reportID, subReportID int64, err error) {
	if reportID, err = pathID(r, "reportID"); err != nil {
		return 0, 0, err
	}
	if subReportID, err = pathID(r, "subReportID"); err != nil {
		return 0, 0, err
	}
	return reportID, subReportID, nil
}

func (h *Handler) createSubReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "reportID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body subReportBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sub, err := h.reports.CreateSubReport(r.Context(), reportID, domain.CreateSubReportRequest{Name: body.Name, Config: body.Config})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, subReportToAPI(*sub))
}

func (h *Handler) getSubReport(w http.ResponseWriter, r *http.Request) {
	reportID, subID, err := subReportIDs(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sub, err := h.reports.GetSubReport(r.Context(), reportID, subID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, subReportToAPI(*sub))
}

func (h *Handler) updateSubReport(w http.ResponseWriter, r *http.Request) {
	reportID, subID, err := subReportIDs(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body updateSubReportBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sub, err := h.reports.UpdateSubReport(r.Context(), reportID, subID, domain.UpdateSubReportRequest{Name: body.Name, Config: body.Config})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, subReportToAPI(*sub))
}

func (h *Handler) deleteSubReport(w http.ResponseWriter, r *http.Request) {
	reportID, subID, err := subReportIDs(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.reports.DeleteSubReport(r.Context(), reportID, subID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	reportID, subID, err := subReportIDs(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var find preview.Find
	if err := decode(r, &find); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.previews.Preview(r.Context(), reportID, subID, find)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) explain(w http.ResponseWriter, r *http.Request) {
	reportID, subID, err := subReportIDs(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body explainBody
	if r.ContentLength != 0 {
		if err := decode(r, &body); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	c, err := h.previews.Explain(r.Context(), reportID, subID, body.Filters)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
