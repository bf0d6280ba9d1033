package api

import (
	"net/http"
)

func (h *Handler) createExport(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "reportID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	exp, err := h.exports.Export(r.Context(), principal(r), reportID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, exportToAPI(*exp))
}

func (h *Handler) exportStatus(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "reportID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	st, err := h.exports.Status(r.Context(), reportID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, exportStatusToAPI(*st))
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "reportID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	exps, total, err := h.exports.List(r.Context(), reportID, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(exps, total, page, exportToAPI))
}
