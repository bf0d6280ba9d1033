package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"govreport/internal/domain"
	"govreport/internal/middleware"
)

// httpStatus maps the status hint of a domain error to an HTTP status code.
func httpStatus(err error) int {
	switch domain.StatusOf(err) {
	case domain.StatusNotFound:
		return http.StatusNotFound
	case domain.StatusBadRequest:
		return http.StatusBadRequest
	case domain.StatusConflict:
		return http.StatusConflict
	case domain.StatusForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Kind       domain.Kind        `json:"kind"`
	Status     domain.Status      `json:"status"`
	Message    string             `json:"message"`
	Violations []domain.Violation `json:"violations,omitempty"`
	Formula    *formulaError      `json:"formula,omitempty"`
	Tables     []string           `json:"tables,omitempty"`
	ExportID   *int64             `json:"export_id,omitempty"`
}

type formulaError struct {
	Code  domain.ViolationCode `json:"code"`
	Start int                  `json:"start"`
	End   int                  `json:"end"`
}

func errorResponse(err error) errorBody {
	body := errorBody{
		Kind:    domain.KindOf(err),
		Status:  domain.StatusOf(err),
		Message: err.Error(),
	}

	var (
		validation *domain.ValidationError
		formula    *domain.FormulaError
		join       *domain.JoinError
		running    *domain.AlreadyRunningError
		internal   *domain.InternalError
	)
	switch {
	case errors.As(err, &validation):
		body.Message = validation.Message
		body.Violations = validation.Violations
	case errors.As(err, &formula):
		body.Message = formula.Message
		body.Formula = &formulaError{Code: formula.Code, Start: formula.Start, End: formula.End}
	case errors.As(err, &join):
		body.Tables = join.Tables
	case errors.As(err, &running):
		body.ExportID = &running.ExportID
	case errors.As(err, &internal):
		body.Message = internal.Message
	}
	if body.Kind == domain.KindInternal && internal == nil {
		body.Message = "internal error"
	}
	return body
}

// writeError writes err as JSON. Internal errors are logged with their cause
// and reach the client only as their safe message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
