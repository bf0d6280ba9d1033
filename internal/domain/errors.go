// Package domain defines the report model, repository ports, and errors shared by
// the reporting core.
package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the machine-readable classification carried by every error the core returns.
type Kind string

// Error kinds.
const (
	KindNotFound         Kind = "NotFound"
	KindTemplateNotFound Kind = "TemplateNotFound"
	KindTagsNotFound     Kind = "TagsNotFound"
	KindNameConflict     Kind = "NameConflict"
	KindValidationFailed Kind = "ValidationFailed"
	KindInvalidFormula   Kind = "InvalidFormula"
	KindAlreadyRunning   Kind = "AlreadyRunning"
	KindDisconnected     Kind = "Disconnected"
	KindAmbiguousJoin    Kind = "AmbiguousJoin"
	KindAccessDenied     Kind = "AccessDenied"
	KindInternal         Kind = "Internal"
)

// Status is a transport-neutral hint for how the API layer should report an error.
type Status string

// Status hints.
const (
	StatusNotFound   Status = "not_found"
	StatusBadRequest Status = "bad_request"
	StatusConflict   Status = "conflict"
	StatusForbidden  Status = "forbidden"
	StatusInternal   Status = "internal"
)

// KindedError is implemented by every typed error in this package.
type KindedError interface {
	error
	Kind() Kind
	Status() Status
}

// KindOf returns the kind of err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	var ke KindedError
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return KindInternal
}

// StatusOf returns the status hint of err. Unclassified errors are internal.
func StatusOf(err error) Status {
	var ke KindedError
	if errors.As(err, &ke) {
		return ke.Status()
	}
	return StatusInternal
}

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
	kind    Kind
}

func (e *NotFoundError) Error() string { return e.Message }

// Kind implements KindedError.
func (e *NotFoundError) Kind() Kind {
	if e.kind == "" {
		return KindNotFound
	}
	return e.kind
}

// Status implements KindedError.
func (e *NotFoundError) Status() Status { return StatusNotFound }

// AccessDeniedError indicates the caller may not perform the operation.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// Kind implements KindedError.
func (e *AccessDeniedError) Kind() Kind { return KindAccessDenied }

// Status implements KindedError.
func (e *AccessDeniedError) Status() Status { return StatusForbidden }

// ValidationError indicates invalid input. Violations enumerates every problem
// found when the input is a sub-report configuration.
type ValidationError struct {
	Message    string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// Kind implements KindedError.
func (e *ValidationError) Kind() Kind { return KindValidationFailed }

// Status implements KindedError.
func (e *ValidationError) Status() Status { return StatusBadRequest }

// Has reports whether any violation carries the given code.
func (e *ValidationError) Has(code ViolationCode) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// ConflictError indicates a unique-name invariant was violated.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// Kind implements KindedError.
func (e *ConflictError) Kind() Kind { return KindNameConflict }

// Status implements KindedError.
func (e *ConflictError) Status() Status { return StatusConflict }

// AlreadyRunningError is returned when an export for the report is still pending
// or in progress.
type AlreadyRunningError struct {
	ReportID int64
	ExportID int64
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("export %d for report %d is already running", e.ExportID, e.ReportID)
}

// Kind implements KindedError.
func (e *AlreadyRunningError) Kind() Kind { return KindAlreadyRunning }

// Status implements KindedError.
func (e *AlreadyRunningError) Status() Status { return StatusConflict }

// FormulaError is a parse or type-check failure located at [Start, End) in the
// formula source.
type FormulaError struct {
	Code    ViolationCode
	Message string
	Start   int
	End     int
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", e.Code, e.Start, e.End, e.Message)
}

// Kind implements KindedError.
func (e *FormulaError) Kind() Kind { return KindInvalidFormula }

// Status implements KindedError.
func (e *FormulaError) Status() Status { return StatusBadRequest }

// JoinError is returned when no join plan connects the referenced tables.
type JoinError struct {
	JoinKind Kind
	Message  string
	Tables   []string
}

func (e *JoinError) Error() string { return e.Message }

// Kind implements KindedError.
func (e *JoinError) Kind() Kind { return e.JoinKind }

// Status implements KindedError.
func (e *JoinError) Status() Status { return StatusBadRequest }

// InternalError wraps an unexpected infrastructure failure. Message is safe to
// show to callers; Err is only logged.
type InternalError struct {
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() error { return e.Err }

// Kind implements KindedError.
func (e *InternalError) Kind() Kind { return KindInternal }

// Status implements KindedError.
func (e *InternalError) Status() Status { return StatusInternal }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrTemplateNotFound reports a missing template reference.
func ErrTemplateNotFound(id int64) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf("template %d not found", id), kind: KindTemplateNotFound}
}

// ErrTagsNotFound reports tag names that do not exist.
func ErrTagsNotFound(names []string) *NotFoundError {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return &NotFoundError{
		Message: fmt.Sprintf("tags not found: %s", strings.Join(sorted, ", ")),
		kind:    KindTagsNotFound,
	}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidationFailed creates a ValidationError listing every violation.
func ErrValidationFailed(violations []Violation) *ValidationError {
	return &ValidationError{Message: "sub-report configuration is invalid", Violations: violations}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrInternal wraps err as an InternalError with a caller-safe message.
func ErrInternal(message string, err error) *InternalError {
	return &InternalError{Message: message, Err: err}
}
