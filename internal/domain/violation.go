package domain

import (
	"fmt"
	"strings"
)

// ViolationCode identifies one class of configuration or formula problem.
type ViolationCode string

// Formula diagnostics.
const (
	CodeInvalidFormula       ViolationCode = "InvalidFormula"
	CodeUnknownField         ViolationCode = "UnknownField"
	CodeUnknownReference     ViolationCode = "UnknownReference"
	CodeCycleDetected        ViolationCode = "CycleDetected"
	CodeArityMismatch        ViolationCode = "ArityMismatch"
	CodeTypeMismatch         ViolationCode = "TypeMismatch"
	CodeInvalidDatePart      ViolationCode = "InvalidDatePart"
	CodeMalformedDateLiteral ViolationCode = "MalformedDateLiteral"
	CodeUnknownFunction      ViolationCode = "UnknownFunction"
)

// Sub-report configuration diagnostics.
const (
	CodeEmptyFields         ViolationCode = "EmptyFields"
	CodeInvalidFieldID      ViolationCode = "InvalidFieldID"
	CodeDuplicateFieldID    ViolationCode = "DuplicateFieldID"
	CodeInvalidFieldKind    ViolationCode = "InvalidFieldKind"
	CodeInvalidColumnField  ViolationCode = "InvalidColumnField"
	CodeUnknownGroupBy      ViolationCode = "UnknownGroupBy"
	CodeDuplicateGroupBy    ViolationCode = "DuplicateGroupBy"
	CodeMissingAggregate    ViolationCode = "MissingAggregate"
	CodeUnexpectedAggregate ViolationCode = "UnexpectedAggregate"
	CodeIllegalAggregate    ViolationCode = "IllegalAggregate"
	CodeUnknownFilterField  ViolationCode = "UnknownFilterField"
	CodeInvalidFilter       ViolationCode = "InvalidFilter"
	CodeInvalidOperator     ViolationCode = "InvalidOperator"
	CodeInvalidFilterValue  ViolationCode = "InvalidFilterValue"
	CodeUnknownSortField    ViolationCode = "UnknownSortField"
)

// Violation is one problem found while validating a sub-report configuration.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Field   string        `json:"field,omitempty"`
	Message string        `json:"message"`
	Cycle   []string      `json:"cycle,omitempty"`
	Start   *int          `json:"start,omitempty"`
	End     *int          `json:"end,omitempty"`
}

func (v Violation) String() string {
	var b strings.Builder
	b.WriteString(string(v.Code))
	if v.Field != "" {
		fmt.Fprintf(&b, " [%s]", v.Field)
	}
	b.WriteString(": ")
	b.WriteString(v.Message)
	if len(v.Cycle) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(v.Cycle, " -> "))
	}
	return b.String()
}

// ViolationFromFormula converts a formula diagnostic for the given field into a Violation.
func ViolationFromFormula(field string, fe *FormulaError) Violation {
	start, end := fe.Start, fe.End
	return Violation{
		Code:    fe.Code,
		Field:   field,
		Message: fe.Message,
		Start:   &start,
		End:     &end,
	}
}
