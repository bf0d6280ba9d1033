package report

import (
	"context"

	"govreport/internal/domain"
	"govreport/internal/validate"
)

// ValidateFormula type-checks a formula against optional sibling fields. A
// failure is a *domain.FormulaError locating the offending span.
func (s *Service) ValidateFormula(_ context.Context, source string, siblings []domain.FieldSpec) (*validate.FormulaCheck, error) {
	return s.validator.Formula(source, siblings)
}
