package validate

import (
	"govreport/internal/domain"
	"govreport/internal/formula"
)

// FormulaCheck describes a formula that parsed and type-checked.
type FormulaCheck struct {
	Type       string              `json:"type"`
	References []string            `json:"references"`
	Columns    []formula.ColumnRef `json:"columns"`
	Canonical  string              `json:"canonical"`
}

// Formula checks a standalone formula source. Sibling field references resolve
// against siblings: column siblings take their schema type, formula siblings
// their declared type. Failures are *domain.FormulaError values.
func (v *Validator) Formula(source string, siblings []domain.FieldSpec) (*FormulaCheck, error) {
	types := make(map[string]formula.Type, len(siblings))
	for _, s := range siblings {
		t := formula.FromSemantic(s.Type)
		if !s.IsFormula() {
			if ref, err := formula.ParseColumnExpression(s.Expression); err == nil {
				if st, err := v.schema.Resolve(ref.Table, ref.Column); err == nil {
					t = formula.FromSemantic(st)
				}
			}
		}
		if t == formula.TypeInvalid {
			t = formula.TypeAny
		}
		types[domain.CanonicalFieldID(s.ID)] = t
	}

	res, err := formula.Analyze(source, &fieldEnv{schema: v.schema, types: types})
	if err != nil {
		return nil, err
	}
	out := &FormulaCheck{
		Type:       res.Info.Type.String(),
		References: res.References,
		Columns:    res.Columns,
		Canonical:  res.Canonical,
	}
	if out.References == nil {
		out.References = []string{}
	}
	if out.Columns == nil {
		out.Columns = []formula.ColumnRef{}
	}
	return out, nil
}
