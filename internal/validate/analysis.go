// Package validate checks sub-report configurations against the schema registry
// and the formula language, collecting every violation into one error.
package validate

import (
	"govreport/internal/domain"
	"govreport/internal/formula"
)

// Field is a validated FieldSpec with its parsed expression and resolved type.
type Field struct {
	Spec domain.FieldSpec
	// Root is the parsed expression. Column fields parse to a single *formula.FieldRef.
	Root formula.Node
	// Info is the type-check result for formula fields; nil for column fields.
	Info *formula.Info
	// Type is the inferred semantic type, falling back to the declared type when
	// inference leaves it open (None literals, deferred references).
	Type    domain.SemanticType
	Grouped bool
}

// Column returns the schema column of a column field.
func (f *Field) Column() (*formula.FieldRef, bool) {
	if f.Spec.IsFormula() {
		return nil, false
	}
	ref, ok := f.Root.(*formula.FieldRef)
	return ref, ok
}

// Analysis is the result of a successful validation. The SQL compiler consumes
// it directly so formulas are parsed once.
type Analysis struct {
	Config domain.SubReportConfig
	// Fields in declaration order.
	Fields []*Field
	// Order lists field ids so that referenced fields precede their referents.
	Order []string
	byID  map[string]*Field
}

// Field returns the analysed field with the given id.
func (a *Analysis) Field(id string) (*Field, bool) {
	f, ok := a.byID[id]
	return f, ok
}

// TableReferences lists the schema columns referenced by column fields,
// formulas, group-by entries and filter leaves. A column appears once per
// reference so callers can rank tables by use.
func (a *Analysis) TableReferences() []formula.ColumnRef {
	var refs []formula.ColumnRef
	fieldCols := func(f *Field) []formula.ColumnRef {
		return formula.Columns(f.Root)
	}
	for _, f := range a.Fields {
		refs = append(refs, fieldCols(f)...)
	}
	for _, id := range a.Config.GroupBy {
		if f, ok := a.byID[id]; ok {
			refs = append(refs, fieldCols(f)...)
		}
	}
	if a.Config.Filters != nil {
		a.Config.Filters.Walk(func(leaf domain.FilterTree) {
			if f, ok := a.byID[leaf.Field]; ok {
				refs = append(refs, fieldCols(f)...)
			}
		})
	}
	return refs
}
