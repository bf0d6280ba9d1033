package validate

import (
	"errors"
	"fmt"

	"govreport/internal/domain"
	"govreport/internal/formula"
	"govreport/internal/schema"
)

// Validator checks sub-report configurations.
type Validator struct {
	schema *schema.Registry
}

// New creates a Validator over the given schema registry.
func New(reg *schema.Registry) *Validator {
	return &Validator{schema: reg}
}

// Validate checks cfg and returns its analysis. Field ids are compared in
// canonical case and Analysis.Config holds the canonical configuration. When
// anything is wrong it returns a *domain.ValidationError listing every
// violation found.
func (v *Validator) Validate(cfg domain.SubReportConfig) (*Analysis, error) {
	cfg = cfg.Canonical()
	r := &run{
		schema:   v.schema,
		cfg:      cfg,
		analysis: &Analysis{Config: cfg, byID: make(map[string]*Field, len(cfg.Fields))},
		types:    make(map[string]formula.Type, len(cfg.Fields)),
	}
	r.fields()
	r.formulas()
	r.groupBy()
	r.filters()
	r.sort()

	if len(r.violations) > 0 {
		return nil, domain.ErrValidationFailed(r.violations)
	}
	return r.analysis, nil
}

type run struct {
	schema     *schema.Registry
	cfg        domain.SubReportConfig
	analysis   *Analysis
	types      map[string]formula.Type
	violations []domain.Violation
}

func (r *run) add(code domain.ViolationCode, field, format string, args ...any) {
	r.violations = append(r.violations, domain.Violation{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *run) addFormula(field string, err error) {
	var fe *domain.FormulaError
	if errors.As(err, &fe) {
		r.violations = append(r.violations, domain.ViolationFromFormula(field, fe))
		return
	}
	r.add(domain.CodeInvalidFormula, field, "%v", err)
}

// fields checks ids, kinds and declared types, parses every expression and
// resolves column fields.
func (r *run) fields() {
	if len(r.cfg.Fields) == 0 {
		r.add(domain.CodeEmptyFields, "", "a sub-report needs at least one field")
		return
	}

	for _, spec := range r.cfg.Fields {
		if !domain.IsFieldID(spec.ID) {
			r.add(domain.CodeInvalidFieldID, spec.ID, "field id %q is not a canonical UUID", spec.ID)
			continue
		}
		if _, dup := r.analysis.byID[spec.ID]; dup {
			r.add(domain.CodeDuplicateFieldID, spec.ID, "field id %s is used more than once", spec.ID)
			continue
		}
		if !spec.Type.Valid() {
			r.add(domain.CodeTypeMismatch, spec.ID, "unknown field type %q", spec.Type)
		}

		f := &Field{Spec: spec, Type: spec.Type, Grouped: r.cfg.IsGrouped(spec.ID)}
		r.analysis.byID[spec.ID] = f
		r.analysis.Fields = append(r.analysis.Fields, f)
		r.types[spec.ID] = formula.TypeAny

		switch spec.Kind {
		case domain.FieldKindColumn:
			r.columnField(f)
		case domain.FieldKindFormula:
			root, err := formula.Parse(spec.Expression)
			if err != nil {
				r.addFormula(spec.ID, err)
				continue
			}
			f.Root = root
		default:
			r.add(domain.CodeInvalidFieldKind, spec.ID, "field kind must be %q or %q, got %q",
				domain.FieldKindColumn, domain.FieldKindFormula, spec.Kind)
		}
	}
}

func (r *run) columnField(f *Field) {
	ref, err := formula.ParseColumnExpression(f.Spec.Expression)
	if err != nil {
		var fe *domain.FormulaError
		if errors.As(err, &fe) {
			fe.Code = domain.CodeInvalidColumnField
		}
		r.addFormula(f.Spec.ID, err)
		return
	}
	st, err := r.schema.Resolve(ref.Table, ref.Column)
	if err != nil {
		r.add(domain.CodeUnknownField, f.Spec.ID, "unknown field {%s.%s}", ref.Table, ref.Column)
		return
	}
	f.Root = ref
	f.Type = st
	r.types[f.Spec.ID] = formula.FromSemantic(st)
	if f.Spec.Type.Valid() && f.Spec.Type != st {
		r.add(domain.CodeTypeMismatch, f.Spec.ID, "declared type %s does not match column type %s", f.Spec.Type, st)
	}
}

// formulas checks references, rejects cycles and type-checks formulas in
// dependency order.
func (r *run) formulas() {
	graph := formula.Graph{Edges: map[string][]string{}}
	for _, f := range r.analysis.Fields {
		graph.Order = append(graph.Order, f.Spec.ID)
		if !f.Spec.IsFormula() || f.Root == nil {
			continue
		}
		refs := formula.References(f.Root)
		graph.Edges[f.Spec.ID] = refs
		for _, ref := range refs {
			if _, ok := r.analysis.byID[ref]; !ok {
				r.add(domain.CodeUnknownReference, f.Spec.ID, "reference {%s} does not name a field of this sub-report", ref)
			}
		}
	}

	if cycle := graph.FindCycle(); cycle != nil {
		r.violations = append(r.violations, domain.Violation{
			Code:    domain.CodeCycleDetected,
			Field:   cycle[0],
			Message: "formula references form a cycle",
			Cycle:   cycle,
		})
	}

	r.analysis.Order = graph.TopoOrder()
	env := &fieldEnv{schema: r.schema, types: r.types}
	for _, id := range r.analysis.Order {
		f := r.analysis.byID[id]
		if !f.Spec.IsFormula() {
			continue
		}
		if f.Root == nil {
			r.types[id] = formula.TypeAny
			continue
		}
		info, err := formula.Check(f.Root, env)
		if err != nil {
			r.addFormula(id, err)
			r.types[id] = formula.TypeAny
			continue
		}
		f.Info = info
		if st, ok := info.Type.Semantic(); ok {
			f.Type = st
			r.types[id] = info.Type
			if f.Spec.Type.Valid() && f.Spec.Type != st {
				r.add(domain.CodeTypeMismatch, id, "declared type %s does not match inferred type %s", f.Spec.Type, st)
			}
		} else {
			r.types[id] = formula.FromSemantic(f.Spec.Type)
		}
	}
}

type fieldEnv struct {
	schema *schema.Registry
	types  map[string]formula.Type
}

func (e *fieldEnv) Column(table, column string) (domain.SemanticType, error) {
	return e.schema.Resolve(table, column)
}

func (e *fieldEnv) Field(id string) (formula.Type, bool) {
	t, ok := e.types[id]
	if ok && t == formula.TypeInvalid {
		return formula.TypeAny, true
	}
	return t, ok
}

func (r *run) groupBy() {
	seen := map[string]bool{}
	for _, id := range r.cfg.GroupBy {
		if seen[id] {
			r.add(domain.CodeDuplicateGroupBy, id, "field %s is listed in group_by more than once", id)
			continue
		}
		seen[id] = true
		if _, ok := r.analysis.byID[id]; !ok {
			r.add(domain.CodeUnknownGroupBy, id, "group_by entry %s does not name a field", id)
		}
	}

	for _, f := range r.analysis.Fields {
		agg := f.Spec.GroupByAggregate
		switch {
		case f.Grouped && agg != nil:
			r.add(domain.CodeUnexpectedAggregate, f.Spec.ID, "grouped field must not set group_by_aggregate")
			continue
		case !f.Grouped && agg == nil:
			r.add(domain.CodeMissingAggregate, f.Spec.ID, "field is not in group_by and needs group_by_aggregate")
			continue
		case agg == nil:
			continue
		}
		if !agg.Valid() {
			r.add(domain.CodeIllegalAggregate, f.Spec.ID, "unknown aggregate %q", *agg)
			continue
		}
		if f.Type.Valid() && !agg.AcceptsType(f.Type) {
			r.add(domain.CodeIllegalAggregate, f.Spec.ID, "aggregate %s cannot be applied to %s", *agg, f.Type)
		}
	}
}

func (r *run) sort() {
	for i, key := range r.cfg.Sort {
		if _, ok := r.analysis.byID[key.Field]; !ok {
			r.add(domain.CodeUnknownSortField, key.Field, "sort[%d] does not name a field", i)
		}
	}
}
