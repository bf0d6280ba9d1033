package validate

import (
	"encoding/json"
	"fmt"

	"govreport/internal/domain"
	"govreport/internal/formula"
)

func (r *run) filters() {
	if r.cfg.Filters == nil {
		return
	}
	r.filterNode(*r.cfg.Filters, "filters")
}

func (r *run) filterNode(node domain.FilterTree, path string) {
	if node.IsBranch() {
		if node.Logical != domain.LogicalAnd && node.Logical != domain.LogicalOr {
			r.add(domain.CodeInvalidFilter, "", "%s: logical operator must be \"and\" or \"or\", got %q", path, node.Logical)
		}
		if len(node.Conditions) == 0 {
			r.add(domain.CodeInvalidFilter, "", "%s: %s branch has no conditions", path, node.Logical)
		}
		for i, c := range node.Conditions {
			r.filterNode(c, fmt.Sprintf("%s.conditions[%d]", path, i))
		}
		return
	}

	f, ok := r.analysis.byID[node.Field]
	if !ok {
		r.add(domain.CodeUnknownFilterField, node.Field, "%s: filter references unknown field %q", path, node.Field)
		return
	}
	spec, ok := domain.Operators[node.Operator]
	if !ok {
		r.add(domain.CodeInvalidOperator, node.Field, "%s: unknown operator %q", path, node.Operator)
		return
	}
	if f.Type.Valid() && !spec.Accepts(f.Type) {
		r.add(domain.CodeInvalidOperator, node.Field, "%s: operator %s cannot be applied to %s", path, node.Operator, f.Type)
		return
	}

	values, err := FilterValues(node.Operator, node.Value)
	if err != nil {
		r.add(domain.CodeInvalidFilterValue, node.Field, "%s: %v", path, err)
		return
	}
	for _, v := range values {
		if !valueMatches(v, f.Type) {
			r.add(domain.CodeInvalidFilterValue, node.Field, "%s: value %v is not a valid %s", path, v, f.Type)
			return
		}
	}
}

// FilterValues checks the value shape required by op and returns the scalar
// values to bind, in order.
func FilterValues(op domain.FilterOperator, value any) ([]any, error) {
	spec, ok := domain.Operators[op]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", op)
	}
	switch spec.Shape {
	case domain.ShapeNone:
		if value != nil {
			return nil, fmt.Errorf("operator %s takes no value", op)
		}
		return nil, nil
	case domain.ShapeScalar:
		if value == nil {
			return nil, fmt.Errorf("operator %s requires a value", op)
		}
		if !isScalar(value) {
			return nil, fmt.Errorf("operator %s requires a single scalar value", op)
		}
		return []any{value}, nil
	case domain.ShapeList, domain.ShapePair:
		list, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("operator %s requires a list value", op)
		}
		if spec.Shape == domain.ShapePair && len(list) != 2 {
			return nil, fmt.Errorf("operator %s requires exactly two values [lo, hi], got %d", op, len(list))
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("operator %s requires at least one value", op)
		}
		for _, v := range list {
			if v == nil || !isScalar(v) {
				return nil, fmt.Errorf("operator %s requires scalar list elements", op)
			}
		}
		return list, nil
	}
	return nil, fmt.Errorf("operator %s has unknown value shape", op)
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return true
	}
	return false
}

func valueMatches(v any, t domain.SemanticType) bool {
	switch t {
	case domain.TypeNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
			return true
		}
		return false
	case domain.TypeString:
		_, ok := v.(string)
		return ok
	case domain.TypeBoolean:
		_, ok := v.(bool)
		return ok
	case domain.TypeDate:
		s, ok := v.(string)
		if !ok {
			return false
		}
		_, ok = formula.ParseDateLiteral(s)
		return ok
	}
	return true
}
