package sqlgen

import (
	"fmt"
	"strings"

	"govreport/internal/domain"
	"govreport/internal/validate"
)

var comparisonSQL = map[domain.FilterOperator]string{
	domain.OpEquals:             "=",
	domain.OpNotEquals:          "<>",
	domain.OpLessThan:           "<",
	domain.OpLessThanOrEqual:    "<=",
	domain.OpGreaterThan:        ">",
	domain.OpGreaterThanOrEqual: ">=",
}

// likeEscaper escapes LIKE wildcards in user text; patterns use ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// filter lowers a filter tree. Leaves on formula fields are lowered against the
// formula's expression because projection aliases are not in scope in WHERE.
func (b *build) filter(node domain.FilterTree) (string, error) {
	if node.IsBranch() {
		parts := make([]string, 0, len(node.Conditions))
		for _, c := range node.Conditions {
			sql, err := b.filter(c)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		op := " AND "
		if node.Logical == domain.LogicalOr {
			op = " OR "
		}
		return "(" + strings.Join(parts, op) + ")", nil
	}

	f, ok := b.analysis.Field(node.Field)
	if !ok {
		return "", fmt.Errorf("filter references unknown field %s", node.Field)
	}
	expr := b.scalar(f)
	values, err := validate.FilterValues(node.Operator, node.Value)
	if err != nil {
		return "", err
	}
	bind := func(v any) string { return b.params.bindTyped(v, filterBindType(f.Type)) }

	switch node.Operator {
	case domain.OpIsNull:
		return expr + " IS NULL", nil
	case domain.OpIsNotNull:
		return expr + " IS NOT NULL", nil
	case domain.OpIn, domain.OpNotIn:
		phs := make([]string, len(values))
		for i, v := range values {
			phs[i] = bind(v)
		}
		kw := " IN "
		if node.Operator == domain.OpNotIn {
			kw = " NOT IN "
		}
		return expr + kw + "(" + strings.Join(phs, ", ") + ")", nil
	case domain.OpRange:
		lo := bind(values[0])
		hi := bind(values[1])
		return expr + " BETWEEN " + lo + " AND " + hi, nil
	case domain.OpStartsWith, domain.OpEndsWith, domain.OpContains:
		s, ok := values[0].(string)
		if !ok {
			return "", fmt.Errorf("operator %s requires a string value", node.Operator)
		}
		pattern := likeEscaper.Replace(s)
		switch node.Operator {
		case domain.OpStartsWith:
			pattern += "%"
		case domain.OpEndsWith:
			pattern = "%" + pattern
		default:
			pattern = "%" + pattern + "%"
		}
		return expr + " LIKE " + b.params.bind(pattern) + ` ESCAPE '\'`, nil
	}

	op, ok := comparisonSQL[node.Operator]
	if !ok {
		return "", fmt.Errorf("unsupported filter operator %q", node.Operator)
	}
	return expr + " " + op + " " + bind(values[0]), nil
}

// filterBindType only casts dates; other values take their type from the
// compared expression.
func filterBindType(t domain.SemanticType) domain.SemanticType {
	if t == domain.TypeDate {
		return domain.TypeDate
	}
	return ""
}
