package domain

// LogicalOp joins the conditions of a filter branch.
type LogicalOp string

// Logical operators.
const (
	LogicalAnd LogicalOp = "and"
	LogicalOr  LogicalOp = "or"
)

// FilterOperator is the comparison applied by a filter leaf.
type FilterOperator string

// Filter operators.
const (
	OpEquals             FilterOperator = "equals"
	OpNotEquals          FilterOperator = "not_equals"
	OpIn                 FilterOperator = "in"
	OpNotIn              FilterOperator = "not_in"
	OpStartsWith         FilterOperator = "starts_with"
	OpEndsWith           FilterOperator = "ends_with"
	OpContains           FilterOperator = "contains"
	OpLessThan           FilterOperator = "less_than"
	OpLessThanOrEqual    FilterOperator = "less_than_or_equal"
	OpGreaterThan        FilterOperator = "greater_than"
	OpGreaterThanOrEqual FilterOperator = "greater_than_or_equal"
	OpRange              FilterOperator = "range" // inclusive [lo, hi]; lo > hi matches no rows
	OpIsNull             FilterOperator = "is_null"
	OpIsNotNull          FilterOperator = "is_not_null"
)

// ValueShape is the cardinality of the value an operator expects.
type ValueShape int

// Value shapes.
const (
	ShapeNone ValueShape = iota
	ShapeScalar
	ShapeList
	ShapePair
)

// OperatorSpec describes the value shape and referent types an operator accepts.
// An empty Types slice accepts any type.
type OperatorSpec struct {
	Shape ValueShape
	Types []SemanticType
}

// Operators is the filter operator table.
var Operators = map[FilterOperator]OperatorSpec{
	OpEquals:             {Shape: ShapeScalar},
	OpNotEquals:          {Shape: ShapeScalar},
	OpIn:                 {Shape: ShapeList},
	OpNotIn:              {Shape: ShapeList},
	OpStartsWith:         {Shape: ShapeScalar, Types: []SemanticType{TypeString}},
	OpEndsWith:           {Shape: ShapeScalar, Types: []SemanticType{TypeString}},
	OpContains:           {Shape: ShapeScalar, Types: []SemanticType{TypeString}},
	OpLessThan:           {Shape: ShapeScalar, Types: []SemanticType{TypeNumber, TypeDate}},
	OpLessThanOrEqual:    {Shape: ShapeScalar, Types: []SemanticType{TypeNumber, TypeDate}},
	OpGreaterThan:        {Shape: ShapeScalar, Types: []SemanticType{TypeNumber, TypeDate}},
	OpGreaterThanOrEqual: {Shape: ShapeScalar, Types: []SemanticType{TypeNumber, TypeDate}},
	OpRange:              {Shape: ShapePair, Types: []SemanticType{TypeNumber, TypeDate}},
	OpIsNull:             {Shape: ShapeNone},
	OpIsNotNull:          {Shape: ShapeNone},
}

// Accepts reports whether the operator may be applied to a referent of type t.
func (s OperatorSpec) Accepts(t SemanticType) bool {
	if len(s.Types) == 0 {
		return true
	}
	for _, want := range s.Types {
		if want == t {
			return true
		}
	}
	return false
}

// FilterTree is either a leaf comparison on a field or a logical branch over
// child trees. A tree with a non-empty Logical is a branch.
//
// Value holds a scalar for scalar operators and a JSON array for in, not_in and
// range.
type FilterTree struct {
	Logical    LogicalOp      `json:"logical,omitempty" yaml:"logical,omitempty"`
	Conditions []FilterTree   `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Field      string         `json:"field,omitempty" yaml:"field,omitempty"`
	Operator   FilterOperator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value      any            `json:"value,omitempty" yaml:"value,omitempty"`
}

// IsBranch reports whether the node is a logical branch.
func (f FilterTree) IsBranch() bool { return f.Logical != "" }

// Walk calls fn for every leaf in depth-first order.
func (f FilterTree) Walk(fn func(leaf FilterTree)) {
	if !f.IsBranch() {
		fn(f)
		return
	}
	for _, c := range f.Conditions {
		c.Walk(fn)
	}
}

func (f FilterTree) canonical() FilterTree {
	f.Field = CanonicalFieldID(f.Field)
	if f.Conditions != nil {
		conds := make([]FilterTree, len(f.Conditions))
		for i, c := range f.Conditions {
			conds[i] = c.canonical()
		}
		f.Conditions = conds
	}
	return f
}

// Leaf builds a filter leaf.
func Leaf(field string, op FilterOperator, value any) FilterTree {
	return FilterTree{Field: field, Operator: op, Value: value}
}

// And builds an "and" branch.
func And(conditions ...FilterTree) FilterTree {
	return FilterTree{Logical: LogicalAnd, Conditions: conditions}
}

// Or builds an "or" branch.
func Or(conditions ...FilterTree) FilterTree {
	return FilterTree{Logical: LogicalOr, Conditions: conditions}
}
