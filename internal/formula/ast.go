package formula

import (
	"strings"

	"govreport/internal/domain"
)

// Span is a half-open byte range [Start, End) in formula source.
type Span struct {
	Start int
	End   int
}

// Node is a formula AST node.
type Node interface {
	Span() Span
	node()
}

// NumberLit is a numeric literal. Raw keeps the source spelling.
type NumberLit struct {
	Value float64
	Raw   string
	Pos   Span
}

// StringLit is a quoted string literal with escapes resolved.
type StringLit struct {
	Value string
	Pos   Span
}

// NullLit is the None/Null literal.
type NullLit struct {
	Pos Span
}

// FieldRef references either a sibling FieldSpec by UUID or a schema column.
type FieldRef struct {
	UUID   string
	Table  string
	Column string
	Pos    Span
}

// IsColumn reports whether the reference names a schema column.
func (f *FieldRef) IsColumn() bool { return f.UUID == "" }

// Call is a function call. Name is upper-cased.
type Call struct {
	Name string
	Args []Node
	Pos  Span
}

// Binary is an infix operation.
type Binary struct {
	Op    TokenType
	Left  Node
	Right Node
	Pos   Span
}

func (n *NumberLit) Span() Span { return n.Pos }
func (n *StringLit) Span() Span { return n.Pos }
func (n *NullLit) Span() Span   { return n.Pos }
func (n *FieldRef) Span() Span  { return n.Pos }
func (n *Call) Span() Span      { return n.Pos }
func (n *Binary) Span() Span    { return n.Pos }

func (*NumberLit) node() {}
func (*StringLit) node() {}
func (*NullLit) node()   {}
func (*FieldRef) node()  {}
func (*Call) node()      {}
func (*Binary) node()    {}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch v := n.(type) {
	case *Call:
		for _, a := range v.Args {
			Walk(a, fn)
		}
	case *Binary:
		Walk(v.Left, fn)
		Walk(v.Right, fn)
	}
}

// ParseColumnExpression parses the expression of a column FieldSpec, which must
// be exactly one "{table.column}" reference.
func ParseColumnExpression(src string) (*FieldRef, error) {
	n, err := Parse(src)
	if err != nil {
		return nil, err
	}
	ref, ok := n.(*FieldRef)
	if !ok || !ref.IsColumn() {
		return nil, &domain.FormulaError{
			Code:    domain.CodeInvalidFormula,
			Message: "column field expression must be a single {table.column} reference",
			Start:   0,
			End:     len(src),
		}
	}
	return ref, nil
}

func splitColumnRef(lit string) (table, column string, ok bool) {
	table, column, found := strings.Cut(lit, ".")
	if !found {
		return "", "", false
	}
	table, column = strings.TrimSpace(table), strings.TrimSpace(column)
	if !isIdent(table) || !isIdent(column) {
		return "", "", false
	}
	return table, column, true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if isLetter(ch) || ch == '_' || (i > 0 && isDigit(ch)) {
			continue
		}
		return false
	}
	return true
}
