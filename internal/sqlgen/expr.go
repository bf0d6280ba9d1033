package sqlgen

import (
	"fmt"
	"strings"

	"govreport/internal/domain"
	"govreport/internal/formula"
)

// lowerer turns formula ASTs into PostgreSQL scalar expressions. Sibling
// references are replaced by the already lowered SQL of the referent.
type lowerer struct {
	params *params
	info   *formula.Info
	fields map[string]fieldSQL
}

type fieldSQL struct {
	expr string
	// compound is set when expr must be parenthesized before being embedded.
	compound bool
}

func (l *lowerer) lower(n formula.Node) (string, error) {
	switch v := n.(type) {
	case *formula.NumberLit:
		return formula.FormatNumber(v.Value), nil
	case *formula.StringLit:
		if l.info != nil && l.info.DateLiterals[v] {
			return l.params.bindTyped(v.Value, domain.TypeDate), nil
		}
		return l.params.bindTyped(v.Value, domain.TypeString), nil
	case *formula.NullLit:
		return "NULL", nil
	case *formula.FieldRef:
		if v.IsColumn() {
			return qualified(v.Table, v.Column), nil
		}
		ref, ok := l.fields[v.UUID]
		if !ok {
			return "", fmt.Errorf("reference {%s} lowered before its referent", v.UUID)
		}
		if ref.compound {
			return "(" + ref.expr + ")", nil
		}
		return ref.expr, nil
	case *formula.Binary:
		return l.binary(v)
	case *formula.Call:
		return l.call(v)
	}
	return "", fmt.Errorf("unsupported formula node %T", n)
}

var binarySQL = map[formula.TokenType]string{
	formula.TOKEN_PLUS:  "+",
	formula.TOKEN_MINUS: "-",
	formula.TOKEN_STAR:  "*",
	formula.TOKEN_SLASH: "/",
	formula.TOKEN_EQ:    "=",
	formula.TOKEN_NE:    "<>",
	formula.TOKEN_LT:    "<",
	formula.TOKEN_LE:    "<=",
	formula.TOKEN_GT:    ">",
	formula.TOKEN_GE:    ">=",
	formula.TOKEN_AND:   "AND",
	formula.TOKEN_OR:    "OR",
}

func (l *lowerer) binary(b *formula.Binary) (string, error) {
	if b.Op == formula.TOKEN_EQ || b.Op == formula.TOKEN_NE {
		if sql, ok, err := l.nullComparison(b); ok || err != nil {
			return sql, err
		}
	}
	op, ok := binarySQL[b.Op]
	if !ok {
		return "", fmt.Errorf("unsupported operator %s", b.Op)
	}
	left, err := l.operand(b.Left, b.Op, false)
	if err != nil {
		return "", err
	}
	right, err := l.operand(b.Right, b.Op, true)
	if err != nil {
		return "", err
	}
	return left + " " + op + " " + right, nil
}

// nullComparison lowers "x == None" and "x != None" to IS [NOT] NULL.
func (l *lowerer) nullComparison(b *formula.Binary) (string, bool, error) {
	var other formula.Node
	switch {
	case isNull(b.Right):
		other = b.Left
	case isNull(b.Left):
		other = b.Right
	default:
		return "", false, nil
	}
	if isNull(other) {
		if b.Op == formula.TOKEN_EQ {
			return "TRUE", true, nil
		}
		return "FALSE", true, nil
	}
	sql, err := l.operand(other, b.Op, false)
	if err != nil {
		return "", true, err
	}
	if b.Op == formula.TOKEN_EQ {
		return sql + " IS NULL", true, nil
	}
	return sql + " IS NOT NULL", true, nil
}

func isNull(n formula.Node) bool {
	_, ok := n.(*formula.NullLit)
	return ok
}

// operand lowers a binary operand, parenthesizing it when SQL precedence
// would otherwise regroup it. AND and OR share one precedence level in
// formulas but not in SQL, so nested logical operands are always wrapped.
func (l *lowerer) operand(n formula.Node, parentOp formula.TokenType, right bool) (string, error) {
	sql, err := l.lower(n)
	if err != nil {
		return "", err
	}
	child, ok := n.(*formula.Binary)
	if !ok {
		return sql, nil
	}
	if isNull(child.Left) || isNull(child.Right) {
		return "(" + sql + ")", nil
	}
	parent, prec := precedence(parentOp), precedence(child.Op)
	if prec < parent || (prec == parent && (right || parent <= formula.PrecedenceComparison)) {
		return "(" + sql + ")", nil
	}
	return sql, nil
}

func precedence(op formula.TokenType) int {
	switch op {
	case formula.TOKEN_AND, formula.TOKEN_OR:
		return formula.PrecedenceLogical
	case formula.TOKEN_EQ, formula.TOKEN_NE, formula.TOKEN_LT, formula.TOKEN_LE, formula.TOKEN_GT, formula.TOKEN_GE:
		return formula.PrecedenceComparison
	case formula.TOKEN_PLUS, formula.TOKEN_MINUS:
		return formula.PrecedenceAddition
	}
	return formula.PrecedenceMultiply
}

func (l *lowerer) args(call *formula.Call, from int) ([]string, error) {
	out := make([]string, 0, len(call.Args))
	for _, a := range call.Args[from:] {
		sql, err := l.lower(a)
		if err != nil {
			return nil, err
		}
		out = append(out, sql)
	}
	return out, nil
}

func (l *lowerer) call(c *formula.Call) (string, error) {
	switch c.Name {
	case "DATEDIFF", "DATEPART", "DATEADD":
		return l.dateCall(c)
	}
	args, err := l.args(c, 0)
	if err != nil {
		return "", err
	}
	switch c.Name {
	case "SUM":
		return "(" + strings.Join(args, " + ") + ")", nil
	case "AVERAGE":
		return fmt.Sprintf("((%s) / %d.0)", strings.Join(args, " + "), len(args)), nil
	case "MAX":
		return "GREATEST(" + strings.Join(args, ", ") + ")", nil
	case "MIN":
		return "LEAST(" + strings.Join(args, ", ") + ")", nil
	case "MOD", "POWER", "CEIL", "FLOOR", "SQRT", "ABS":
		return c.Name + "(" + strings.Join(args, ", ") + ")", nil
	case "LOG":
		return "LOG(" + args[0] + ")", nil
	case "ROUND":
		return fmt.Sprintf("ROUND(CAST(%s AS NUMERIC), CAST(%s AS INTEGER))", args[0], args[1]), nil
	case "TODAY":
		return "CURRENT_DATE", nil
	case "IF":
		return fmt.Sprintf("CASE WHEN %s THEN %s ELSE %s END", args[0], args[1], args[2]), nil
	}
	return "", fmt.Errorf("function %s has no SQL lowering", c.Name)
}

func (l *lowerer) dateCall(c *formula.Call) (string, error) {
	lit, ok := c.Args[0].(*formula.StringLit)
	if !ok {
		return "", fmt.Errorf("%s needs a literal date part", c.Name)
	}
	part, ok := formula.ParseDatePart(lit.Value)
	if !ok {
		return "", fmt.Errorf("unknown date part %q", lit.Value)
	}
	args, err := l.args(c, 1)
	if err != nil {
		return "", err
	}
	switch c.Name {
	case "DATEPART":
		return extract(part, args[0]), nil
	case "DATEADD":
		return fmt.Sprintf("(%s + (%s) * %s)", args[1], args[0], interval(part)), nil
	default:
		return dateDiff(part, args[0], args[1]), nil
	}
}

func extract(part formula.DatePart, expr string) string {
	return fmt.Sprintf("EXTRACT(%s FROM %s)", strings.ToUpper(string(part)), expr)
}

func interval(part formula.DatePart) string {
	if part == formula.PartQuarter {
		return "INTERVAL '3 month'"
	}
	return "INTERVAL '1 " + string(part) + "'"
}

// dateDiff counts the part boundaries crossed from start to end.
func dateDiff(part formula.DatePart, start, end string) string {
	years := fmt.Sprintf("(%s - %s)", extract(formula.PartYear, end), extract(formula.PartYear, start))
	days := fmt.Sprintf("(CAST(%s AS DATE) - CAST(%s AS DATE))", end, start)
	epoch := fmt.Sprintf("EXTRACT(EPOCH FROM (CAST(%s AS TIMESTAMP) - CAST(%s AS TIMESTAMP)))", end, start)
	switch part {
	case formula.PartYear:
		return years
	case formula.PartQuarter:
		return fmt.Sprintf("(%s * 4 + %s - %s)", years, extract(formula.PartQuarter, end), extract(formula.PartQuarter, start))
	case formula.PartMonth:
		return fmt.Sprintf("(%s * 12 + %s - %s)", years, extract(formula.PartMonth, end), extract(formula.PartMonth, start))
	case formula.PartWeek:
		return fmt.Sprintf("TRUNC(%s / 7.0)", days)
	case formula.PartDay:
		return days
	case formula.PartHour:
		return fmt.Sprintf("TRUNC(%s / 3600)", epoch)
	case formula.PartMinute:
		return fmt.Sprintf("TRUNC(%s / 60)", epoch)
	default:
		return fmt.Sprintf("TRUNC(%s)", epoch)
	}
}
