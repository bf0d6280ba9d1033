package formula

import (
	"strconv"
	"strings"
)

// Format prints n as canonical formula source: upper-case function names and
// keywords, shortest decimal numbers, double-quoted strings, single spaces
// around binary operators, and parentheses only where precedence requires them.
func Format(n Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

// FormatNumber prints v as the shortest plain decimal that reads back to v, so
// 100, 100.0 and +100 all print as 100.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeNode(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case *NumberLit:
		b.WriteString(FormatNumber(v.Value))
	case *StringLit:
		b.WriteByte('"')
		for i := 0; i < len(v.Value); i++ {
			ch := v.Value[i]
			if ch == '"' || ch == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(ch)
		}
		b.WriteByte('"')
	case *NullLit:
		b.WriteString("None")
	case *FieldRef:
		b.WriteByte('{')
		if v.IsColumn() {
			b.WriteString(v.Table)
			b.WriteByte('.')
			b.WriteString(v.Column)
		} else {
			b.WriteString(v.UUID)
		}
		b.WriteByte('}')
	case *Call:
		b.WriteString(v.Name)
		b.WriteByte('(')
		for i, a := range v.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeNode(b, a)
		}
		b.WriteByte(')')
	case *Binary:
		prec := infixPrecedence(v.Op)
		writeOperand(b, v.Left, needsParens(v.Left, prec, false))
		b.WriteByte(' ')
		b.WriteString(v.Op.String())
		b.WriteByte(' ')
		writeOperand(b, v.Right, needsParens(v.Right, prec, true))
	}
}

func writeOperand(b *strings.Builder, n Node, parens bool) {
	if parens {
		b.WriteByte('(')
	}
	writeNode(b, n)
	if parens {
		b.WriteByte(')')
	}
}

func needsParens(child Node, parent int, right bool) bool {
	bin, ok := child.(*Binary)
	if !ok {
		return false
	}
	prec := infixPrecedence(bin.Op)
	if prec < parent {
		return true
	}
	if prec == parent {
		return right || parent == PrecedenceComparison
	}
	return false
}
