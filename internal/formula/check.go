package formula

import (
	"fmt"

	"govreport/internal/domain"
)

// Env resolves the names a formula may reference.
type Env interface {
	// Column returns the semantic type of a schema column.
	Column(table, column string) (domain.SemanticType, error)
	// Field returns the inferred type of a sibling FieldSpec, or ok=false when
	// no sibling has that id.
	Field(id string) (t Type, ok bool)
}

// Info is the result of type checking a formula.
type Info struct {
	Type Type
	// Types holds the inferred type of every node.
	Types map[Node]Type
	// DateLiterals marks string literals used where a date is expected; they
	// are lowered as timestamp casts.
	DateLiterals map[*StringLit]bool
}

// Check infers the type of n bottom-up. Errors are *domain.FormulaError.
func Check(n Node, env Env) (*Info, error) {
	c := &checker{
		env: env,
		info: &Info{
			Types:        make(map[Node]Type),
			DateLiterals: make(map[*StringLit]bool),
		},
	}
	t, err := c.check(n)
	if err != nil {
		return nil, err
	}
	c.info.Type = t
	return c.info, nil
}

type checker struct {
	env  Env
	info *Info
}

func fail(code domain.ViolationCode, n Node, format string, args ...any) error {
	sp := n.Span()
	return &domain.FormulaError{Code: code, Message: fmt.Sprintf(format, args...), Start: sp.Start, End: sp.End}
}

func (c *checker) check(n Node) (Type, error) {
	t, err := c.infer(n)
	if err != nil {
		return TypeInvalid, err
	}
	c.info.Types[n] = t
	return t, nil
}

func (c *checker) infer(n Node) (Type, error) {
	switch v := n.(type) {
	case *NumberLit:
		return TypeNumber, nil
	case *StringLit:
		return TypeString, nil
	case *NullLit:
		return TypeNull, nil
	case *FieldRef:
		return c.fieldRef(v)
	case *Binary:
		return c.binary(v)
	case *Call:
		return c.call(v)
	}
	return TypeInvalid, fail(domain.CodeInvalidFormula, n, "unsupported expression")
}

func (c *checker) fieldRef(ref *FieldRef) (Type, error) {
	if ref.IsColumn() {
		st, err := c.env.Column(ref.Table, ref.Column)
		if err != nil {
			return TypeInvalid, fail(domain.CodeUnknownField, ref, "unknown field {%s.%s}", ref.Table, ref.Column)
		}
		return FromSemantic(st), nil
	}
	t, ok := c.env.Field(ref.UUID)
	if !ok {
		return TypeInvalid, fail(domain.CodeUnknownReference, ref, "reference {%s} does not name a field of this sub-report", ref.UUID)
	}
	return t, nil
}

func (c *checker) binary(b *Binary) (Type, error) {
	lt, err := c.check(b.Left)
	if err != nil {
		return TypeInvalid, err
	}
	rt, err := c.check(b.Right)
	if err != nil {
		return TypeInvalid, err
	}

	switch b.Op {
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_STAR, TOKEN_SLASH:
		if !SetNumber.Contains(lt) {
			return TypeInvalid, fail(domain.CodeTypeMismatch, b.Left, "operator %s expects number operands, got %s", b.Op, lt)
		}
		if !SetNumber.Contains(rt) {
			return TypeInvalid, fail(domain.CodeTypeMismatch, b.Right, "operator %s expects number operands, got %s", b.Op, rt)
		}
		return TypeNumber, nil

	case TOKEN_AND, TOKEN_OR:
		if !SetBoolean.Contains(lt) {
			return TypeInvalid, fail(domain.CodeTypeMismatch, b.Left, "operator %s expects boolean operands, got %s", b.Op, lt)
		}
		if !SetBoolean.Contains(rt) {
			return TypeInvalid, fail(domain.CodeTypeMismatch, b.Right, "operator %s expects boolean operands, got %s", b.Op, rt)
		}
		return TypeBoolean, nil

	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_LE, TOKEN_GT, TOKEN_GE:
		if lt == TypeDate && rt == TypeString {
			if err := c.coerceDate(b.Right); err != nil {
				return TypeInvalid, err
			}
			return TypeBoolean, nil
		}
		if rt == TypeDate && lt == TypeString {
			if err := c.coerceDate(b.Left); err != nil {
				return TypeInvalid, err
			}
			return TypeBoolean, nil
		}
		if unify(lt, rt) == TypeInvalid {
			return TypeInvalid, fail(domain.CodeTypeMismatch, b, "cannot compare %s with %s", lt, rt)
		}
		return TypeBoolean, nil
	}
	return TypeInvalid, fail(domain.CodeInvalidFormula, b, "unknown operator %s", b.Op)
}

// coerceDate accepts a string literal in a date position when it is a
// well-formed date literal.
func (c *checker) coerceDate(n Node) error {
	lit, ok := n.(*StringLit)
	if !ok {
		return fail(domain.CodeTypeMismatch, n, "expected date, got string")
	}
	if _, ok := ParseDateLiteral(lit.Value); !ok {
		return fail(domain.CodeMalformedDateLiteral, n, "%q is not a date literal (YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)", lit.Value)
	}
	c.info.DateLiterals[lit] = true
	c.info.Types[n] = TypeDate
	return nil
}

func (c *checker) call(call *Call) (Type, error) {
	fn, ok := LookupFunction(call.Name)
	if !ok {
		return TypeInvalid, fail(domain.CodeUnknownFunction, call, "unknown function %s", call.Name)
	}
	n := len(call.Args)
	if n < fn.MinArgs || (fn.MaxArgs != Variadic && n > fn.MaxArgs) {
		return TypeInvalid, fail(domain.CodeArityMismatch, call, "%s expects %s, got %d", fn.Name, arityText(fn), n)
	}

	argTypes := make([]Type, n)
	for i, arg := range call.Args {
		if i == fn.DatePartArg {
			lit, ok := arg.(*StringLit)
			if !ok {
				return TypeInvalid, fail(domain.CodeInvalidDatePart, arg, "%s argument %d must be a date part string literal", fn.Name, i+1)
			}
			if _, ok := ParseDatePart(lit.Value); !ok {
				return TypeInvalid, fail(domain.CodeInvalidDatePart, arg, "unknown date part %q", lit.Value)
			}
			c.info.Types[arg] = TypeString
			argTypes[i] = TypeString
			continue
		}

		want := fn.argSet(i)
		if lit, ok := arg.(*StringLit); ok && want == SetDate {
			if err := c.coerceDate(lit); err != nil {
				return TypeInvalid, err
			}
			argTypes[i] = TypeDate
			continue
		}

		t, err := c.check(arg)
		if err != nil {
			return TypeInvalid, err
		}
		if !want.Contains(t) {
			return TypeInvalid, fail(domain.CodeTypeMismatch, arg, "%s argument %d expects %s, got %s", fn.Name, i+1, want, t)
		}
		argTypes[i] = t
	}

	ret := fn.Returns(argTypes)
	if ret == TypeInvalid {
		return TypeInvalid, fail(domain.CodeTypeMismatch, call, "%s branches have incompatible types %s and %s", fn.Name, argTypes[1], argTypes[2])
	}
	return ret, nil
}

func arityText(fn *Function) string {
	switch {
	case fn.MaxArgs == Variadic:
		return fmt.Sprintf("at least %d argument(s)", fn.MinArgs)
	case fn.MinArgs == fn.MaxArgs:
		return fmt.Sprintf("%d argument(s)", fn.MinArgs)
	}
	return fmt.Sprintf("%d to %d arguments", fn.MinArgs, fn.MaxArgs)
}
