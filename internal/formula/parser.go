package formula

import (
	"fmt"
	"strconv"
	"strings"

	"govreport/internal/domain"
)

// Parser parses formula source into an AST.
type Parser struct {
	lexer  *Lexer
	input  string
	token  Token // current token
	peek   Token // lookahead token
	errors []*domain.FormulaError
}

// NewParser creates a new parser for the given formula source.
func NewParser(src string) *Parser {
	p := &Parser{lexer: NewLexer(src), input: src}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete formula. Errors are *domain.FormulaError with code
// InvalidFormula and the span of the offending token.
func Parse(src string) (Node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &domain.FormulaError{Code: domain.CodeInvalidFormula, Message: "empty formula", Start: 0, End: len(src)}
	}

	p := NewParser(src)
	n := p.parseExpression(PrecedenceLogical)
	if len(p.errors) == 0 && p.token.Type != TOKEN_EOF {
		p.errorAt(p.token, fmt.Sprintf("unexpected %s after expression", describe(p.token)))
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return n, nil
}

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) expect(t TokenType) (Token, bool) {
	tok := p.token
	if p.check(t) {
		p.nextToken()
		return tok, true
	}
	p.errorAt(tok, fmt.Sprintf("expected %s, found %s", t, describe(tok)))
	return tok, false
}

func (p *Parser) errorAt(tok Token, msg string) {
	if tok.Type == TOKEN_ILLEGAL {
		msg = tok.Literal
	}
	end := tok.End
	if end <= tok.Start {
		end = tok.Start
	}
	p.errors = append(p.errors, &domain.FormulaError{
		Code:    domain.CodeInvalidFormula,
		Message: msg,
		Start:   tok.Start,
		End:     end,
	})
}

// parseExpression implements precedence climbing.
func (p *Parser) parseExpression(minPrecedence int) Node {
	left := p.parsePrimary()
	if left == nil {
		return nil
	}

	for {
		prec := infixPrecedence(p.token.Type)
		if prec == PrecedenceNone || prec < minPrecedence {
			return left
		}
		op := p.token
		p.nextToken()
		right := p.parseExpression(prec + 1)
		if right == nil {
			return nil
		}
		left = &Binary{
			Op:    op.Type,
			Left:  left,
			Right: right,
			Pos:   Span{Start: left.Span().Start, End: right.Span().End},
		}
		if prec == PrecedenceComparison && infixPrecedence(p.token.Type) == PrecedenceComparison {
			p.errorAt(p.token, "comparison operators cannot be chained; use parentheses")
			return nil
		}
	}
}

func (p *Parser) parsePrimary() Node {
	tok := p.token
	switch tok.Type {
	case TOKEN_NUMBER:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorAt(tok, fmt.Sprintf("invalid number %q", tok.Literal))
			return nil
		}
		raw := strings.TrimPrefix(tok.Literal, "+")
		return &NumberLit{Value: v, Raw: raw, Pos: Span{tok.Start, tok.End}}

	case TOKEN_STRING:
		p.nextToken()
		return &StringLit{Value: tok.Literal, Pos: Span{tok.Start, tok.End}}

	case TOKEN_NONE:
		p.nextToken()
		return &NullLit{Pos: Span{tok.Start, tok.End}}

	case TOKEN_FIELD:
		p.nextToken()
		return p.fieldRef(tok)

	case TOKEN_IDENT:
		return p.parseCall()

	case TOKEN_LPAREN:
		p.nextToken()
		inner := p.parseExpression(PrecedenceLogical)
		if inner == nil {
			return nil
		}
		if _, ok := p.expect(TOKEN_RPAREN); !ok {
			return nil
		}
		return inner
	}

	p.errorAt(tok, fmt.Sprintf("unexpected %s", describe(tok)))
	return nil
}

func (p *Parser) fieldRef(tok Token) Node {
	span := Span{tok.Start, tok.End}
	if domain.IsFieldID(tok.Literal) {
		return &FieldRef{UUID: domain.CanonicalFieldID(tok.Literal), Pos: span}
	}
	if table, column, ok := splitColumnRef(tok.Literal); ok {
		return &FieldRef{Table: table, Column: column, Pos: span}
	}
	p.errorAt(tok, fmt.Sprintf("invalid field reference {%s}: expected {uuid} or {table.column}", tok.Literal))
	return nil
}

func (p *Parser) parseCall() Node {
	name := p.token
	p.nextToken()
	if !p.check(TOKEN_LPAREN) {
		p.errorAt(name, fmt.Sprintf("unexpected identifier %q; function calls need parentheses", name.Literal))
		return nil
	}
	p.nextToken()

	call := &Call{Name: strings.ToUpper(name.Literal)}
	if !p.check(TOKEN_RPAREN) {
		for {
			arg := p.parseExpression(PrecedenceLogical)
			if arg == nil {
				return nil
			}
			call.Args = append(call.Args, arg)
			if !p.check(TOKEN_COMMA) {
				break
			}
			p.nextToken()
		}
	}
	closing, ok := p.expect(TOKEN_RPAREN)
	if !ok {
		return nil
	}
	call.Pos = Span{Start: name.Start, End: closing.End}
	return call
}

func describe(tok Token) string {
	switch tok.Type {
	case TOKEN_EOF:
		return "end of input"
	case TOKEN_ILLEGAL:
		return tok.Literal
	case TOKEN_IDENT, TOKEN_NUMBER:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case TOKEN_STRING:
		return "string literal"
	case TOKEN_FIELD:
		return "field reference {" + tok.Literal + "}"
	}
	return fmt.Sprintf("%q", tok.Type.String())
}
