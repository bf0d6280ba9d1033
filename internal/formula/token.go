// Package formula implements the report formula language: a lexer and Pratt
// parser producing a small AST, a type checker over the schema registry and
// sibling fields, dependency extraction with cycle detection, and a canonical
// source printer.
package formula

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

// TOKEN_EOF and friends enumerate all token types produced by the lexer.
const (
	TOKEN_EOF     TokenType = iota // end of input
	TOKEN_ILLEGAL                  // unexpected character

	TOKEN_IDENT  // function name
	TOKEN_NUMBER // 12, -3.5
	TOKEN_STRING // 'abc' or "abc"
	TOKEN_FIELD  // {uuid} or {table.column}
	TOKEN_NONE   // None / Null

	TOKEN_PLUS   // +
	TOKEN_MINUS  // -
	TOKEN_STAR   // *
	TOKEN_SLASH  // /
	TOKEN_EQ     // ==
	TOKEN_NE     // !=
	TOKEN_LT     // <
	TOKEN_LE     // <=
	TOKEN_GT     // >
	TOKEN_GE     // >=
	TOKEN_COMMA  // ,
	TOKEN_LPAREN // (
	TOKEN_RPAREN // )

	TOKEN_AND // AND
	TOKEN_OR  // OR
)

var tokenNames = map[TokenType]string{
	TOKEN_EOF:     "end of input",
	TOKEN_ILLEGAL: "illegal character",
	TOKEN_IDENT:   "identifier",
	TOKEN_NUMBER:  "number",
	TOKEN_STRING:  "string",
	TOKEN_FIELD:   "field reference",
	TOKEN_NONE:    "None",
	TOKEN_PLUS:    "+",
	TOKEN_MINUS:   "-",
	TOKEN_STAR:    "*",
	TOKEN_SLASH:   "/",
	TOKEN_EQ:      "==",
	TOKEN_NE:      "!=",
	TOKEN_LT:      "<",
	TOKEN_LE:      "<=",
	TOKEN_GT:      ">",
	TOKEN_GE:      ">=",
	TOKEN_COMMA:   ",",
	TOKEN_LPAREN:  "(",
	TOKEN_RPAREN:  ")",
	TOKEN_AND:     "AND",
	TOKEN_OR:      "OR",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is a lexical token with its byte span in the source.
type Token struct {
	Type    TokenType
	Literal string
	Start   int
	End     int
}

// Precedence constants for the Pratt parser. AND and OR share one level and
// associate to the left; comparisons do not associate.
const (
	PrecedenceNone       = 0
	PrecedenceLogical    = 1
	PrecedenceComparison = 2
	PrecedenceAddition   = 3
	PrecedenceMultiply   = 4
)

func infixPrecedence(t TokenType) int {
	switch t {
	case TOKEN_AND, TOKEN_OR:
		return PrecedenceLogical
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_LE, TOKEN_GT, TOKEN_GE:
		return PrecedenceComparison
	case TOKEN_PLUS, TOKEN_MINUS:
		return PrecedenceAddition
	case TOKEN_STAR, TOKEN_SLASH:
		return PrecedenceMultiply
	}
	return PrecedenceNone
}
