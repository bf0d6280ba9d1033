package formula

import (
	"strings"
)

// Lexer tokenizes formula source.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	prev    TokenType
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, prev: TOKEN_EOF}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// Tokenize returns every token of the input up to and including EOF or the
// first illegal token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var out []Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == TOKEN_EOF || tok.Type == TOKEN_ILLEGAL {
			return out
		}
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	tok := l.next()
	l.prev = tok.Type
	return tok
}

func (l *Lexer) next() Token {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}

	start := l.pos
	single := func(t TokenType) Token {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: t, Literal: lit, Start: start, End: l.pos}
	}
	double := func(t TokenType) Token {
		lit := l.input[start : start+2]
		l.readChar()
		l.readChar()
		return Token{Type: t, Literal: lit, Start: start, End: l.pos}
	}

	switch l.ch {
	case 0:
		return Token{Type: TOKEN_EOF, Start: start, End: start}
	case '+', '-':
		if l.signStartsNumber() {
			return l.readNumber()
		}
		if l.ch == '+' {
			return single(TOKEN_PLUS)
		}
		return single(TOKEN_MINUS)
	case '*':
		return single(TOKEN_STAR)
	case '/':
		return single(TOKEN_SLASH)
	case ',':
		return single(TOKEN_COMMA)
	case '(':
		return single(TOKEN_LPAREN)
	case ')':
		return single(TOKEN_RPAREN)
	case '=':
		if l.peekChar() == '=' {
			return double(TOKEN_EQ)
		}
		return l.illegal(start, "single '=' is not an operator; use '=='")
	case '!':
		if l.peekChar() == '=' {
			return double(TOKEN_NE)
		}
		return l.illegal(start, "unexpected '!'")
	case '<':
		if l.peekChar() == '=' {
			return double(TOKEN_LE)
		}
		return single(TOKEN_LT)
	case '>':
		if l.peekChar() == '=' {
			return double(TOKEN_GE)
		}
		return single(TOKEN_GT)
	case '\'', '"':
		return l.readString()
	case '{':
		return l.readField()
	}

	switch {
	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier()
	case isDigit(l.ch):
		return l.readNumber()
	}
	return l.illegal(start, "unexpected character "+quoteChar(l.ch))
}

// signStartsNumber reports whether a '+' or '-' at the current position is the
// sign of a numeric literal rather than a binary operator.
func (l *Lexer) signStartsNumber() bool {
	if !isDigit(l.peekChar()) {
		return false
	}
	switch l.prev {
	case TOKEN_NUMBER, TOKEN_STRING, TOKEN_FIELD, TOKEN_NONE, TOKEN_RPAREN, TOKEN_IDENT:
		return false
	}
	return true
}

func (l *Lexer) illegal(start int, msg string) Token {
	l.readChar()
	return Token{Type: TOKEN_ILLEGAL, Literal: msg, Start: start, End: l.pos}
}

func (l *Lexer) readNumber() Token {
	start := l.pos
	if l.ch == '+' || l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Type: TOKEN_NUMBER, Literal: l.input[start:l.pos], Start: start, End: l.pos}
}

// readString reads a single- or double-quoted literal. A backslash escapes the
// following character.
func (l *Lexer) readString() Token {
	start := l.pos
	quote := l.ch
	l.readChar()
	var b strings.Builder
	for {
		switch l.ch {
		case 0:
			return Token{Type: TOKEN_ILLEGAL, Literal: "unterminated string literal", Start: start, End: l.pos}
		case '\\':
			l.readChar()
			if l.ch == 0 {
				return Token{Type: TOKEN_ILLEGAL, Literal: "unterminated string literal", Start: start, End: l.pos}
			}
			b.WriteByte(l.ch)
			l.readChar()
		case quote:
			l.readChar()
			return Token{Type: TOKEN_STRING, Literal: b.String(), Start: start, End: l.pos}
		default:
			b.WriteByte(l.ch)
			l.readChar()
		}
	}
}

// readField reads a brace-delimited field reference and returns its trimmed
// inner text.
func (l *Lexer) readField() Token {
	start := l.pos
	l.readChar()
	inner := l.pos
	for l.ch != '}' {
		if l.ch == 0 || l.ch == '{' {
			return Token{Type: TOKEN_ILLEGAL, Literal: "unterminated field reference", Start: start, End: l.pos}
		}
		l.readChar()
	}
	lit := strings.TrimSpace(l.input[inner:l.pos])
	l.readChar()
	return Token{Type: TOKEN_FIELD, Literal: lit, Start: start, End: l.pos}
}

func (l *Lexer) readIdentifier() Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	tok := Token{Type: TOKEN_IDENT, Literal: lit, Start: start, End: l.pos}
	switch strings.ToUpper(lit) {
	case "AND":
		tok.Type = TOKEN_AND
	case "OR":
		tok.Type = TOKEN_OR
	case "NONE", "NULL":
		tok.Type = TOKEN_NONE
	}
	return tok
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func quoteChar(ch byte) string {
	return "'" + string(ch) + "'"
}
