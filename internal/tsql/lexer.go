package tsql

import (
	"fmt"
	"strings"
	"unicode"
)

// Lexer tokenizes T-SQL input.
//
// Comments and whitespace are skipped. Unterminated string literals,
// unterminated bracketed identifiers, and unterminated block comments do not
// stop the lexer: it consumes to end of input, emits what it has, and records
// a diagnostic retrievable via Diagnostics().
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination

	diags []Diag
}

// Diag is a lexer-level diagnostic (unterminated literal or comment).
type Diag struct {
	Offset  int
	Message string
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Diagnostics returns the diagnostics collected so far.
func (l *Lexer) Diagnostics() []Diag { return l.diags }

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	start := l.pos
	var tok Token

	switch l.ch {
	case 0:
		return Token{Type: TOKEN_EOF, Pos: start, End: start}
	case '+':
		tok = Token{Type: TOKEN_PLUS, Literal: "+"}
	case '-':
		tok = Token{Type: TOKEN_MINUS, Literal: "-"}
	case '*':
		tok = Token{Type: TOKEN_STAR, Literal: "*"}
	case '/':
		tok = Token{Type: TOKEN_SLASH, Literal: "/"}
	case '%':
		tok = Token{Type: TOKEN_MOD, Literal: "%"}
	case '=':
		tok = Token{Type: TOKEN_EQ, Literal: "="}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: TOKEN_LE, Literal: "<="}
		case '>':
			l.readChar()
			tok = Token{Type: TOKEN_NE, Literal: "<>"}
		default:
			tok = Token{Type: TOKEN_LT, Literal: "<"}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TOKEN_GE, Literal: ">="}
		} else {
			tok = Token{Type: TOKEN_GT, Literal: ">"}
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TOKEN_NE, Literal: "!="}
		} else {
			tok = Token{Type: TOKEN_ILLEGAL, Literal: string(l.ch)}
		}
	case '.':
		tok = Token{Type: TOKEN_DOT, Literal: "."}
	case ',':
		tok = Token{Type: TOKEN_COMMA, Literal: ","}
	case ';':
		tok = Token{Type: TOKEN_SEMICOLON, Literal: ";"}
	case '(':
		tok = Token{Type: TOKEN_LPAREN, Literal: "("}
	case ')':
		tok = Token{Type: TOKEN_RPAREN, Literal: ")"}
	case '@':
		return l.readVariable()
	case '\'':
		return l.readString(start)
	case '"':
		return l.readQuotedIdentifier(start, '"', '"')
	case '[':
		return l.readQuotedIdentifier(start, '[', ']')
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_' || l.ch == '#':
			// N'...' is a Unicode string literal, not an identifier.
			if (l.ch == 'N' || l.ch == 'n') && l.peekChar() == '\'' {
				l.readChar() // skip N
				return l.readString(start)
			}
			literal := l.readIdentifier()
			return Token{
				Type:    lookupKeyword(strings.ToLower(literal)),
				Literal: literal,
				Pos:     start,
				End:     l.pos,
			}
		case isDigit(l.ch):
			lit := l.readNumber()
			return Token{Type: TOKEN_NUMBER, Literal: lit, Pos: start, End: l.pos}
		default:
			tok = Token{Type: TOKEN_ILLEGAL, Literal: string(l.ch)}
		}
	}

	l.readChar()
	tok.Pos = start
	tok.End = l.pos
	return tok
}

// skipWhitespaceAndComments skips whitespace and SQL comments. Block
// comments nest, per T-SQL rules.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		// Line comment (-- ...)
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		// Block comment (/* ... */), nesting allowed
		if l.ch == '/' && l.peekChar() == '*' {
			openPos := l.pos
			l.readChar() // skip /
			l.readChar() // skip *
			depth := 1
			for l.ch != 0 && depth > 0 {
				if l.ch == '/' && l.peekChar() == '*' {
					depth++
					l.readChar()
					l.readChar()
					continue
				}
				if l.ch == '*' && l.peekChar() == '/' {
					depth--
					l.readChar()
					l.readChar()
					continue
				}
				l.readChar()
			}
			if depth > 0 {
				l.diags = append(l.diags, Diag{Offset: openPos, Message: "unterminated block comment"})
			}
			continue
		}
		break
	}
}

// readVariable reads @name or @@system_name.
func (l *Lexer) readVariable() Token {
	start := l.pos
	l.readChar() // skip @
	if l.ch == '@' {
		l.readChar() // system variable
	}
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return Token{Type: TOKEN_VAR, Literal: l.input[start:l.pos], Pos: start, End: l.pos}
}

// readString reads a single-quoted string literal starting at the current
// quote character. Handles '' escape for embedded quotes.
func (l *Lexer) readString(start int) Token {
	l.readChar() // skip opening quote
	var result strings.Builder
	terminated := false
	for l.ch != 0 {
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				result.WriteByte('\'')
				l.readChar()
				l.readChar()
			} else {
				l.readChar() // skip closing quote
				terminated = true
				break
			}
		} else {
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	if !terminated {
		l.diags = append(l.diags, Diag{Offset: start, Message: "unterminated string literal"})
		return Token{Type: TOKEN_ILLEGAL, Literal: result.String(), Pos: start, End: l.pos}
	}
	return Token{Type: TOKEN_STRING, Literal: result.String(), Pos: start, End: l.pos}
}

// readQuotedIdentifier reads a "quoted" or [bracketed] identifier.
// Double-quote identifiers use "" as the escape; brackets use ]].
func (l *Lexer) readQuotedIdentifier(start int, open, close byte) Token {
	l.readChar() // skip opening quote
	var result strings.Builder
	terminated := false
	for l.ch != 0 {
		if l.ch == close {
			if l.peekChar() == close {
				result.WriteByte(close)
				l.readChar()
				l.readChar()
			} else {
				l.readChar() // skip closing quote
				terminated = true
				break
			}
		} else {
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	if !terminated {
		l.diags = append(l.diags, Diag{
			Offset:  start,
			Message: fmt.Sprintf("unterminated quoted identifier (%c)", open),
		})
		return Token{Type: TOKEN_ILLEGAL, Literal: result.String(), Pos: start, End: l.pos, Quote: open}
	}
	return Token{Type: TOKEN_IDENT, Literal: result.String(), Pos: start, End: l.pos, Quote: open}
}

// readIdentifier reads an unquoted identifier. # prefixes (temp tables) are
// treated as part of the name.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '#' || l.ch == '$' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip .
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize runs the lexer to EOF and returns all tokens (excluding EOF)
// plus any diagnostics collected along the way.
func Tokenize(input string) ([]Token, []Diag) {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		if tok.Type == TOKEN_EOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks, l.Diagnostics()
}
