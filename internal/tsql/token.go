// Package tsql provides a T-SQL lexer and statement splitter for the
// migration assistant's structural scanner.
//
// It is not a full parser: the feature extractor and rewrite engine work on
// the token stream with balanced-parenthesis tracking, which is enough for
// statement splitting, CTE/subquery depth measurement, and span-accurate
// rewriting, while staying robust against the malformed scripts a migration
// inventory inevitably contains.
package tsql

import "strings"

// TokenType represents the type of a lexical token.
type TokenType int

// TOKEN_EOF and friends enumerate all token types produced by the lexer.
const (
	TOKEN_EOF     TokenType = iota // end of input
	TOKEN_ILLEGAL                  // unexpected or unterminated input

	TOKEN_IDENT  // identifier (possibly [bracketed] or "quoted")
	TOKEN_NUMBER // 123, 45.67, 1e10
	TOKEN_STRING // 'hello' or N'hello'
	TOKEN_VAR    // @variable or @@system_var

	TOKEN_PLUS      // +
	TOKEN_MINUS     // -
	TOKEN_STAR      // *
	TOKEN_SLASH     // /
	TOKEN_MOD       // %
	TOKEN_EQ        // =
	TOKEN_NE        // != or <>
	TOKEN_LT        // <
	TOKEN_GT        // >
	TOKEN_LE        // <=
	TOKEN_GE        // >=
	TOKEN_DOT       // .
	TOKEN_COMMA     // ,
	TOKEN_SEMICOLON // ;
	TOKEN_LPAREN    // (
	TOKEN_RPAREN    // )

	// TOKEN_ALL and below are SQL keywords (alphabetical).
	TOKEN_ALL
	TOKEN_AND
	TOKEN_AS
	TOKEN_BEGIN
	TOKEN_BETWEEN
	TOKEN_BY
	TOKEN_CASE
	TOKEN_COMMIT
	TOKEN_CROSS
	TOKEN_DECLARE
	TOKEN_DELETE
	TOKEN_DISTINCT
	TOKEN_ELSE
	TOKEN_END
	TOKEN_EXEC
	TOKEN_EXISTS
	TOKEN_FOLLOWING
	TOKEN_FOR
	TOKEN_FROM
	TOKEN_FULL
	TOKEN_GO
	TOKEN_GROUP
	TOKEN_HAVING
	TOKEN_IN
	TOKEN_INNER
	TOKEN_INSERT
	TOKEN_INTO
	TOKEN_IS
	TOKEN_JOIN
	TOKEN_LEFT
	TOKEN_LIMIT
	TOKEN_NOT
	TOKEN_NULL
	TOKEN_ON
	TOKEN_OR
	TOKEN_ORDER
	TOKEN_OUTER
	TOKEN_OVER
	TOKEN_PARTITION
	TOKEN_PIVOT
	TOKEN_PRECEDING
	TOKEN_RANGE
	TOKEN_RIGHT
	TOKEN_ROLLBACK
	TOKEN_ROWS
	TOKEN_SELECT
	TOKEN_SET
	TOKEN_THEN
	TOKEN_TOP
	TOKEN_TRAN
	TOKEN_UNBOUNDED
	TOKEN_UNION
	TOKEN_UNPIVOT
	TOKEN_UPDATE
	TOKEN_VALUES
	TOKEN_WHEN
	TOKEN_WHERE
	TOKEN_WITH
	TOKEN_WITHIN
)

// keywords maps lowercased identifiers to keyword token types.
var keywords = map[string]TokenType{
	"all":         TOKEN_ALL,
	"and":         TOKEN_AND,
	"as":          TOKEN_AS,
	"begin":       TOKEN_BEGIN,
	"between":     TOKEN_BETWEEN,
	"by":          TOKEN_BY,
	"case":        TOKEN_CASE,
	"commit":      TOKEN_COMMIT,
	"cross":       TOKEN_CROSS,
	"declare":     TOKEN_DECLARE,
	"delete":      TOKEN_DELETE,
	"distinct":    TOKEN_DISTINCT,
	"else":        TOKEN_ELSE,
	"end":         TOKEN_END,
	"exec":        TOKEN_EXEC,
	"execute":     TOKEN_EXEC,
	"exists":      TOKEN_EXISTS,
	"following":   TOKEN_FOLLOWING,
	"for":         TOKEN_FOR,
	"from":        TOKEN_FROM,
	"full":        TOKEN_FULL,
	"go":          TOKEN_GO,
	"group":       TOKEN_GROUP,
	"having":      TOKEN_HAVING,
	"in":          TOKEN_IN,
	"inner":       TOKEN_INNER,
	"insert":      TOKEN_INSERT,
	"into":        TOKEN_INTO,
	"is":          TOKEN_IS,
	"join":        TOKEN_JOIN,
	"left":        TOKEN_LEFT,
	"limit":       TOKEN_LIMIT,
	"not":         TOKEN_NOT,
	"null":        TOKEN_NULL,
	"on":          TOKEN_ON,
	"or":          TOKEN_OR,
	"order":       TOKEN_ORDER,
	"outer":       TOKEN_OUTER,
	"over":        TOKEN_OVER,
	"partition":   TOKEN_PARTITION,
	"pivot":       TOKEN_PIVOT,
	"preceding":   TOKEN_PRECEDING,
	"range":       TOKEN_RANGE,
	"right":       TOKEN_RIGHT,
	"rollback":    TOKEN_ROLLBACK,
	"rows":        TOKEN_ROWS,
	"select":      TOKEN_SELECT,
	"set":         TOKEN_SET,
	"then":        TOKEN_THEN,
	"top":         TOKEN_TOP,
	"tran":        TOKEN_TRAN,
	"transaction": TOKEN_TRAN,
	"unbounded":   TOKEN_UNBOUNDED,
	"union":       TOKEN_UNION,
	"unpivot":     TOKEN_UNPIVOT,
	"update":      TOKEN_UPDATE,
	"values":      TOKEN_VALUES,
	"when":        TOKEN_WHEN,
	"where":       TOKEN_WHERE,
	"with":        TOKEN_WITH,
	"within":      TOKEN_WITHIN,
}

// lookupKeyword returns the keyword token type for an identifier, or
// TOKEN_IDENT when it is not a keyword.
func lookupKeyword(lower string) TokenType {
	if tt, ok := keywords[lower]; ok {
		return tt
	}
	return TOKEN_IDENT
}

// IsReservedWord reports whether the word is a SQL keyword. Identifiers that
// collide with keywords need quoting when emitted bare.
func IsReservedWord(word string) bool {
	_, ok := keywords[strings.ToLower(word)]
	return ok
}

// Token is one lexical token with its source span.
type Token struct {
	Type    TokenType
	Literal string // decoded value for strings and quoted identifiers
	Pos     int    // byte offset of the first character
	End     int    // byte offset one past the last character
	Quote   byte   // 0 for bare tokens, '[' or '"' for quoted identifiers
}

// IsKeyword reports whether the token is a SQL keyword.
func (t Token) IsKeyword() bool { return t.Type >= TOKEN_ALL }

// Lower returns the lowercased literal, the form used for function-name
// matching.
func (t Token) Lower() string { return strings.ToLower(t.Literal) }
