package tsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeBasics(t *testing.T) {
	t.Parallel()

	toks, diags := Tokenize("SELECT id, name FROM users WHERE age >= 21;")
	require.Empty(t, diags)

	types := make([]TokenType, 0, len(toks))
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TOKEN_SELECT, TOKEN_IDENT, TOKEN_COMMA, TOKEN_IDENT,
		TOKEN_FROM, TOKEN_IDENT, TOKEN_WHERE, TOKEN_IDENT,
		TOKEN_GE, TOKEN_NUMBER, TOKEN_SEMICOLON,
	}, types)

	// Spans are byte-accurate against the input.
	assert.Equal(t, 0, toks[0].Pos)
	assert.Equal(t, 6, toks[0].End)
	assert.Equal(t, "users", toks[5].Literal)
}

func TestTokenizeLiterals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		typ     TokenType
		literal string
	}{
		{name: "string", input: "'hello'", typ: TOKEN_STRING, literal: "hello"},
		{name: "string with escaped quote", input: "'it''s'", typ: TOKEN_STRING, literal: "it's"},
		{name: "unicode string", input: "N'héllo'", typ: TOKEN_STRING, literal: "héllo"},
		{name: "bracketed identifier", input: "[Order Details]", typ: TOKEN_IDENT, literal: "Order Details"},
		{name: "bracket escape", input: "[a]]b]", typ: TOKEN_IDENT, literal: "a]b"},
		{name: "quoted identifier", input: `"Weird Name"`, typ: TOKEN_IDENT, literal: "Weird Name"},
		{name: "variable", input: "@total", typ: TOKEN_VAR, literal: "@total"},
		{name: "system variable", input: "@@rowcount", typ: TOKEN_VAR, literal: "@@rowcount"},
		{name: "decimal", input: "45.67", typ: TOKEN_NUMBER, literal: "45.67"},
		{name: "scientific", input: "1e10", typ: TOKEN_NUMBER, literal: "1e10"},
		{name: "temp table", input: "#tmp", typ: TOKEN_IDENT, literal: "#tmp"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			toks, diags := Tokenize(tt.input)
			require.Empty(t, diags)
			require.Len(t, toks, 1)
			assert.Equal(t, tt.typ, toks[0].Type)
			assert.Equal(t, tt.literal, toks[0].Literal)
			assert.Equal(t, 0, toks[0].Pos)
			assert.Equal(t, len(tt.input), toks[0].End)
		})
	}
}

func TestTokenizeQuoteByte(t *testing.T) {
	t.Parallel()

	toks, _ := Tokenize(`[a] "b" c`)
	require.Len(t, toks, 3)
	assert.Equal(t, byte('['), toks[0].Quote)
	assert.Equal(t, byte('"'), toks[1].Quote)
	assert.Equal(t, byte(0), toks[2].Quote)
}

func TestTokenizeComments(t *testing.T) {
	t.Parallel()

	t.Run("line and block comments skipped", func(t *testing.T) {
		t.Parallel()

		toks, diags := Tokenize("SELECT 1 -- trailing\n/* block */ FROM t")
		require.Empty(t, diags)
		require.Len(t, toks, 4)
		assert.Equal(t, TOKEN_FROM, toks[2].Type)
	})

	t.Run("nested block comments", func(t *testing.T) {
		t.Parallel()

		toks, diags := Tokenize("/* outer /* inner */ still outer */ SELECT 1")
		require.Empty(t, diags)
		require.Len(t, toks, 2)
		assert.Equal(t, TOKEN_SELECT, toks[0].Type)
	})
}

func TestTokenizeRecoversFromMalformedInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		wantMessage string
	}{
		{name: "unterminated string", input: "SELECT 'oops", wantMessage: "unterminated string literal"},
		{name: "unterminated bracket", input: "SELECT [oops", wantMessage: "unterminated quoted identifier ([)"},
		{name: "unterminated block comment", input: "SELECT 1 /* oops", wantMessage: "unterminated block comment"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			toks, diags := Tokenize(tt.input)
			require.Len(t, diags, 1)
			assert.Equal(t, tt.wantMessage, diags[0].Message)
			// The lexer still produces tokens for what it could read.
			require.NotEmpty(t, toks)
			assert.Equal(t, TOKEN_SELECT, toks[0].Type)
		})
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	t.Run("semicolons", func(t *testing.T) {
		t.Parallel()

		toks, _ := Tokenize("SELECT 1; SELECT 2; SELECT 3")
		stmts := SplitStatements(toks)
		require.Len(t, stmts, 3)
		for _, s := range stmts {
			assert.Len(t, s.Tokens, 2)
		}
	})

	t.Run("go separator", func(t *testing.T) {
		t.Parallel()

		toks, _ := Tokenize("SELECT 1\nGO\nSELECT 2")
		stmts := SplitStatements(toks)
		require.Len(t, stmts, 2)
	})

	t.Run("semicolon inside parens does not split", func(t *testing.T) {
		t.Parallel()

		// Defensive — some exports contain stray semicolons in subqueries.
		toks, _ := Tokenize("SELECT (1); SELECT 2")
		stmts := SplitStatements(toks)
		require.Len(t, stmts, 2)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		toks, _ := Tokenize("  -- only a comment\n")
		assert.Empty(t, SplitStatements(toks))
	})
}

func TestMatchParen(t *testing.T) {
	t.Parallel()

	toks, _ := Tokenize("f(a, g(b), c)")
	// toks: f ( a , g ( b ) , c )
	assert.Equal(t, 10, MatchParen(toks, 1))
	assert.Equal(t, 7, MatchParen(toks, 5))

	assert.Equal(t, 1, MatchParenBack(toks, 10))
	assert.Equal(t, 5, MatchParenBack(toks, 7))

	unbalanced, _ := Tokenize("f(a")
	assert.Equal(t, -1, MatchParen(unbalanced, 1))
}

func TestParenDepths(t *testing.T) {
	t.Parallel()

	toks, _ := Tokenize("a (b (c) d) e")
	depths, capped := ParenDepths(toks, 64)
	assert.False(t, capped)
	assert.Equal(t, []int{0, 0, 1, 1, 2, 1, 1, 0, 0}, depths)
}

func TestParenDepthsCapped(t *testing.T) {
	t.Parallel()

	input := ""
	for i := 0; i < 70; i++ {
		input += "("
	}
	toks, _ := Tokenize(input)
	_, capped := ParenDepths(toks, 64)
	assert.True(t, capped)
}
