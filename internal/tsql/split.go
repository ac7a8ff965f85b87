package tsql

// Statement is one top-level statement: a slice of the token stream plus
// its byte span in the source text.
type Statement struct {
	Tokens []Token
	Start  int
	End    int
}

// SplitStatements splits a token stream into top-level statements. Splits
// happen on semicolons and GO batch separators that sit outside any
// parenthesis nesting; string and comment content never reaches this level
// because the lexer already consumed it.
func SplitStatements(toks []Token) []Statement {
	var stmts []Statement
	var cur []Token
	depth := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		stmts = append(stmts, Statement{
			Tokens: cur,
			Start:  cur[0].Pos,
			End:    cur[len(cur)-1].End,
		})
		cur = nil
	}

	for _, tok := range toks {
		switch tok.Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			if depth > 0 {
				depth--
			}
		case TOKEN_SEMICOLON:
			if depth == 0 {
				flush()
				continue
			}
		case TOKEN_GO:
			if depth == 0 {
				flush()
				continue
			}
		}
		cur = append(cur, tok)
	}
	flush()
	return stmts
}

// ParenDepths returns, for each token, the parenthesis nesting depth at that
// token (the depth inside which the token sits). Capped at maxDepth; capped
// reports whether the cap was hit.
func ParenDepths(toks []Token, maxDepth int) (depths []int, capped bool) {
	depths = make([]int, len(toks))
	depth := 0
	for i, tok := range toks {
		switch tok.Type {
		case TOKEN_LPAREN:
			depths[i] = depth
			depth++
			if depth > maxDepth {
				capped = true
				depth = maxDepth
			}
		case TOKEN_RPAREN:
			if depth > 0 {
				depth--
			}
			depths[i] = depth
		default:
			depths[i] = depth
		}
	}
	return depths, capped
}

// MatchParen returns the index of the RPAREN matching the LPAREN at open,
// or -1 when unbalanced. toks[open] must be a TOKEN_LPAREN.
func MatchParen(toks []Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// MatchParenBack returns the index of the LPAREN matching the RPAREN at
// close, or -1 when unbalanced. toks[close] must be a TOKEN_RPAREN.
func MatchParenBack(toks []Token, close int) int {
	depth := 0
	for i := close; i >= 0; i-- {
		switch toks[i].Type {
		case TOKEN_RPAREN:
			depth++
		case TOKEN_LPAREN:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
