package rewrite

import (
	"strings"

	"sqlbridge/internal/domain"
	"sqlbridge/internal/extract"
	"sqlbridge/internal/tsql"
)

// matchTop rewrites SELECT TOP n into a trailing LIMIT n at the end of the
// enclosing scope: the statement for a top-level SELECT, the closing paren
// for a subquery. TOP PERCENT and WITH TIES have no LIMIT equivalent and
// are flagged instead.
func matchTop(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	toks := a.Tokens
	depths, _ := tsql.ParenDepths(toks, extract.MaxNestingDepth)

	// Candidates are grouped by insertion point first: two TOP clauses
	// sharing one scope (UNION branches) cannot both become a trailing
	// LIMIT, and converting only one would change what the other keeps.
	type topClause struct {
		clause domain.Span
		n      string
		note   string
	}
	byScope := make(map[int][]topClause)
	var scopes []int

	for i := 0; i < len(toks); i++ {
		if toks[i].Type != tsql.TOKEN_TOP {
			continue
		}
		if i == 0 || toks[i-1].Type != tsql.TOKEN_SELECT {
			f.flag(r, span(toks[i].Pos, toks[i].End), "TOP outside SELECT has no LIMIT equivalent")
			continue
		}

		// TOP n or TOP (expr)
		last := -1
		var n string
		if i+1 < len(toks) && toks[i+1].Type == tsql.TOKEN_NUMBER {
			last = i + 1
			n = textOf(a, i+1, i+2)
		} else if i+1 < len(toks) && toks[i+1].Type == tsql.TOKEN_LPAREN {
			if end := tsql.MatchParen(toks, i+1); end > i+2 {
				last = end
				n = textOf(a, i+2, end)
			}
		}
		if last < 0 {
			continue
		}

		if last+1 < len(toks) && toks[last+1].Type == tsql.TOKEN_IDENT && toks[last+1].Lower() == "percent" {
			f.flag(r, span(toks[i].Pos, toks[last+1].End), "TOP PERCENT has no LIMIT equivalent")
			continue
		}
		if last+2 < len(toks) && toks[last+1].Type == tsql.TOKEN_WITH &&
			toks[last+2].Type == tsql.TOKEN_IDENT && toks[last+2].Lower() == "ties" {
			f.flag(r, span(toks[i].Pos, toks[last+2].End), "TOP WITH TIES has no LIMIT equivalent")
			continue
		}

		insertAt, scopeEnd := limitInsertionPoint(a, toks, depths, i)
		if insertAt < 0 {
			continue
		}
		note := ""
		if !orderByInRange(toks, i, scopeEnd, depths, depths[i]) {
			note = "no ORDER BY in scope; the selected rows were already non-deterministic"
		}
		if _, ok := byScope[insertAt]; !ok {
			scopes = append(scopes, insertAt)
		}
		byScope[insertAt] = append(byScope[insertAt], topClause{
			clause: span(toks[i].Pos, toks[last].End),
			n:      n,
			note:   note,
		})
	}

	for _, at := range scopes {
		clauses := byScope[at]
		if len(clauses) > 1 {
			for _, c := range clauses {
				f.flag(r, c.clause,
					"multiple TOP clauses share one statement scope; rewrite manually")
			}
			continue
		}
		c := clauses[0]
		f.patch(r, c.clause, "", "")
		f.patch(r, span(at, at), " LIMIT "+c.n, c.note)
	}
	return f
}

// limitInsertionPoint returns the byte offset where LIMIT belongs for the
// TOP at token index i, plus the token index bounding the scope.
func limitInsertionPoint(a *extract.Analysis, toks []tsql.Token, depths []int, i int) (int, int) {
	if depths[i] > 0 {
		// Subquery: insert before the paren that closes this scope.
		depth := 0
		for k := i; k < len(toks); k++ {
			switch toks[k].Type {
			case tsql.TOKEN_LPAREN:
				depth++
			case tsql.TOKEN_RPAREN:
				depth--
				if depth < 0 {
					return toks[k].Pos, k
				}
			}
		}
		return -1, -1
	}
	for _, stmt := range a.Statements {
		if stmt.Start <= toks[i].Pos && toks[i].Pos < stmt.End {
			end := len(toks)
			for k := i; k < len(toks); k++ {
				if toks[k].Pos >= stmt.End {
					end = k
					break
				}
			}
			return stmt.End, end
		}
	}
	return -1, -1
}

func orderByInRange(toks []tsql.Token, from, to int, depths []int, depth int) bool {
	for k := from; k < to && k < len(toks); k++ {
		if toks[k].Type == tsql.TOKEN_ORDER && depths[k] == depth {
			return true
		}
	}
	return false
}

// matchWindowFrame translates window frame units per the target capability
// map. Identity and missing mappings leave the frame untouched.
func matchWindowFrame(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	for _, wc := range a.WindowCalls {
		if wc.FrameUnit == "" {
			continue
		}
		mapped := r.caps.FrameUnits[wc.FrameUnit]
		if mapped == "" || mapped == wc.FrameUnit {
			continue
		}
		for _, tok := range a.Tokens {
			if tok.Pos < wc.OverSpan.Start || tok.End > wc.OverSpan.End {
				continue
			}
			if tok.Type == tsql.TOKEN_ROWS || tok.Type == tsql.TOKEN_RANGE {
				f.patch(r, span(tok.Pos, tok.End), strings.ToUpper(mapped),
					"frame unit translated; peer-row tie semantics differ between units")
				break
			}
		}
	}
	return f
}

// matchTransaction removes BEGIN TRAN/COMMIT/ROLLBACK when the target only
// guarantees per-statement atomicity. Under a session transaction model the
// statements are kept and flagged for review instead.
func matchTransaction(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	toks := a.Tokens

	for i := 0; i < len(toks); i++ {
		switch toks[i].Type {
		case tsql.TOKEN_BEGIN:
			if i+1 >= len(toks) || toks[i+1].Type != tsql.TOKEN_TRAN {
				continue
			}
			end := i + 1
			if end+1 < len(toks) && toks[end+1].Type == tsql.TOKEN_IDENT {
				end++
			}
			if r.caps.TransactionModel == "session" {
				f.flag(r, span(toks[i].Pos, toks[end].End),
					"transaction kept; verify session-level guarantees on the target")
				continue
			}
			f.patch(r, swallowSemicolon(a, span(toks[i].Pos, toks[end].End)), "",
				"transaction control removed; per-statement atomicity assumed")
			i = end
		case tsql.TOKEN_COMMIT, tsql.TOKEN_ROLLBACK:
			if r.caps.TransactionModel == "session" {
				continue
			}
			kind := toks[i].Type
			end := i
			if end+1 < len(toks) && toks[end+1].Type == tsql.TOKEN_TRAN {
				end++
				if end+1 < len(toks) && toks[end+1].Type == tsql.TOKEN_IDENT {
					end++
				}
			}
			sp := swallowSemicolon(a, span(toks[i].Pos, toks[end].End))
			if kind == tsql.TOKEN_ROLLBACK {
				f.patchAs(r, sp, "", domain.ConfidenceReview,
					"ROLLBACK removed; failure handling must be re-established")
			} else {
				f.patch(r, sp, "", "transaction control removed; per-statement atomicity assumed")
			}
			i = end
		}
	}
	return f
}

// swallowSemicolon extends an elision span over a directly following
// semicolon so the removal does not leave empty statements behind.
func swallowSemicolon(a *extract.Analysis, sp domain.Span) domain.Span {
	end := sp.End
	for end < len(a.SQL) && (a.SQL[end] == ' ' || a.SQL[end] == '\t') {
		end++
	}
	if end < len(a.SQL) && a.SQL[end] == ';' {
		sp.End = end + 1
	}
	return sp
}

// matchPivot rewrites PIVOT with a statically enumerable IN list into a
// derived table of conditional aggregations. Anything it cannot enumerate
// is unresolved.
func matchPivot(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	toks := a.Tokens

	for _, pc := range a.Pivots {
		if !pc.InLiteral {
			f.unresolved(pc.Span, "PIVOT",
				"IN list is not a static literal list; enumerate the pivot columns manually")
			continue
		}
		if pc.AggFunc == "" || pc.KeyCol == "" || pc.ValueCol == "" {
			f.unresolved(pc.Span, "PIVOT", "pivot clause could not be parsed")
			continue
		}

		pidx := tokenAt(toks, pc.Span.Start)
		srcStart := pivotSourceStart(toks, pidx)
		if pidx < 0 || srcStart < 0 || srcStart >= pidx {
			f.unresolved(pc.Span, "PIVOT", "no source relation found before PIVOT")
			continue
		}
		src := a.SQL[toks[srcStart].Pos:toks[pidx-1].End]

		agg := strings.ToUpper(pc.AggFunc)
		// SUM over no matching rows must still produce 0, matching the
		// source's pivot semantics; other aggregates keep NULL.
		caseElse := " END"
		if agg == "SUM" || agg == "COUNT" {
			caseElse = " ELSE 0 END"
		}
		var cols []string
		for _, lit := range pc.Literals {
			cols = append(cols, agg+"(CASE WHEN "+pc.KeyCol+" = "+pivotLiteral(lit)+
				" THEN "+pc.ValueCol+caseElse+") AS "+emitIdent(lit))
		}
		except := pc.KeyCol
		if bareIdentOK(pc.ValueCol) {
			except += ", " + pc.ValueCol
		}
		alias := pc.Alias
		if alias == "" {
			alias = "piv"
		}
		repl := "(SELECT * EXCEPT (" + except + "), " + strings.Join(cols, ", ") +
			" FROM " + src + " GROUP BY ALL) " + alias

		f.patch(r, span(toks[srcStart].Pos, pc.Span.End), repl,
			"PIVOT rewritten to conditional aggregation; verify grouping columns")
	}
	return f
}

// tokenAt returns the index of the token starting at byte offset pos, or -1.
func tokenAt(toks []tsql.Token, pos int) int {
	for i, tok := range toks {
		if tok.Pos == pos {
			return i
		}
	}
	return -1
}

// pivotSourceStart walks back from the PIVOT keyword over the source
// relation: a dotted name chain, optionally preceded by a parenthesized
// derived table.
func pivotSourceStart(toks []tsql.Token, pidx int) int {
	k := pidx - 1
	for k >= 0 && (toks[k].Type == tsql.TOKEN_IDENT || toks[k].Type == tsql.TOKEN_DOT) {
		k--
	}
	if k >= 0 && toks[k].Type == tsql.TOKEN_RPAREN {
		if open := tsql.MatchParenBack(toks, k); open >= 0 {
			return open
		}
		return -1
	}
	if k+1 < pidx {
		return k + 1
	}
	return -1
}

// pivotLiteral renders an IN-list value for comparison against the key
// column: numerics stay bare, everything else becomes a string literal.
func pivotLiteral(lit string) string {
	if lit != "" && strings.Trim(lit, "0123456789.-") == "" {
		return lit
	}
	return "'" + strings.ReplaceAll(lit, "'", "''") + "'"
}

// matchRecursive reports recursive CTEs the target cannot express. There is
// no mechanical rewrite: recursion must be unrolled or materialized by hand.
func matchRecursive(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	if r.caps.SupportsRecursion {
		return f
	}
	for _, cte := range a.CTEs {
		if cte.Recursive {
			f.unresolved(cte.Span, "recursive CTE",
				"target has no recursive WITH; rewrite as iterative level materialization")
		}
	}
	return f
}
