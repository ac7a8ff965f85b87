// Package extract performs the structural scan of one SQL script and
// produces its FeatureSet.
//
// The scan is token-based with balanced-parenthesis tracking rather than a
// full parse: migration inventories contain scripts that no single grammar
// accepts, and the extractor must never fail. Anything it cannot make sense
// of degrades the result to Partial=true with a diagnostic instead of an
// error.
package extract

import (
	"fmt"
	"sort"

	"sqlbridge/internal/domain"
	"sqlbridge/internal/tsql"
)

// MaxNestingDepth caps parenthesis nesting during the scan. Exceeding it on
// adversarial input aborts into a Partial result rather than deep recursion.
const MaxNestingDepth = 64

// aggregateFuncs are function names counted as aggregates.
var aggregateFuncs = map[string]bool{
	"sum": true, "count": true, "avg": true, "min": true, "max": true,
	"stdev": true, "stddev": true, "var": true, "variance": true,
	"count_big": true,
}

// windowFuncs are function names recognized before OVER clauses. Names not
// in this set still count as window functions when followed by OVER; the
// set only normalizes the kind label for common aggregates.
var windowFuncs = map[string]bool{
	"row_number": true, "rank": true, "dense_rank": true, "ntile": true,
	"lag": true, "lead": true, "first_value": true, "last_value": true,
	"percent_rank": true, "cume_dist": true,
}

// CTE is one common table expression found during the scan.
type CTE struct {
	Name      string
	Span      domain.Span // the full "name AS ( ... )" span
	BodySpan  domain.Span // inside the parentheses
	Depth     int         // 1 for a top-level WITH, +1 per nested WITH
	Recursive bool        // body has a UNION ALL branch referencing Name
}

// WindowCall is one "func(...) OVER (...)" occurrence.
type WindowCall struct {
	Func         string
	Span         domain.Span // function call through closing paren of OVER
	OverSpan     domain.Span // inside the OVER parentheses
	HasPartition bool
	HasOrder     bool
	FrameUnit    string // "rows", "range", or "" when no frame clause
}

// PivotClause is one PIVOT ( agg(val) FOR key IN (...) ) occurrence.
type PivotClause struct {
	Span      domain.Span // PIVOT keyword through closing paren (and alias)
	AggFunc   string
	ValueCol  string
	KeyCol    string
	InLiteral bool     // true when the IN list is all literals
	Literals  []string // literal values when InLiteral
	Alias     string
}

// VarAssign is one assignment to a script variable, in program order.
type VarAssign struct {
	Name        string
	Span        domain.Span // full DECLARE/SET statement span for this var
	ValueSpan   domain.Span // the assigned expression
	Literal     bool        // value is a single literal token
	LiteralText string      // raw source text of the literal when Literal
	Concat      bool        // value involves string concatenation
}

// ExecCall is one EXEC/EXECUTE of a variable or expression.
type ExecCall struct {
	Span    domain.Span
	VarName string // "@v" when the executed payload is a single variable
}

// Analysis is the full structural scan: the FeatureSet plus the construct
// spans the rewrite engine needs. Computing both in one pass keeps the
// scorer and the rewriter driven by the same scan.
type Analysis struct {
	SQL        string
	Tokens     []tsql.Token
	Statements []tsql.Statement
	Features   domain.FeatureSet

	CTEs        []CTE
	WindowCalls []WindowCall
	Pivots      []PivotClause
	VarAssigns  []VarAssign
	VarReads    map[string][]domain.Span // reads, including inside assigned expressions
	ExecCalls   []ExecCall

	// SelectAssigns records the first "@v = expr" occurrence outside
	// DECLARE/SET per variable. SELECT @v = expr assigns, a bare @v = expr
	// compares, and telling them apart needs clause tracking; either way the
	// variable's value is no longer statically known.
	SelectAssigns map[string]domain.Span
}

// Scan structurally scans raw SQL text and returns its FeatureSet. It never
// fails: malformed input yields a partial FeatureSet with diagnostics.
func Scan(sql string) domain.FeatureSet {
	return Analyze(sql).Features
}

// Analyze runs the full structural scan.
func Analyze(sql string) *Analysis {
	a := &Analysis{
		SQL:           sql,
		VarReads:      make(map[string][]domain.Span),
		SelectAssigns: make(map[string]domain.Span),
	}

	toks, lexDiags := tsql.Tokenize(sql)
	a.Tokens = toks
	for _, d := range lexDiags {
		a.Features.Partial = true
		a.Features.Diagnostics = append(a.Features.Diagnostics, domain.Diagnostic{
			Offset: d.Offset, Message: d.Message,
		})
	}

	depths, capped := tsql.ParenDepths(toks, MaxNestingDepth)
	if capped {
		a.Features.Partial = true
		a.Features.Diagnostics = append(a.Features.Diagnostics, domain.Diagnostic{
			Message: fmt.Sprintf("parenthesis nesting exceeds cap of %d", MaxNestingDepth),
		})
	}

	a.Statements = tsql.SplitStatements(toks)
	a.Features.StatementCount = len(a.Statements)

	a.scanStatementKinds()
	a.scanCTEs(toks, 1)
	a.scanWindows(toks)
	a.scanPivots(toks)
	a.scanVariables(toks)
	a.scanFlags(toks, depths)

	return a
}

// scanStatementKinds classifies each top-level statement by its first
// SELECT/INSERT/UPDATE/DELETE keyword outside parentheses (skipping any
// leading WITH clause).
func (a *Analysis) scanStatementKinds() {
	for _, stmt := range a.Statements {
		depth := 0
		for _, tok := range stmt.Tokens {
			switch tok.Type {
			case tsql.TOKEN_LPAREN:
				depth++
			case tsql.TOKEN_RPAREN:
				if depth > 0 {
					depth--
				}
			}
			if depth != 0 {
				continue
			}
			matched := true
			switch tok.Type {
			case tsql.TOKEN_SELECT:
				a.Features.SelectCount++
			case tsql.TOKEN_INSERT:
				a.Features.InsertCount++
			case tsql.TOKEN_UPDATE:
				a.Features.UpdateCount++
			case tsql.TOKEN_DELETE:
				a.Features.DeleteCount++
			default:
				matched = false
			}
			if matched {
				break
			}
		}
	}
}

// scanCTEs walks WITH clauses, recursing into CTE bodies to measure nesting
// depth and detect self-referencing recursion.
func (a *Analysis) scanCTEs(toks []tsql.Token, depth int) {
	if depth > MaxNestingDepth {
		a.Features.Partial = true
		a.Features.Diagnostics = append(a.Features.Diagnostics, domain.Diagnostic{
			Message: fmt.Sprintf("CTE nesting exceeds cap of %d", MaxNestingDepth),
		})
		return
	}

	for i := 0; i < len(toks); i++ {
		if toks[i].Type != tsql.TOKEN_WITH {
			continue
		}
		// WITH must introduce a CTE list: next token is an identifier.
		// This skips table hints like WITH (NOLOCK).
		j := i + 1
		if j >= len(toks) || toks[j].Type != tsql.TOKEN_IDENT {
			continue
		}

		for j < len(toks) && toks[j].Type == tsql.TOKEN_IDENT {
			name := toks[j].Literal
			nameIdx := j
			j++
			// Optional column list: (c1, c2, ...)
			if j < len(toks) && toks[j].Type == tsql.TOKEN_LPAREN {
				if next := peekAfterParen(toks, j); next >= 0 && next < len(toks) && toks[next].Type == tsql.TOKEN_AS {
					end := tsql.MatchParen(toks, j)
					if end < 0 {
						break
					}
					j = end + 1
				}
			}
			if j >= len(toks) || toks[j].Type != tsql.TOKEN_AS {
				break
			}
			j++
			if j >= len(toks) || toks[j].Type != tsql.TOKEN_LPAREN {
				break
			}
			bodyEnd := tsql.MatchParen(toks, j)
			if bodyEnd < 0 {
				a.Features.Partial = true
				a.Features.Diagnostics = append(a.Features.Diagnostics, domain.Diagnostic{
					Offset: toks[j].Pos, Message: "unbalanced CTE body",
				})
				break
			}
			body := toks[j+1 : bodyEnd]

			cte := CTE{
				Name:      name,
				Span:      domain.Span{Start: toks[nameIdx].Pos, End: toks[bodyEnd].End},
				BodySpan:  domain.Span{Start: toks[j].End, End: toks[bodyEnd].Pos},
				Depth:     depth,
				Recursive: referencesAfterUnionAll(body, name),
			}
			a.CTEs = append(a.CTEs, cte)
			a.Features.CTECount++
			if depth > a.Features.MaxCTEDepth {
				a.Features.MaxCTEDepth = depth
			}
			if cte.Recursive {
				a.Features.HasRecursiveCTE = true
			}

			a.scanCTEs(body, depth+1)

			j = bodyEnd + 1
			if j < len(toks) && toks[j].Type == tsql.TOKEN_COMMA {
				j++
				continue
			}
			break
		}
		if j > i {
			i = j - 1
		}
	}
}

// peekAfterParen returns the index of the token following the group opened
// at the LPAREN at idx, or -1.
func peekAfterParen(toks []tsql.Token, idx int) int {
	end := tsql.MatchParen(toks, idx)
	if end < 0 {
		return -1
	}
	return end + 1
}

// referencesAfterUnionAll reports whether any UNION ALL branch of body
// references name — the shape of a recursive CTE.
func referencesAfterUnionAll(body []tsql.Token, name string) bool {
	for i := 0; i+1 < len(body); i++ {
		if body[i].Type != tsql.TOKEN_UNION || body[i+1].Type != tsql.TOKEN_ALL {
			continue
		}
		for _, tok := range body[i+2:] {
			if tok.Type == tsql.TOKEN_IDENT && tok.Lower() == toLower(name) {
				return true
			}
		}
	}
	return false
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

// scanWindows finds func(...) OVER (...) spans and classifies their frames.
func (a *Analysis) scanWindows(toks []tsql.Token) {
	kinds := make(map[string]bool)
	for i := 0; i < len(toks); i++ {
		if toks[i].Type != tsql.TOKEN_OVER {
			continue
		}
		if i+1 >= len(toks) || toks[i+1].Type != tsql.TOKEN_LPAREN {
			continue
		}
		overEnd := tsql.MatchParen(toks, i+1)
		if overEnd < 0 {
			continue
		}

		wc := WindowCall{
			OverSpan: domain.Span{Start: toks[i+1].End, End: toks[overEnd].Pos},
			Span:     domain.Span{Start: toks[i].Pos, End: toks[overEnd].End},
		}

		// Walk back over the function call: ... IDENT ( args ) OVER
		if i >= 1 && toks[i-1].Type == tsql.TOKEN_RPAREN {
			if open := tsql.MatchParenBack(toks, i-1); open >= 1 && toks[open-1].Type == tsql.TOKEN_IDENT {
				wc.Func = toks[open-1].Lower()
				wc.Span.Start = toks[open-1].Pos
			}
		}
		if wc.Func == "" {
			wc.Func = "window"
		}

		for _, tok := range toks[i+2 : overEnd] {
			switch tok.Type {
			case tsql.TOKEN_PARTITION:
				wc.HasPartition = true
			case tsql.TOKEN_ORDER:
				wc.HasOrder = true
			case tsql.TOKEN_ROWS:
				if wc.FrameUnit == "" {
					wc.FrameUnit = "rows"
				}
			case tsql.TOKEN_RANGE:
				if wc.FrameUnit == "" {
					wc.FrameUnit = "range"
				}
			}
		}

		a.WindowCalls = append(a.WindowCalls, wc)
		a.Features.WindowFuncCount++
		kinds[wc.Func] = true
	}
	for k := range kinds {
		a.Features.WindowFuncKinds = append(a.Features.WindowFuncKinds, k)
	}
	sort.Strings(a.Features.WindowFuncKinds)
}

// scanPivots finds PIVOT ( agg(val) FOR key IN (...) ) clauses and decides
// whether the IN list is statically enumerable.
func (a *Analysis) scanPivots(toks []tsql.Token) {
	for i := 0; i < len(toks); i++ {
		if toks[i].Type != tsql.TOKEN_PIVOT {
			continue
		}
		if i+1 >= len(toks) || toks[i+1].Type != tsql.TOKEN_LPAREN {
			continue
		}
		end := tsql.MatchParen(toks, i+1)
		if end < 0 {
			continue
		}
		a.Features.HasPivot = true

		pc := PivotClause{Span: domain.Span{Start: toks[i].Pos, End: toks[end].End}}
		inner := toks[i+2 : end]

		// agg ( val ) FOR key IN ( list )
		j := 0
		if j+1 < len(inner) && inner[j].Type == tsql.TOKEN_IDENT && inner[j+1].Type == tsql.TOKEN_LPAREN {
			pc.AggFunc = inner[j].Literal
			aggEnd := tsql.MatchParen(inner, j+1)
			if aggEnd > j+2 {
				pc.ValueCol = spanText(a.SQL, inner[j+2].Pos, inner[aggEnd-1].End)
			}
			j = aggEnd + 1
		}
		if j < len(inner) && inner[j].Type == tsql.TOKEN_FOR {
			j++
			var keyParts []string
			for j < len(inner) && (inner[j].Type == tsql.TOKEN_IDENT || inner[j].Type == tsql.TOKEN_DOT) {
				keyParts = append(keyParts, inner[j].Literal)
				j++
			}
			pc.KeyCol = joinDotted(keyParts)
		}
		if j < len(inner) && inner[j].Type == tsql.TOKEN_IN && j+1 < len(inner) && inner[j+1].Type == tsql.TOKEN_LPAREN {
			listEnd := tsql.MatchParen(inner, j+1)
			if listEnd > 0 {
				pc.InLiteral, pc.Literals = literalInList(inner[j+2 : listEnd])
			}
		}

		// Optional alias after the closing paren.
		if end+1 < len(toks) {
			k := end + 1
			if toks[k].Type == tsql.TOKEN_AS {
				k++
			}
			if k < len(toks) && toks[k].Type == tsql.TOKEN_IDENT {
				pc.Alias = toks[k].Literal
				pc.Span.End = toks[k].End
			}
		}

		a.Pivots = append(a.Pivots, pc)
	}
}

// literalInList reports whether the tokens form a comma-separated list of
// literals (strings, numbers, or bracketed identifiers as T-SQL pivot
// columns) and returns the literal values.
func literalInList(toks []tsql.Token) (bool, []string) {
	var lits []string
	expectValue := true
	for _, tok := range toks {
		if expectValue {
			switch tok.Type {
			case tsql.TOKEN_STRING, tsql.TOKEN_NUMBER:
				lits = append(lits, tok.Literal)
			case tsql.TOKEN_IDENT:
				if tok.Quote == 0 {
					// Bare identifier: could be a column or variable source.
					return false, nil
				}
				lits = append(lits, tok.Literal)
			default:
				return false, nil
			}
			expectValue = false
		} else {
			if tok.Type != tsql.TOKEN_COMMA {
				return false, nil
			}
			expectValue = true
		}
	}
	return len(lits) > 0 && !expectValue, lits
}

func joinDotted(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p
	}
	return out
}

func spanText(sql string, start, end int) string {
	if start < 0 || end > len(sql) || start > end {
		return ""
	}
	return sql[start:end]
}

// scanVariables tracks DECLARE/SET assignments and variable reads: the
// intra-script symbol table used for literal inlining and dynamic-SQL
// detection. Cross-procedure data flow is out of scope.
func (a *Analysis) scanVariables(toks []tsql.Token) {
	for i := 0; i < len(toks); i++ {
		switch toks[i].Type {
		case tsql.TOKEN_DECLARE:
			i = a.scanDeclare(toks, i)
		case tsql.TOKEN_SET:
			if i+2 < len(toks) && toks[i+1].Type == tsql.TOKEN_VAR && toks[i+2].Type == tsql.TOKEN_EQ {
				i = a.recordAssign(toks, i, i+1, i+3)
			}
		case tsql.TOKEN_EXEC:
			i = a.scanExec(toks, i)
		case tsql.TOKEN_VAR:
			name := toks[i].Lower()
			if i+1 < len(toks) && toks[i+1].Type == tsql.TOKEN_EQ {
				if _, ok := a.SelectAssigns[name]; !ok {
					a.SelectAssigns[name] = domain.Span{Start: toks[i].Pos, End: toks[i].End}
				}
				break
			}
			a.VarReads[name] = append(a.VarReads[name], domain.Span{Start: toks[i].Pos, End: toks[i].End})
		}
	}
}

// scanDeclare handles DECLARE @a TYPE [= expr] [, @b TYPE [= expr]]...
// and returns the index of the last consumed token.
func (a *Analysis) scanDeclare(toks []tsql.Token, declIdx int) int {
	i := declIdx + 1
	for i < len(toks) && toks[i].Type == tsql.TOKEN_VAR {
		a.Features.DeclaredVarCount++
		varIdx := i
		i++
		// Skip the type: identifier plus optional (n) or (n, m).
		for i < len(toks) && (toks[i].Type == tsql.TOKEN_IDENT || toks[i].Type == tsql.TOKEN_NUMBER) {
			i++
		}
		if i < len(toks) && toks[i].Type == tsql.TOKEN_LPAREN {
			if end := tsql.MatchParen(toks, i); end > 0 {
				i = end + 1
			}
		}
		if i < len(toks) && toks[i].Type == tsql.TOKEN_EQ {
			i = a.recordAssign(toks, declIdx, varIdx, i+1) + 1
		}
		if i < len(toks) && toks[i].Type == tsql.TOKEN_COMMA {
			i++
			continue
		}
		break
	}
	return i - 1
}

// recordAssign records an assignment whose value starts at valStart, and
// returns the index of the last value token.
func (a *Analysis) recordAssign(toks []tsql.Token, stmtStart, varIdx, valStart int) int {
	end := valStart
	depth := 0
	concat := false
	for end < len(toks) {
		t := toks[end]
		if depth == 0 && (t.Type == tsql.TOKEN_SEMICOLON || t.Type == tsql.TOKEN_COMMA ||
			t.Type == tsql.TOKEN_DECLARE || t.Type == tsql.TOKEN_SET ||
			t.Type == tsql.TOKEN_SELECT || t.Type == tsql.TOKEN_EXEC ||
			t.Type == tsql.TOKEN_GO) {
			break
		}
		switch t.Type {
		case tsql.TOKEN_LPAREN:
			depth++
		case tsql.TOKEN_RPAREN:
			depth--
			if depth < 0 {
				depth = 0
			}
		case tsql.TOKEN_PLUS:
			concat = true
		case tsql.TOKEN_VAR:
			a.VarReads[t.Lower()] = append(a.VarReads[t.Lower()], domain.Span{Start: t.Pos, End: t.End})
		}
		end++
	}
	if end == valStart {
		return valStart
	}

	va := VarAssign{
		Name:      toks[varIdx].Lower(),
		Span:      domain.Span{Start: toks[stmtStart].Pos, End: toks[end-1].End},
		ValueSpan: domain.Span{Start: toks[valStart].Pos, End: toks[end-1].End},
		Concat:    concat,
	}
	if end-valStart == 1 {
		switch toks[valStart].Type {
		case tsql.TOKEN_STRING, tsql.TOKEN_NUMBER, tsql.TOKEN_NULL:
			va.Literal = true
			va.LiteralText = spanText(a.SQL, toks[valStart].Pos, toks[valStart].End)
		}
	}
	a.VarAssigns = append(a.VarAssigns, va)
	return end - 1
}

// scanExec records EXEC(@v), EXEC sp_executesql @v, and plain EXEC calls,
// and returns the index of the last consumed token.
func (a *Analysis) scanExec(toks []tsql.Token, execIdx int) int {
	i := execIdx + 1
	ec := ExecCall{Span: domain.Span{Start: toks[execIdx].Pos, End: toks[execIdx].End}}

	if i < len(toks) && toks[i].Type == tsql.TOKEN_LPAREN {
		end := tsql.MatchParen(toks, i)
		if end == i+2 && toks[i+1].Type == tsql.TOKEN_VAR {
			ec.VarName = toks[i+1].Lower()
		}
		if end > 0 {
			ec.Span.End = toks[end].End
			i = end
		}
	} else if i < len(toks) && toks[i].Type == tsql.TOKEN_IDENT && toks[i].Lower() == "sp_executesql" {
		if i+1 < len(toks) && toks[i+1].Type == tsql.TOKEN_VAR {
			ec.VarName = toks[i+1].Lower()
			ec.Span.End = toks[i+1].End
			i++
		}
	} else {
		// EXEC proc_name ... — not dynamic SQL.
		return execIdx
	}

	a.ExecCalls = append(a.ExecCalls, ec)
	return i
}

// scanFlags covers the remaining single-pass detections.
func (a *Analysis) scanFlags(toks []tsql.Token, depths []int) {
	beganTran := false
	for i, tok := range toks {
		switch tok.Type {
		case tsql.TOKEN_JOIN:
			a.Features.JoinCount++
		case tsql.TOKEN_CASE:
			a.Features.CaseCount++
		case tsql.TOKEN_TOP:
			a.Features.HasTop = true
		case tsql.TOKEN_BEGIN:
			if i+1 < len(toks) && toks[i+1].Type == tsql.TOKEN_TRAN {
				beganTran = true
				a.Features.HasTransaction = true
			}
		case tsql.TOKEN_COMMIT, tsql.TOKEN_ROLLBACK:
			if beganTran {
				a.Features.HasTransaction = true
			}
		case tsql.TOKEN_SELECT:
			if depths[i] > a.Features.SubqueryDepth {
				a.Features.SubqueryDepth = depths[i]
			}
		case tsql.TOKEN_ILLEGAL:
			a.Features.Partial = true
		case tsql.TOKEN_IDENT:
			lower := tok.Lower()
			if i+1 < len(toks) && toks[i+1].Type == tsql.TOKEN_LPAREN {
				if aggregateFuncs[lower] {
					a.Features.AggregateCount++
				}
				if lower == "string_agg" {
					a.Features.HasStringAgg = true
					if end := tsql.MatchParen(toks, i+1); end > 0 &&
						end+2 < len(toks) &&
						toks[end+1].Type == tsql.TOKEN_WITHIN &&
						toks[end+2].Type == tsql.TOKEN_GROUP {
						a.Features.HasOrderedStringAgg = true
					}
				}
			}
		}
	}

	// Dynamic SQL: an executed variable whose value was assembled by string
	// concatenation, or any executed variable at all (conservative).
	for _, ec := range a.ExecCalls {
		if ec.VarName == "" {
			continue
		}
		a.Features.HasDynamicSQL = true
	}
}

// AssignedFromConcat reports whether the named variable has any assignment
// built by string concatenation.
func (a *Analysis) AssignedFromConcat(name string) bool {
	for _, va := range a.VarAssigns {
		if va.Name == name && va.Concat {
			return true
		}
	}
	return false
}

// HasAssignment reports whether the named variable is assigned anywhere in
// the script, by DECLARE/SET or in a SELECT list.
func (a *Analysis) HasAssignment(name string) bool {
	for _, va := range a.VarAssigns {
		if va.Name == name {
			return true
		}
	}
	_, ok := a.SelectAssigns[name]
	return ok
}
