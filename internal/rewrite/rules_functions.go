package rewrite

import (
	"strings"

	"sqlbridge/internal/domain"
	"sqlbridge/internal/extract"
	"sqlbridge/internal/tsql"
)

// span is shorthand for a byte range.
func span(start, end int) domain.Span { return domain.Span{Start: start, End: end} }

// textOf returns the raw source text under a token index range [from, to).
func textOf(a *extract.Analysis, from, to int) string {
	if from >= to || from < 0 || to > len(a.Tokens) {
		return ""
	}
	return a.SQL[a.Tokens[from].Pos:a.Tokens[to-1].End]
}

// argRanges splits the paren group opened at open into top-level
// comma-separated argument token ranges [start, end). Returns nil when the
// group is unbalanced.
func argRanges(toks []tsql.Token, open int) [][2]int {
	close := tsql.MatchParen(toks, open)
	if close < 0 {
		return nil
	}
	var args [][2]int
	start := open + 1
	depth := 0
	for i := open + 1; i < close; i++ {
		switch toks[i].Type {
		case tsql.TOKEN_LPAREN:
			depth++
		case tsql.TOKEN_RPAREN:
			depth--
		case tsql.TOKEN_COMMA:
			if depth == 0 {
				args = append(args, [2]int{start, i})
				start = i + 1
			}
		}
	}
	if start < close {
		args = append(args, [2]int{start, close})
	}
	return args
}

// bareFunc reports whether toks[i] is an unquoted identifier naming the
// given function, immediately followed by an opening paren.
func bareFunc(toks []tsql.Token, i int, name string) bool {
	return toks[i].Type == tsql.TOKEN_IDENT && toks[i].Quote == 0 &&
		toks[i].Lower() == name &&
		i+1 < len(toks) && toks[i+1].Type == tsql.TOKEN_LPAREN
}

// singleLiteral reports whether the argument range is exactly one string or
// numeric literal token.
func singleLiteral(toks []tsql.Token, arg [2]int) bool {
	if arg[1]-arg[0] != 1 {
		return false
	}
	switch toks[arg[0]].Type {
	case tsql.TOKEN_STRING, tsql.TOKEN_NUMBER:
		return true
	}
	return false
}

// dateUnits normalizes T-SQL datepart abbreviations.
var dateUnits = map[string]string{
	"day": "day", "dd": "day", "d": "day",
	"week": "week", "wk": "week", "ww": "week",
	"month": "month", "mm": "month", "m": "month",
	"quarter": "quarter", "qq": "quarter", "q": "quarter",
	"year": "year", "yy": "year", "yyyy": "year",
	"hour": "hour", "hh": "hour",
	"minute": "minute", "mi": "minute", "n": "minute",
	"second": "second", "ss": "second", "s": "second",
}

// canonUnit returns the canonical datepart named by an argument range, or ""
// when it is not a recognized bare unit keyword.
func canonUnit(toks []tsql.Token, arg [2]int) string {
	if arg[1]-arg[0] != 1 || toks[arg[0]].Type != tsql.TOKEN_IDENT || toks[arg[0]].Quote != 0 {
		return ""
	}
	return dateUnits[toks[arg[0]].Lower()]
}

// parenWrap parenthesizes multi-token expressions so they compose safely
// inside generated arithmetic.
func parenWrap(text string, arg [2]int) string {
	if arg[1]-arg[0] == 1 {
		return text
	}
	return "(" + text + ")"
}

func matchGetdate(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	toks := a.Tokens
	for i := 0; i+2 < len(toks); i++ {
		switch {
		case bareFunc(toks, i, "getdate"),
			bareFunc(toks, i, "sysdatetime"),
			bareFunc(toks, i, "sysutcdatetime"):
		default:
			continue
		}
		if toks[i+2].Type != tsql.TOKEN_RPAREN {
			continue
		}
		f.patch(r, span(toks[i].Pos, toks[i+2].End), "CURRENT_TIMESTAMP()", "")
	}
	return f
}

func matchIsnull(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	toks := a.Tokens
	for i := 0; i < len(toks); i++ {
		if !bareFunc(toks, i, "isnull") {
			continue
		}
		if len(argRanges(toks, i+1)) != 2 {
			continue
		}
		// Only the function name changes; the argument spans are untouched
		// so nested rewrites inside them stay independent.
		f.patch(r, span(toks[i].Pos, toks[i].End), "COALESCE", "")
	}
	return f
}

func matchLen(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	toks := a.Tokens
	for i := 0; i < len(toks); i++ {
		if !bareFunc(toks, i, "len") {
			continue
		}
		f.patch(r, span(toks[i].Pos, toks[i].End), "LENGTH", "")
	}
	return f
}

func matchDateadd(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	toks := a.Tokens
	for i := 0; i < len(toks); i++ {
		if !bareFunc(toks, i, "dateadd") {
			continue
		}
		end := tsql.MatchParen(toks, i+1)
		args := argRanges(toks, i+1)
		if end < 0 || len(args) != 3 {
			continue
		}
		unit := canonUnit(toks, args[0])
		full := span(toks[i].Pos, toks[end].End)
		if unit == "" {
			f.flag(r, full, "unrecognized DATEADD unit "+textOf(a, args[0][0], args[0][1]))
			continue
		}
		n := parenWrap(textOf(a, args[1][0], args[1][1]), args[1])
		d := textOf(a, args[2][0], args[2][1])

		var repl string
		switch unit {
		case "day":
			repl = "DATE_ADD(" + d + ", " + n + ")"
		case "week":
			repl = "DATE_ADD(" + d + ", " + n + " * 7)"
		case "month":
			repl = "ADD_MONTHS(" + d + ", " + n + ")"
		case "quarter":
			repl = "ADD_MONTHS(" + d + ", " + n + " * 3)"
		case "year":
			repl = "ADD_MONTHS(" + d + ", " + n + " * 12)"
		default: // hour, minute, second
			repl = "TIMESTAMPADD(" + strings.ToUpper(unit) + ", " + n + ", " + d + ")"
		}
		f.patch(r, full, repl, "")
	}
	return f
}

func matchDatediff(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	toks := a.Tokens
	for i := 0; i < len(toks); i++ {
		if !bareFunc(toks, i, "datediff") {
			continue
		}
		end := tsql.MatchParen(toks, i+1)
		args := argRanges(toks, i+1)
		if end < 0 || len(args) != 3 {
			continue
		}
		unit := canonUnit(toks, args[0])
		full := span(toks[i].Pos, toks[end].End)
		start := textOf(a, args[1][0], args[1][1])
		stop := textOf(a, args[2][0], args[2][1])

		switch unit {
		case "day":
			// The target's two-argument DATEDIFF takes (end, start) — the
			// reverse of the source's (start, end). Swapping silently is
			// only sound when both endpoints are static literals; anything
			// else is left untouched and flagged.
			if singleLiteral(toks, args[1]) && singleLiteral(toks, args[2]) {
				f.patch(r, full, "DATEDIFF("+stop+", "+start+")",
					"argument order reversed for the target dialect")
			} else {
				f.flag(r, full,
					"DATEDIFF argument order differs on the target and the endpoints are not statically verifiable")
			}
		case "":
			f.flag(r, full, "unrecognized DATEDIFF unit "+textOf(a, args[0][0], args[0][1]))
		default:
			// TIMESTAMPDIFF counts complete units where the source counts
			// boundary crossings, so month-level results can differ by one.
			f.patchAs(r, full,
				"TIMESTAMPDIFF("+strings.ToUpper(unit)+", "+start+", "+stop+")",
				domain.ConfidenceReview,
				"source counts "+unit+" boundary crossings, target counts complete units")
		}
	}
	return f
}

func matchStringAgg(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	toks := a.Tokens
	for i := 0; i < len(toks); i++ {
		if !bareFunc(toks, i, "string_agg") {
			continue
		}
		end := tsql.MatchParen(toks, i+1)
		args := argRanges(toks, i+1)
		if end < 0 || len(args) != 2 {
			continue
		}
		expr := textOf(a, args[0][0], args[0][1])
		sep := textOf(a, args[1][0], args[1][1])
		full := span(toks[i].Pos, toks[end].End)
		repl := "ARRAY_JOIN(COLLECT_LIST(" + expr + "), " + sep + ")"

		// WITHIN GROUP (ORDER BY ...) has no direct equivalent on a
		// collected list; the clause is consumed and the loss reported.
		if end+3 < len(toks) &&
			toks[end+1].Type == tsql.TOKEN_WITHIN &&
			toks[end+2].Type == tsql.TOKEN_GROUP &&
			toks[end+3].Type == tsql.TOKEN_LPAREN {
			if wgEnd := tsql.MatchParen(toks, end+3); wgEnd > 0 {
				full.End = toks[wgEnd].End
				f.patchAs(r, full, repl, domain.ConfidenceReview,
					"WITHIN GROUP ordering dropped; re-establish ordering on the collected list")
				continue
			}
		}
		f.patch(r, full, repl, "")
	}
	return f
}

// matchBrackets rewrites [bracketed] and "quoted" identifiers to bare names,
// backtick-quoting only where the name needs it. Identifiers inside PIVOT
// clauses are left for the pivot rule, which consumes them as literals.
func matchBrackets(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	for _, tok := range a.Tokens {
		if tok.Type != tsql.TOKEN_IDENT || (tok.Quote != '[' && tok.Quote != '"') {
			continue
		}
		if insidePivot(a, tok.Pos) {
			continue
		}
		f.patch(r, span(tok.Pos, tok.End), emitIdent(tok.Literal), "")
	}
	return f
}

func insidePivot(a *extract.Analysis, pos int) bool {
	for _, pc := range a.Pivots {
		if pos >= pc.Span.Start && pos < pc.Span.End {
			return true
		}
	}
	return false
}

// emitIdent renders an identifier bare when possible, backtick-quoted when
// it collides with a keyword or contains characters a bare name cannot.
func emitIdent(name string) string {
	if bareIdentOK(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func bareIdentOK(name string) bool {
	if name == "" || tsql.IsReservedWord(name) {
		return false
	}
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
