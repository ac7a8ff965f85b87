// Package rewrite applies versioned, dialect-pair rewrite rules to SQL
// scripts. Rules work on spans of the original text: each pass rescans the
// current text, collects candidate patches, applies the innermost
// non-conflicting ones, and repeats until a fixpoint. The original text is
// never modified in place; every result retains it verbatim.
package rewrite

import (
	"sqlbridge/internal/domain"
	"sqlbridge/internal/extract"
)

// Patch is one proposed span replacement produced by a rule during a pass.
type Patch struct {
	Span        domain.Span
	Replacement string
	RuleID      string
	Confidence  domain.Confidence
	Note        string
}

// Finding is everything one rule reports for one scan of the text. Flags are
// applications that leave the text unchanged (a construct recognized but
// deliberately kept, pending human review). Unresolved are constructs the
// rule detected but cannot rewrite at all.
type Finding struct {
	Patches    []Patch
	Flags      []domain.RuleApplication
	Unresolved []domain.UnresolvedConstruct
}

func (f *Finding) patch(r *boundRule, span domain.Span, replacement, note string) {
	f.Patches = append(f.Patches, Patch{
		Span:        span,
		Replacement: replacement,
		RuleID:      r.ID(),
		Confidence:  r.confidence,
		Note:        note,
	})
}

// patchAs records a patch at an explicit confidence, for rules whose safe and
// review-required variants share an implementation.
func (f *Finding) patchAs(r *boundRule, span domain.Span, replacement string, conf domain.Confidence, note string) {
	f.Patches = append(f.Patches, Patch{
		Span:        span,
		Replacement: replacement,
		RuleID:      r.ID(),
		Confidence:  conf,
		Note:        note,
	})
}

func (f *Finding) flag(r *boundRule, span domain.Span, note string) {
	f.Flags = append(f.Flags, domain.RuleApplication{
		RuleID:     r.ID(),
		Span:       span,
		Confidence: domain.ConfidenceReview,
		Note:       note,
	})
}

func (f *Finding) unresolved(span domain.Span, construct, reason string) {
	f.Unresolved = append(f.Unresolved, domain.UnresolvedConstruct{
		Span:      span,
		Construct: construct,
		Reason:    reason,
	})
}

// matchFunc inspects one analysis and reports what the rule would do.
// Implementations must never produce output their own matcher would match
// again, or the engine cannot reach a fixpoint.
type matchFunc func(a *extract.Analysis, r *boundRule) Finding

// ruleSpec is the built-in definition of one rule: identity, default
// confidence, and matcher. The catalog binds specs to per-deployment
// settings.
type ruleSpec struct {
	ID          string
	Confidence  domain.Confidence
	Description string
	Match       matchFunc
}

// builtinRules lists every rule this engine implements, in the order they
// are offered patches each pass. Catalog files may disable or re-grade
// rules but cannot introduce IDs outside this set.
func builtinRules() []ruleSpec {
	return []ruleSpec{
		{
			ID:          "tsql.brackets",
			Confidence:  domain.ConfidenceSafe,
			Description: "replace [bracketed] identifiers with bare or `backtick` quoted names",
			Match:       matchBrackets,
		},
		{
			ID:          "tsql.getdate",
			Confidence:  domain.ConfidenceSafe,
			Description: "GETDATE()/SYSDATETIME() to CURRENT_TIMESTAMP()",
			Match:       matchGetdate,
		},
		{
			ID:          "tsql.isnull",
			Confidence:  domain.ConfidenceSafe,
			Description: "ISNULL(a, b) to COALESCE(a, b)",
			Match:       matchIsnull,
		},
		{
			ID:          "tsql.len",
			Confidence:  domain.ConfidenceSafe,
			Description: "LEN(s) to LENGTH(s)",
			Match:       matchLen,
		},
		{
			ID:          "tsql.dateadd",
			Confidence:  domain.ConfidenceSafe,
			Description: "DATEADD(unit, n, d) to DATE_ADD/ADD_MONTHS/TIMESTAMPADD",
			Match:       matchDateadd,
		},
		{
			ID:          "tsql.datediff",
			Confidence:  domain.ConfidenceSafe,
			Description: "DATEDIFF(unit, a, b): reverse argument order for day units, TIMESTAMPDIFF otherwise",
			Match:       matchDatediff,
		},
		{
			ID:          "tsql.stringagg",
			Confidence:  domain.ConfidenceSafe,
			Description: "STRING_AGG(e, sep) to ARRAY_JOIN(COLLECT_LIST(e), sep)",
			Match:       matchStringAgg,
		},
		{
			ID:          "tsql.top",
			Confidence:  domain.ConfidenceSafe,
			Description: "SELECT TOP n to trailing LIMIT n",
			Match:       matchTop,
		},
		{
			ID:          "tsql.window.frame",
			Confidence:  domain.ConfidenceReview,
			Description: "translate window frame units per the target capability map",
			Match:       matchWindowFrame,
		},
		{
			ID:          "tsql.declare",
			Confidence:  domain.ConfidenceSafe,
			Description: "inline statically-determinable script variables and drop their declarations",
			Match:       matchDeclare,
		},
		{
			ID:          "tsql.transaction",
			Confidence:  domain.ConfidenceSafe,
			Description: "elide BEGIN TRAN/COMMIT/ROLLBACK under per-statement atomicity",
			Match:       matchTransaction,
		},
		{
			ID:          "tsql.pivot",
			Confidence:  domain.ConfidenceReview,
			Description: "PIVOT with a literal IN list to conditional aggregation",
			Match:       matchPivot,
		},
		{
			ID:          "tsql.recursive",
			Confidence:  domain.ConfidenceReview,
			Description: "report recursive CTEs the target cannot express",
			Match:       matchRecursive,
		},
		{
			ID:          "tsql.dynamicsql",
			Confidence:  domain.ConfidenceReview,
			Description: "flag executed variables holding assembled SQL text",
			Match:       matchDynamicSQL,
		},
	}
}

// boundRule is one rule bound to its catalog settings.
type boundRule struct {
	spec       ruleSpec
	confidence domain.Confidence
	caps       TargetCaps
}

func (r *boundRule) ID() string { return r.spec.ID }
