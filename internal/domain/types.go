// Package domain defines core types, interfaces, and errors for the
// migration assistant.
package domain

// Dialect identifies a SQL engine's syntax and semantics.
type Dialect string

// DialectTSQL and friends enumerate the dialects the assistant understands.
const (
	DialectTSQL       Dialect = "tsql"
	DialectDatabricks Dialect = "databricks"
)

// SourceQuery is one SQL script to assess. Immutable once ingested.
type SourceQuery struct {
	ID      string  `json:"id"`
	Dialect Dialect `json:"dialect"`
	SQL     string  `json:"sql"`
}

// Diagnostic records a non-fatal issue found during scanning, anchored to a
// byte offset in the source text.
type Diagnostic struct {
	Offset  int    `json:"offset"`
	Message string `json:"message"`
}

// FeatureSet is the structural fingerprint of one script. It drives both
// scoring and rewriting.
type FeatureSet struct {
	StatementCount int `json:"statement_count"`
	SelectCount    int `json:"select_count"`
	InsertCount    int `json:"insert_count"`
	UpdateCount    int `json:"update_count"`
	DeleteCount    int `json:"delete_count"`

	CTECount    int  `json:"cte_count"`
	MaxCTEDepth int  `json:"max_cte_depth"`
	HasRecursiveCTE bool `json:"has_recursive_cte"`

	WindowFuncCount int      `json:"window_func_count"`
	WindowFuncKinds []string `json:"window_func_kinds,omitempty"`

	HasPivot         bool `json:"has_pivot"`
	HasDynamicSQL    bool `json:"has_dynamic_sql"`
	HasStringAgg     bool `json:"has_string_agg"`
	HasOrderedStringAgg bool `json:"has_ordered_string_agg"`
	HasTransaction   bool `json:"has_transaction"`
	HasTop           bool `json:"has_top"`

	DeclaredVarCount int `json:"declared_var_count"`
	JoinCount        int `json:"join_count"`
	SubqueryDepth    int `json:"subquery_depth"`
	AggregateCount   int `json:"aggregate_count"`
	CaseCount        int `json:"case_count"`

	// Partial is true when the scan was degraded by malformed literals,
	// unterminated comments, or the nesting-depth cap.
	Partial     bool         `json:"partial"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Category classifies the workload style of a query.
type Category string

// CategoryTrivial and friends enumerate workload categories.
const (
	CategoryTrivial   Category = "Trivial"
	CategoryReporting Category = "Reporting"
	CategoryOLTP      Category = "OLTP"
	CategoryAnalytics Category = "Analytics"
)

// ComplexityScore is the calibrated migration-difficulty estimate for one
// query. It is a pure, deterministic function of the FeatureSet and the
// scoring weights.
type ComplexityScore struct {
	Value          float64  `json:"value"` // in [0, 10]
	Category       Category `json:"category"`
	EstimatedHours float64  `json:"estimated_hours"`
	LowConfidence  bool     `json:"low_confidence"`
}

// Confidence states whether a rewrite is semantically guaranteed equivalent
// or requires human sign-off.
type Confidence string

// ConfidenceSafe and ConfidenceReview are the two rule confidence levels.
const (
	ConfidenceSafe   Confidence = "safe"
	ConfidenceReview Confidence = "review-required"
)

// Span is a half-open byte range [Start, End) in the original query text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether s fully encloses other.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Overlaps reports whether s and other share any bytes.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// RuleApplication records one rule firing on one span.
type RuleApplication struct {
	RuleID     string     `json:"rule_id"`
	Span       Span       `json:"span"`
	Confidence Confidence `json:"confidence"`
	Note       string     `json:"note,omitempty"`
}

// UnresolvedConstruct is a detected construct no rule could rewrite safely.
type UnresolvedConstruct struct {
	Span      Span   `json:"span"`
	Construct string `json:"construct"`
	Reason    string `json:"reason"`
}

// RewriteResult is the outcome of running the rule catalog over one query.
// The untouched original text is always retained alongside the rewrite.
type RewriteResult struct {
	Original   string                `json:"original"`
	Rewritten  string                `json:"rewritten"`
	Applied    []RuleApplication     `json:"applied,omitempty"`
	Unresolved []UnresolvedConstruct `json:"unresolved,omitempty"`

	// RequiresManualReview is true iff any applied rule was review-required
	// or any detected construct had no matching rule.
	RequiresManualReview bool `json:"requires_manual_review"`

	// CatalogVersion is the rule catalog snapshot this result was computed
	// against. Results are recomputed when the version changes.
	CatalogVersion string `json:"catalog_version"`
}

// DeriveReview recomputes RequiresManualReview from the applied and
// unresolved lists.
func (r *RewriteResult) DeriveReview() {
	r.RequiresManualReview = len(r.Unresolved) > 0
	for _, app := range r.Applied {
		if app.Confidence == ConfidenceReview {
			r.RequiresManualReview = true
			return
		}
	}
}

// Assessment bundles the per-query outputs for one SourceQuery.
type Assessment struct {
	Query    SourceQuery     `json:"query"`
	Features FeatureSet      `json:"features"`
	Score    ComplexityScore `json:"score"`
	Rewrite  RewriteResult   `json:"rewrite"`
}

// MigrationWave is a batch of queries grouped for sequential migration,
// ordered by estimated difficulty.
type MigrationWave struct {
	Name       string        `json:"name"`
	MinScore   float64       `json:"min_score"` // exclusive lower bound
	MaxScore   float64       `json:"max_score"` // inclusive upper bound
	Items      []*Assessment `json:"items"`
	TotalHours float64       `json:"total_hours"`
}
