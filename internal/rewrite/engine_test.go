package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlbridge/internal/domain"
)

func TestApplyInnermostFirst(t *testing.T) {
	t.Parallel()

	// The enclosing DATEADD must wait until GETDATE() is rewritten inside
	// it, then re-match against the updated text.
	res := rewriteSQL(t, "SELECT DATEADD(day, 1, GETDATE())")
	assert.Equal(t, "SELECT DATE_ADD(CURRENT_TIMESTAMP(), 1)", res.Rewritten)

	rules := appliedRules(res)
	assert.Equal(t, 1, rules["tsql.getdate"])
	assert.Equal(t, 1, rules["tsql.dateadd"])
}

func TestApplyDeeplyNested(t *testing.T) {
	t.Parallel()

	res := rewriteSQL(t, "SELECT ISNULL(DATEADD(day, 1, GETDATE()), GETDATE())")
	assert.Equal(t, "SELECT COALESCE(DATE_ADD(CURRENT_TIMESTAMP(), 1), CURRENT_TIMESTAMP())", res.Rewritten)
	assert.False(t, res.RequiresManualReview)
}

func TestApplyDeterministic(t *testing.T) {
	t.Parallel()

	q := domain.SourceQuery{ID: "q", SQL: `
		DECLARE @region VARCHAR(20) = 'EMEA';
		SELECT TOP 10 [name], ISNULL(total, 0), GETDATE()
		FROM [dbo].[sales]
		WHERE region = @region
		ORDER BY total DESC;
	`}
	cat := DefaultCatalog()

	first := Apply(cat, q)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Apply(cat, q))
	}
}

func TestApplyNeverMutatesOriginal(t *testing.T) {
	t.Parallel()

	sql := "SELECT GETDATE(), [name] FROM t"
	res := rewriteSQL(t, sql)
	assert.Equal(t, sql, res.Original)
	assert.NotEqual(t, res.Original, res.Rewritten)
}

func TestApplyEmptyAndUntouchedInput(t *testing.T) {
	t.Parallel()

	res := rewriteSQL(t, "")
	assert.Empty(t, res.Rewritten)
	assert.Empty(t, res.Applied)
	assert.False(t, res.RequiresManualReview)

	res = rewriteSQL(t, "SELECT a, b FROM t WHERE a > b")
	assert.Equal(t, res.Original, res.Rewritten)
	assert.Empty(t, res.Applied)
	assert.Empty(t, res.Unresolved)
}

func TestApplyMalformedInputDoesNotPanic(t *testing.T) {
	t.Parallel()

	for _, sql := range []string{
		"SELECT 'unterminated",
		"SELECT ((((",
		"PIVOT",
		"DECLARE @",
		"EXEC (",
	} {
		res := rewriteSQL(t, sql)
		assert.Equal(t, sql, res.Original)
	}
}

func TestApplyCombinedScript(t *testing.T) {
	t.Parallel()

	res := rewriteSQL(t, `
		DECLARE @yr INT = 2024;
		SELECT TOP 10 [customer name], ISNULL(total, 0) AS total, GETDATE() AS run_at
		FROM dbo.sales
		WHERE yr = @yr
		ORDER BY total DESC;
	`)

	assert.NotContains(t, res.Rewritten, "TOP 10")
	assert.Contains(t, res.Rewritten, "LIMIT 10")
	assert.Contains(t, res.Rewritten, "`customer name`")
	assert.Contains(t, res.Rewritten, "COALESCE(total, 0)")
	assert.Contains(t, res.Rewritten, "CURRENT_TIMESTAMP()")
	assert.Contains(t, res.Rewritten, "yr = 2024")
	assert.NotContains(t, res.Rewritten, "DECLARE")
	assert.False(t, res.RequiresManualReview)
	assert.Empty(t, res.Unresolved)
}

func TestPlanPass(t *testing.T) {
	t.Parallel()

	t.Run("enclosing patch deferred", func(t *testing.T) {
		t.Parallel()

		inner := Patch{Span: domain.Span{Start: 5, End: 10}, RuleID: "inner"}
		outer := Patch{Span: domain.Span{Start: 0, End: 20}, RuleID: "outer"}
		selected, ambiguous := planPass([]Patch{outer, inner})
		require.Len(t, selected, 1)
		assert.Equal(t, "inner", selected[0].RuleID)
		assert.Empty(t, ambiguous)
	})

	t.Run("partial overlap is ambiguous", func(t *testing.T) {
		t.Parallel()

		a := Patch{Span: domain.Span{Start: 0, End: 10}, RuleID: "a"}
		b := Patch{Span: domain.Span{Start: 5, End: 15}, RuleID: "b"}
		selected, ambiguous := planPass([]Patch{a, b})
		assert.Empty(t, selected)
		assert.Len(t, ambiguous, 2)
	})

	t.Run("equal spans keep first", func(t *testing.T) {
		t.Parallel()

		a := Patch{Span: domain.Span{Start: 0, End: 10}, RuleID: "a"}
		b := Patch{Span: domain.Span{Start: 0, End: 10}, RuleID: "b"}
		selected, ambiguous := planPass([]Patch{a, b})
		require.Len(t, selected, 1)
		assert.Equal(t, "a", selected[0].RuleID)
		assert.Empty(t, ambiguous)
	})

	t.Run("disjoint patches all apply", func(t *testing.T) {
		t.Parallel()

		a := Patch{Span: domain.Span{Start: 0, End: 5}, RuleID: "a"}
		b := Patch{Span: domain.Span{Start: 10, End: 15}, RuleID: "b"}
		selected, ambiguous := planPass([]Patch{a, b})
		assert.Len(t, selected, 2)
		assert.Empty(t, ambiguous)
	})
}

func TestApplyPatches(t *testing.T) {
	t.Parallel()

	text := "SELECT GETDATE() FROM t"
	out := applyPatches(text, []Patch{
		{Span: domain.Span{Start: 7, End: 16}, Replacement: "CURRENT_TIMESTAMP()"},
	})
	assert.Equal(t, "SELECT CURRENT_TIMESTAMP() FROM t", out)

	// Zero-width insertion.
	out = applyPatches("SELECT a FROM t", []Patch{
		{Span: domain.Span{Start: 15, End: 15}, Replacement: " LIMIT 1"},
	})
	assert.Equal(t, "SELECT a FROM t LIMIT 1", out)

	// Out-of-bounds spans are skipped rather than panicking.
	out = applyPatches("abc", []Patch{
		{Span: domain.Span{Start: 2, End: 99}, Replacement: "x"},
	})
	assert.Equal(t, "abc", out)
}
