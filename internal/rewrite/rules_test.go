package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlbridge/internal/domain"
)

func rewriteSQL(t *testing.T, sql string) domain.RewriteResult {
	t.Helper()
	return Apply(DefaultCatalog(), domain.SourceQuery{ID: "q", Dialect: domain.DialectTSQL, SQL: sql})
}

func appliedRules(res domain.RewriteResult) map[string]int {
	out := make(map[string]int)
	for _, app := range res.Applied {
		out[app.RuleID]++
	}
	return out
}

func TestRewriteGetdate(t *testing.T) {
	t.Parallel()

	res := rewriteSQL(t, "SELECT GETDATE();")
	assert.Equal(t, "SELECT CURRENT_TIMESTAMP();", res.Rewritten)
	assert.Equal(t, "SELECT GETDATE();", res.Original)
	assert.False(t, res.RequiresManualReview)
	assert.Empty(t, res.Unresolved)

	res = rewriteSQL(t, "SELECT SYSDATETIME(), SYSUTCDATETIME()")
	assert.Equal(t, "SELECT CURRENT_TIMESTAMP(), CURRENT_TIMESTAMP()", res.Rewritten)
}

func TestRewriteIsnull(t *testing.T) {
	t.Parallel()

	res := rewriteSQL(t, "SELECT ISNULL(a, b) FROM t")
	assert.Equal(t, "SELECT COALESCE(a, b) FROM t", res.Rewritten)
	assert.False(t, res.RequiresManualReview)

	// Wrong arity is left alone.
	res = rewriteSQL(t, "SELECT ISNULL(a) FROM t")
	assert.Equal(t, "SELECT ISNULL(a) FROM t", res.Rewritten)
}

func TestRewriteLen(t *testing.T) {
	t.Parallel()

	res := rewriteSQL(t, "SELECT LEN(name) FROM t")
	assert.Equal(t, "SELECT LENGTH(name) FROM t", res.Rewritten)
}

func TestRewriteDateadd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "day",
			sql:  "SELECT DATEADD(day, 1, d) FROM t",
			want: "SELECT DATE_ADD(d, 1) FROM t",
		},
		{
			name: "abbreviated day",
			sql:  "SELECT DATEADD(dd, 1, d) FROM t",
			want: "SELECT DATE_ADD(d, 1) FROM t",
		},
		{
			name: "week multiplies by seven",
			sql:  "SELECT DATEADD(week, 2, d) FROM t",
			want: "SELECT DATE_ADD(d, 2 * 7) FROM t",
		},
		{
			name: "month",
			sql:  "SELECT DATEADD(month, 3, d) FROM t",
			want: "SELECT ADD_MONTHS(d, 3) FROM t",
		},
		{
			name: "quarter",
			sql:  "SELECT DATEADD(quarter, 1, d) FROM t",
			want: "SELECT ADD_MONTHS(d, 1 * 3) FROM t",
		},
		{
			name: "year",
			sql:  "SELECT DATEADD(year, 1, d) FROM t",
			want: "SELECT ADD_MONTHS(d, 1 * 12) FROM t",
		},
		{
			name: "hour",
			sql:  "SELECT DATEADD(hour, 6, d) FROM t",
			want: "SELECT TIMESTAMPADD(HOUR, 6, d) FROM t",
		},
		{
			name: "multi-token count is parenthesized",
			sql:  "SELECT DATEADD(day, n + 1, d) FROM t",
			want: "SELECT DATE_ADD(d, (n + 1)) FROM t",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := rewriteSQL(t, tt.sql)
			assert.Equal(t, tt.want, res.Rewritten)
			assert.False(t, res.RequiresManualReview)
		})
	}
}

func TestRewriteDateaddUnknownUnit(t *testing.T) {
	t.Parallel()

	res := rewriteSQL(t, "SELECT DATEADD(fortnight, 1, d) FROM t")
	assert.Equal(t, res.Original, res.Rewritten)
	assert.True(t, res.RequiresManualReview)
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "tsql.dateadd", res.Applied[0].RuleID)
	assert.Equal(t, domain.ConfidenceReview, res.Applied[0].Confidence)
}

func TestRewriteDatediff(t *testing.T) {
	t.Parallel()

	t.Run("day with literal endpoints swaps arguments", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT DATEDIFF(day, '2024-01-01', '2024-01-10')")
		assert.Equal(t, "SELECT DATEDIFF('2024-01-10', '2024-01-01')", res.Rewritten)
		assert.False(t, res.RequiresManualReview)
		require.Len(t, res.Applied, 1)
		assert.Contains(t, res.Applied[0].Note, "argument order reversed")
	})

	t.Run("day with column endpoints is flagged not rewritten", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT DATEDIFF(day, start_dt, end_dt) FROM t")
		assert.Equal(t, res.Original, res.Rewritten)
		assert.True(t, res.RequiresManualReview)
		require.Len(t, res.Applied, 1)
		assert.Equal(t, "tsql.datediff", res.Applied[0].RuleID)
		assert.Contains(t, res.Applied[0].Note, "not statically verifiable")
	})

	t.Run("month uses timestampdiff and requires review", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT DATEDIFF(month, a, b) FROM t")
		assert.Equal(t, "SELECT TIMESTAMPDIFF(MONTH, a, b) FROM t", res.Rewritten)
		assert.True(t, res.RequiresManualReview)
		require.Len(t, res.Applied, 1)
		assert.Contains(t, res.Applied[0].Note, "boundary crossings")
	})
}

func TestRewriteStringAgg(t *testing.T) {
	t.Parallel()

	t.Run("plain", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT STRING_AGG(name, ',') FROM t")
		assert.Equal(t, "SELECT ARRAY_JOIN(COLLECT_LIST(name), ',') FROM t", res.Rewritten)
		assert.False(t, res.RequiresManualReview)
	})

	t.Run("within group ordering is consumed and reviewed", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT STRING_AGG(name, ',') WITHIN GROUP (ORDER BY name) FROM t")
		assert.Equal(t, "SELECT ARRAY_JOIN(COLLECT_LIST(name), ',') FROM t", res.Rewritten)
		assert.True(t, res.RequiresManualReview)
		require.Len(t, res.Applied, 1)
		assert.Contains(t, res.Applied[0].Note, "WITHIN GROUP ordering dropped")
	})
}

func TestRewriteBrackets(t *testing.T) {
	t.Parallel()

	res := rewriteSQL(t, "SELECT [name], [select], [first name] FROM [dbo].[users]")
	assert.Equal(t, "SELECT name, `select`, `first name` FROM dbo.users", res.Rewritten)
	assert.False(t, res.RequiresManualReview)
	assert.Equal(t, 5, appliedRules(res)["tsql.brackets"])
}

func TestRewriteTop(t *testing.T) {
	t.Parallel()

	t.Run("top with order by", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT TOP 10 name FROM users ORDER BY name;")
		assert.NotContains(t, res.Rewritten, "TOP")
		assert.Contains(t, res.Rewritten, "ORDER BY name LIMIT 10;")
		assert.False(t, res.RequiresManualReview)
	})

	t.Run("top without order by notes non-determinism", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT TOP 5 name FROM users")
		assert.Contains(t, res.Rewritten, "LIMIT 5")

		found := false
		for _, app := range res.Applied {
			if app.RuleID == "tsql.top" && app.Note != "" {
				assert.Contains(t, app.Note, "no ORDER BY in scope")
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("top expr", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT TOP (10) name FROM users")
		assert.Contains(t, res.Rewritten, "LIMIT 10")
	})

	t.Run("subquery limit lands before closing paren", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT * FROM (SELECT TOP 5 id FROM t ORDER BY id) s")
		assert.NotContains(t, res.Rewritten, "TOP")
		assert.Contains(t, res.Rewritten, "ORDER BY id LIMIT 5) s")
	})

	t.Run("top percent has no rewrite", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT TOP 10 PERCENT name FROM users ORDER BY name")
		assert.Equal(t, res.Original, res.Rewritten)
		assert.True(t, res.RequiresManualReview)
	})

	t.Run("top with ties has no rewrite", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT TOP 3 WITH TIES name FROM users ORDER BY name")
		assert.Equal(t, res.Original, res.Rewritten)
		assert.True(t, res.RequiresManualReview)
	})

	t.Run("union branches sharing a scope are left alone", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT TOP 5 a FROM t UNION SELECT TOP 3 b FROM u;")
		assert.Equal(t, res.Original, res.Rewritten)
		assert.NotContains(t, res.Rewritten, "LIMIT")
		assert.True(t, res.RequiresManualReview)
		assert.Equal(t, 2, appliedRules(res)["tsql.top"])
	})

	t.Run("independent subquery scopes each get a limit", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT * FROM (SELECT TOP 5 a FROM t) x JOIN (SELECT TOP 3 b FROM u) y ON x.a = y.b;")
		assert.NotContains(t, res.Rewritten, "TOP")
		assert.Contains(t, res.Rewritten, "FROM t LIMIT 5)")
		assert.Contains(t, res.Rewritten, "FROM u LIMIT 3)")
	})
}

func TestRewriteDeclareInlining(t *testing.T) {
	t.Parallel()

	t.Run("literal variable inlined and declaration removed", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "DECLARE @region VARCHAR(20) = 'EMEA';\nSELECT * FROM sales WHERE region = @region;")
		assert.NotContains(t, res.Rewritten, "DECLARE")
		assert.NotContains(t, res.Rewritten, "@region")
		assert.Contains(t, res.Rewritten, "region = 'EMEA'")
		assert.False(t, res.RequiresManualReview)
	})

	t.Run("reassignment uses latest preceding literal", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "DECLARE @n INT = 1;\nSELECT @n;\nSET @n = 2;\nSELECT @n;")
		assert.NotContains(t, res.Rewritten, "@n")
		assert.Contains(t, res.Rewritten, "SELECT 1")
		assert.Contains(t, res.Rewritten, "SELECT 2")
	})

	t.Run("non-literal assignment keeps placeholder and flags", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "DECLARE @cutoff INT = 10 + 5;\nSELECT * FROM t WHERE n > @cutoff")
		assert.Contains(t, res.Rewritten, "@cutoff")
		assert.True(t, res.RequiresManualReview)
	})

	t.Run("unassigned variable flags", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT * FROM t WHERE region = @region")
		assert.Equal(t, res.Original, res.Rewritten)
		assert.True(t, res.RequiresManualReview)
	})

	t.Run("select assignment blocks inlining", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "DECLARE @x INT = 5;\nSELECT @x = 10;\nSELECT @x;")
		assert.Equal(t, res.Original, res.Rewritten)
		assert.NotContains(t, res.Rewritten, "5 = 10")
		assert.True(t, res.RequiresManualReview)
	})

	t.Run("select assigned variable without declaration flags", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT @total = SUM(amount) FROM orders;")
		assert.Equal(t, res.Original, res.Rewritten)
		assert.True(t, res.RequiresManualReview)
	})
}

func TestRewriteTransaction(t *testing.T) {
	t.Parallel()

	t.Run("begin and commit elided under per-statement model", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "BEGIN TRAN;\nUPDATE t SET a = 1;\nCOMMIT;")
		assert.NotContains(t, res.Rewritten, "BEGIN")
		assert.NotContains(t, res.Rewritten, "COMMIT")
		assert.Contains(t, res.Rewritten, "UPDATE t SET a = 1;")
		assert.False(t, res.RequiresManualReview)
	})

	t.Run("rollback removal requires review", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "BEGIN TRANSACTION;\nDELETE FROM t;\nROLLBACK;")
		assert.NotContains(t, res.Rewritten, "ROLLBACK")
		assert.True(t, res.RequiresManualReview)
	})
}

func TestRewritePivot(t *testing.T) {
	t.Parallel()

	t.Run("literal in list becomes conditional aggregation", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT * FROM sales PIVOT (SUM(amount) FOR quarter IN ([Q1], [Q2])) AS p")
		assert.NotContains(t, res.Rewritten, "PIVOT")
		assert.Contains(t, res.Rewritten, "SUM(CASE WHEN quarter = 'Q1' THEN amount ELSE 0 END) AS Q1")
		assert.Contains(t, res.Rewritten, "SUM(CASE WHEN quarter = 'Q2' THEN amount ELSE 0 END) AS Q2")
		assert.Contains(t, res.Rewritten, "GROUP BY ALL) p")
		assert.Contains(t, res.Rewritten, "EXCEPT (quarter, amount)")
		assert.True(t, res.RequiresManualReview)
		assert.Empty(t, res.Unresolved)
	})

	t.Run("avg keeps null for missing groups", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT * FROM sales PIVOT (AVG(amount) FOR quarter IN ([Q1])) AS p")
		assert.Contains(t, res.Rewritten, "THEN amount END) AS Q1")
	})

	t.Run("non-literal in list is unresolved", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "SELECT * FROM sales PIVOT (SUM(amount) FOR quarter IN (q)) AS p")
		assert.Equal(t, res.Original, res.Rewritten)
		require.Len(t, res.Unresolved, 1)
		assert.Equal(t, "PIVOT", res.Unresolved[0].Construct)
		assert.True(t, res.RequiresManualReview)
	})
}

func TestRewriteRecursiveCTE(t *testing.T) {
	t.Parallel()

	res := rewriteSQL(t, `WITH chain AS (
		SELECT id, parent_id FROM nodes WHERE parent_id IS NULL
		UNION ALL
		SELECT n.id, n.parent_id FROM nodes n JOIN chain c ON n.parent_id = c.id
	) SELECT * FROM chain`)

	require.Len(t, res.Unresolved, 1)
	assert.Equal(t, "recursive CTE", res.Unresolved[0].Construct)
	assert.True(t, res.RequiresManualReview)
}

func TestRewriteDynamicSQL(t *testing.T) {
	t.Parallel()

	t.Run("concatenated and executed is flagged", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "DECLARE @sql NVARCHAR(MAX);\nSET @sql = 'SELECT * FROM ' + @tbl;\nEXEC (@sql);")
		assert.True(t, res.RequiresManualReview)

		found := false
		for _, app := range res.Applied {
			if app.RuleID == "tsql.dynamicsql" {
				assert.Contains(t, app.Note, "concatenation")
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("executed variable assigned elsewhere is unresolved", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, "EXEC sp_executesql @stmt")
		require.Len(t, res.Unresolved, 1)
		assert.Equal(t, "dynamic SQL", res.Unresolved[0].Construct)
		assert.Contains(t, res.Unresolved[0].Reason, "cross-scope")
	})
}

func TestRewriteWindowFrame(t *testing.T) {
	t.Parallel()

	sql := "SELECT SUM(x) OVER (ORDER BY d RANGE BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW) FROM t"

	t.Run("default catalog passes frames through", func(t *testing.T) {
		t.Parallel()

		res := rewriteSQL(t, sql)
		assert.Contains(t, res.Rewritten, "RANGE BETWEEN")
	})

	t.Run("capability map remaps the frame unit", func(t *testing.T) {
		t.Parallel()

		cat, err := ParseCatalog([]byte(`
version: test
capabilities:
  transaction_model: per-statement
  frame_units:
    range: rows
rules:
  - id: tsql.window.frame
`))
		require.NoError(t, err)

		res := Apply(cat, domain.SourceQuery{ID: "q", SQL: sql})
		assert.Contains(t, res.Rewritten, "ROWS BETWEEN")
		assert.NotContains(t, res.Rewritten, "RANGE")
		assert.True(t, res.RequiresManualReview)
	})
}
