package rewrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlbridge/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	cat := DefaultCatalog()
	assert.Equal(t, "2026-08-01", cat.Version)
	assert.Equal(t, domain.DialectTSQL, cat.Source)
	assert.Equal(t, domain.DialectDatabricks, cat.Target)
	assert.False(t, cat.Caps.SupportsRecursion)
	assert.Equal(t, "per-statement", cat.Caps.TransactionModel)
	assert.Len(t, cat.Rules(), len(builtinRules()))
}

func TestParseCatalogDefaults(t *testing.T) {
	t.Parallel()

	cat, err := ParseCatalog([]byte("version: v1\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.DialectTSQL, cat.Source)
	assert.Equal(t, domain.DialectDatabricks, cat.Target)
	assert.Equal(t, "per-statement", cat.Caps.TransactionModel)
	// All built-in rules are enabled unless disabled explicitly.
	assert.Len(t, cat.Rules(), len(builtinRules()))
}

func TestParseCatalogDisableRule(t *testing.T) {
	t.Parallel()

	cat, err := ParseCatalog([]byte(`
version: v1
rules:
  - id: tsql.getdate
    enabled: false
`))
	require.NoError(t, err)
	assert.NotContains(t, cat.Rules(), "tsql.getdate")
	assert.Len(t, cat.Rules(), len(builtinRules())-1)

	res := Apply(cat, domain.SourceQuery{ID: "q", SQL: "SELECT GETDATE()"})
	assert.Equal(t, "SELECT GETDATE()", res.Rewritten)
}

func TestParseCatalogConfidenceOverride(t *testing.T) {
	t.Parallel()

	cat, err := ParseCatalog([]byte(`
version: v1
rules:
  - id: tsql.getdate
    confidence: review-required
`))
	require.NoError(t, err)

	res := Apply(cat, domain.SourceQuery{ID: "q", SQL: "SELECT GETDATE()"})
	assert.Equal(t, "SELECT CURRENT_TIMESTAMP()", res.Rewritten)
	assert.True(t, res.RequiresManualReview)
}

func TestParseCatalogErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "missing version", yaml: "source: tsql\n", wantErr: "no version"},
		{name: "malformed yaml", yaml: "version: [oops", wantErr: "parse rule catalog"},
		{
			name:    "unknown rule",
			yaml:    "version: v1\nrules:\n  - id: tsql.nosuchrule\n",
			wantErr: `unknown rule "tsql.nosuchrule"`,
		},
		{
			name:    "bad confidence",
			yaml:    "version: v1\nrules:\n  - id: tsql.getdate\n    confidence: maybe\n",
			wantErr: `unknown confidence "maybe"`,
		},
		{
			name:    "duplicate rule",
			yaml:    "version: v1\nrules:\n  - id: tsql.getdate\n  - id: tsql.getdate\n",
			wantErr: "configured twice",
		},
		{
			name:    "bad transaction model",
			yaml:    "version: v1\ncapabilities:\n  transaction_model: two-phase\n",
			wantErr: "unknown transaction_model",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseCatalog([]byte(tt.yaml))
			require.Error(t, err)
			var cfgErr *domain.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadCatalog("no-such-catalog.yaml")
		var cfgErr *domain.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: from-disk\n"), 0o644))

		cat, err := LoadCatalog(path)
		require.NoError(t, err)
		assert.Equal(t, "from-disk", cat.Version)
	})
}

func TestCatalogVersionCarriedIntoResults(t *testing.T) {
	t.Parallel()

	cat, err := ParseCatalog([]byte("version: v42\n"))
	require.NoError(t, err)

	res := Apply(cat, domain.SourceQuery{ID: "q", SQL: "SELECT 1"})
	assert.Equal(t, "v42", res.CatalogVersion)
}
