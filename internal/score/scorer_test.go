package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlbridge/internal/domain"
	"sqlbridge/internal/extract"
)

func TestScoreEmptyScript(t *testing.T) {
	t.Parallel()

	s := Score(domain.FeatureSet{}, DefaultWeights())
	assert.Zero(t, s.Value)
	assert.Equal(t, domain.CategoryTrivial, s.Category)
	assert.Positive(t, s.EstimatedHours)
}

func TestScoreDeterministic(t *testing.T) {
	t.Parallel()

	fs := extract.Scan("WITH a AS (SELECT 1 AS n) SELECT n, SUM(n) OVER (ORDER BY n) FROM a")
	w := DefaultWeights()
	first := Score(fs, w)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(fs, w))
	}
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	// Everything at once still clamps to 10.
	fs := domain.FeatureSet{
		StatementCount:  5,
		SelectCount:     5,
		HasRecursiveCTE: true,
		HasPivot:        true,
		HasDynamicSQL:   true,
		HasTransaction:  true,
		HasStringAgg:    true,
		WindowFuncKinds: []string{"rank", "lag", "lead", "sum", "avg", "ntile", "row_number", "first_value", "last_value", "cume_dist"},
		MaxCTEDepth:     12,
		CTECount:        20,
		JoinCount:       15,
		SubqueryDepth:   9,
		AggregateCount:  30,
		CaseCount:       25,
		DeclaredVarCount: 40,
	}
	s := Score(fs, DefaultWeights())
	assert.Equal(t, 10.0, s.Value)
	assert.Equal(t, 36.0, s.EstimatedHours)
}

func TestScoreCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fs   domain.FeatureSet
		want domain.Category
	}{
		{
			name: "reporting",
			fs:   domain.FeatureSet{StatementCount: 1, SelectCount: 1, JoinCount: 2, AggregateCount: 3},
			want: domain.CategoryReporting,
		},
		{
			name: "oltp when writes dominate",
			fs:   domain.FeatureSet{StatementCount: 3, SelectCount: 1, InsertCount: 1, UpdateCount: 1},
			want: domain.CategoryOLTP,
		},
		{
			name: "analytics on ctes",
			fs:   domain.FeatureSet{StatementCount: 1, SelectCount: 1, CTECount: 2},
			want: domain.CategoryAnalytics,
		},
		{
			name: "analytics on windows",
			fs:   domain.FeatureSet{StatementCount: 1, SelectCount: 1, WindowFuncCount: 1},
			want: domain.CategoryAnalytics,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Score(tt.fs, DefaultWeights()).Category)
		})
	}
}

func TestScoreMonotonicInDepth(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	base := domain.FeatureSet{StatementCount: 1, SelectCount: 1, CTECount: 1, MaxCTEDepth: 1}
	deeper := base
	deeper.MaxCTEDepth = 3
	assert.Greater(t, Score(deeper, w).Value, Score(base, w).Value)

	recursive := base
	recursive.HasRecursiveCTE = true
	assert.Greater(t, Score(recursive, w).Value, Score(base, w).Value)
}

func TestScoreLowConfidenceOnPartial(t *testing.T) {
	t.Parallel()

	fs := domain.FeatureSet{StatementCount: 1, SelectCount: 1, Partial: true}
	assert.True(t, Score(fs, DefaultWeights()).LowConfidence)
	fs.Partial = false
	assert.False(t, Score(fs, DefaultWeights()).LowConfidence)
}

func TestEstimatedHoursMonotonic(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	prev := 0.0
	for s := 0.0; s <= 10.0; s += 0.25 {
		h := interpolateHours(s, w.HourAnchors)
		assert.GreaterOrEqual(t, h, prev, "hours must not decrease (score %v)", s)
		prev = h
	}
	// Calibration anchors are hit exactly.
	assert.InDelta(t, 4.0, interpolateHours(4.5, w.HourAnchors), 1e-9)
	assert.InDelta(t, 32.0, interpolateHours(9.8, w.HourAnchors), 1e-9)
}

func TestTermApply(t *testing.T) {
	t.Parallel()

	tm := Term{Weight: 0.5, Cap: 2.0}
	assert.Zero(t, tm.Apply(0))
	assert.Equal(t, 1.0, tm.Apply(2))
	assert.Equal(t, 2.0, tm.Apply(10)) // capped

	uncapped := Term{Weight: 0.5}
	assert.Equal(t, 5.0, uncapped.Apply(10))
}

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(w *Weights)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(w *Weights) {}},
		{
			name:    "missing version",
			mutate:  func(w *Weights) { w.Version = "" },
			wantErr: "version is required",
		},
		{
			name:    "negative weight",
			mutate:  func(w *Weights) { w.RecursiveCTE = -1 },
			wantErr: "negative weight",
		},
		{
			name:    "too few anchors",
			mutate:  func(w *Weights) { w.HourAnchors = w.HourAnchors[:1] },
			wantErr: "at least two hour anchors",
		},
		{
			name: "non-monotonic anchors",
			mutate: func(w *Weights) {
				w.HourAnchors = []Anchor{{Score: 0, Hours: 4}, {Score: 5, Hours: 2}}
			},
			wantErr: "hour anchors must be strictly increasing",
		},
		{
			name: "zero anchor hours",
			mutate: func(w *Weights) {
				w.HourAnchors = []Anchor{{Score: 0, Hours: 0}, {Score: 5, Hours: 2}}
			},
			wantErr: "anchor hours must be positive",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := DefaultWeights()
			tt.mutate(&w)
			err := w.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr *domain.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWeightsOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, `
version: custom
recursive_cte: 4.0
joins:
  weight: 1.0
  cap: 3.0
`)
	w, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", w.Version)
	assert.Equal(t, 4.0, w.RecursiveCTE)
	assert.Equal(t, 1.0, w.Joins.Weight)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultWeights().Pivot, w.Pivot)
	assert.Equal(t, DefaultWeights().HourAnchors, w.HourAnchors)
}

func TestLoadWeightsErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadWeights("does-not-exist.yaml")
		var cfgErr *domain.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()

		_, err := LoadWeights(writeTempFile(t, "version: [unclosed"))
		var cfgErr *domain.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("invalid table", func(t *testing.T) {
		t.Parallel()

		_, err := LoadWeights(writeTempFile(t, "version: v2\nrecursive_cte: -3\n"))
		var cfgErr *domain.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})
}
