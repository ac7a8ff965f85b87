// Package score maps a FeatureSet to a calibrated complexity score,
// workload category, and effort estimate.
package score

import (
	"os"

	"gopkg.in/yaml.v3"

	"sqlbridge/internal/domain"
)

// Term is one weighted, capped feature contribution:
// contribution = weight * min(count, cap/weight-units) — in practice
// min(weight*count, cap). A zero cap means uncapped.
type Term struct {
	Weight float64 `yaml:"weight"`
	Cap    float64 `yaml:"cap"`
}

// Apply returns the capped contribution for a feature observed count times.
func (t Term) Apply(count int) float64 {
	if count <= 0 {
		return 0
	}
	v := t.Weight * float64(count)
	if t.Cap > 0 && v > t.Cap {
		return t.Cap
	}
	return v
}

// Anchor is one calibration point of the score -> effort-hours mapping.
type Anchor struct {
	Score float64 `yaml:"score"`
	Hours float64 `yaml:"hours"`
}

// Weights is the scoring model: named, overridable constants plus the hour
// calibration anchors. It is configuration data, versioned so results can
// be tied to the model that produced them.
type Weights struct {
	Version string  `yaml:"version"`
	Base    float64 `yaml:"base"`

	RecursiveCTE float64 `yaml:"recursive_cte"`
	Pivot        float64 `yaml:"pivot"`
	DynamicSQL   float64 `yaml:"dynamic_sql"`
	Transaction  float64 `yaml:"transaction"`
	StringAgg    float64 `yaml:"string_agg"`

	WindowKinds   Term `yaml:"window_kinds"`
	CTEDepth      Term `yaml:"cte_depth"`
	CTECount      Term `yaml:"cte_count"`
	Joins         Term `yaml:"joins"`
	SubqueryDepth Term `yaml:"subquery_depth"`
	Aggregates    Term `yaml:"aggregates"`
	CaseExprs     Term `yaml:"case_exprs"`
	DeclaredVars  Term `yaml:"declared_vars"`

	HourAnchors []Anchor `yaml:"hour_anchors"`
}

// DefaultWeights returns the built-in calibration. The hour anchors come
// from observed migration effort on comparable workloads (a score-4.5
// reporting query took ~4h, a score-9.8 recursive+dynamic query took ~32h).
func DefaultWeights() Weights {
	return Weights{
		Version: "v1",
		Base:    1.5,

		RecursiveCTE: 3.0,
		Pivot:        1.5,
		DynamicSQL:   2.0,
		Transaction:  1.0,
		StringAgg:    0.5,

		WindowKinds:   Term{Weight: 0.2, Cap: 1.5},
		CTEDepth:      Term{Weight: 0.3, Cap: 1.5},
		CTECount:      Term{Weight: 0.25, Cap: 1.0},
		Joins:         Term{Weight: 0.5, Cap: 2.5},
		SubqueryDepth: Term{Weight: 0.3, Cap: 1.5},
		Aggregates:    Term{Weight: 0.15, Cap: 1.2},
		CaseExprs:     Term{Weight: 0.3, Cap: 1.8},
		DeclaredVars:  Term{Weight: 0.1, Cap: 0.5},

		HourAnchors: []Anchor{
			{Score: 0, Hours: 0.5},
			{Score: 4.5, Hours: 4},
			{Score: 7, Hours: 12},
			{Score: 9.8, Hours: 32},
			{Score: 10, Hours: 36},
		},
	}
}

// LoadWeights reads a weight table from a YAML file. Missing fields fall
// back to the defaults; a malformed or inconsistent table is a ConfigError
// that blocks the whole run.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	data, err := os.ReadFile(path)
	if err != nil {
		return w, domain.ErrConfig("read weights %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return w, domain.ErrConfig("parse weights %s: %v", path, err)
	}
	if err := w.Validate(); err != nil {
		return w, err
	}
	return w, nil
}

// Validate checks the weight table for internal consistency.
func (w Weights) Validate() error {
	if w.Version == "" {
		return domain.ErrConfig("weights: version is required")
	}
	for _, v := range []float64{w.Base, w.RecursiveCTE, w.Pivot, w.DynamicSQL, w.Transaction, w.StringAgg} {
		if v < 0 {
			return domain.ErrConfig("weights: negative weight")
		}
	}
	if len(w.HourAnchors) < 2 {
		return domain.ErrConfig("weights: at least two hour anchors required")
	}
	for i, a := range w.HourAnchors {
		if a.Hours <= 0 {
			return domain.ErrConfig("weights: anchor hours must be positive (anchor %d)", i)
		}
		if i > 0 {
			prev := w.HourAnchors[i-1]
			if a.Score <= prev.Score || a.Hours < prev.Hours {
				return domain.ErrConfig("weights: hour anchors must be strictly increasing in score and non-decreasing in hours (anchor %d)", i)
			}
		}
	}
	return nil
}
