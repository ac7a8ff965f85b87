package score

import "sqlbridge/internal/domain"

// Score maps a FeatureSet to a ComplexityScore under the given weights.
// Pure and deterministic: identical inputs always yield identical output.
func Score(fs domain.FeatureSet, w Weights) domain.ComplexityScore {
	if fs.StatementCount == 0 {
		return domain.ComplexityScore{
			Value:          0,
			Category:       domain.CategoryTrivial,
			EstimatedHours: interpolateHours(0, w.HourAnchors),
			LowConfidence:  fs.Partial,
		}
	}

	v := w.Base
	if fs.HasRecursiveCTE {
		v += w.RecursiveCTE
	}
	if fs.HasPivot {
		v += w.Pivot
	}
	if fs.HasDynamicSQL {
		v += w.DynamicSQL
	}
	if fs.HasTransaction {
		v += w.Transaction
	}
	if fs.HasStringAgg {
		v += w.StringAgg
	}
	v += w.WindowKinds.Apply(len(fs.WindowFuncKinds))
	v += w.CTEDepth.Apply(fs.MaxCTEDepth)
	v += w.CTECount.Apply(fs.CTECount)
	v += w.Joins.Apply(fs.JoinCount)
	v += w.SubqueryDepth.Apply(fs.SubqueryDepth)
	v += w.Aggregates.Apply(fs.AggregateCount)
	v += w.CaseExprs.Apply(fs.CaseCount)
	v += w.DeclaredVars.Apply(fs.DeclaredVarCount)

	v = clamp(v, 0, 10)

	return domain.ComplexityScore{
		Value:          v,
		Category:       categorize(fs),
		EstimatedHours: interpolateHours(v, w.HourAnchors),
		LowConfidence:  fs.Partial,
	}
}

// categorize assigns the workload category from the structural fingerprint.
func categorize(fs domain.FeatureSet) domain.Category {
	switch {
	case fs.StatementCount == 0:
		return domain.CategoryTrivial
	case fs.HasRecursiveCTE || fs.HasPivot || fs.CTECount > 0 || fs.WindowFuncCount > 0:
		return domain.CategoryAnalytics
	case fs.InsertCount+fs.UpdateCount+fs.DeleteCount > fs.SelectCount:
		return domain.CategoryOLTP
	default:
		return domain.CategoryReporting
	}
}

// interpolateHours maps a score to effort hours by piecewise-linear
// interpolation over the calibration anchors. Monotonic by construction
// when the anchors validate.
func interpolateHours(score float64, anchors []Anchor) float64 {
	if len(anchors) == 0 {
		return 1
	}
	if score <= anchors[0].Score {
		return anchors[0].Hours
	}
	last := anchors[len(anchors)-1]
	if score >= last.Score {
		return last.Hours
	}
	for i := 1; i < len(anchors); i++ {
		lo, hi := anchors[i-1], anchors[i]
		if score <= hi.Score {
			frac := (score - lo.Score) / (hi.Score - lo.Score)
			return lo.Hours + frac*(hi.Hours-lo.Hours)
		}
	}
	return last.Hours
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
