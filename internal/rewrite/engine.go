package rewrite

import (
	"sort"

	"sqlbridge/internal/domain"
	"sqlbridge/internal/extract"
)

// maxPasses bounds the rescan loop. Each productive pass rewrites at least
// one innermost construct, so real scripts converge in two or three passes;
// the cap only guards against a misbehaving rule that keeps producing
// matchable output.
const maxPasses = 8

// Apply runs every enabled catalog rule over one script and returns the
// rewrite outcome. It never fails: constructs that cannot be rewritten end
// up in Unresolved, and the original text is always retained.
//
// Application is innermost-first: a patch that encloses another patch is
// deferred to a later pass, so inner rewrites land before the enclosing
// construct is re-matched against the updated text. Two patches that overlap
// without nesting are ambiguous; both spans are left unchanged and reported
// as unresolved.
func Apply(cat *Catalog, q domain.SourceQuery) domain.RewriteResult {
	res := domain.RewriteResult{
		Original:       q.SQL,
		CatalogVersion: cat.Version,
	}

	text := q.SQL
	for pass := 0; pass < maxPasses; pass++ {
		an := extract.Analyze(text)

		var patches []Patch
		var flags []domain.RuleApplication
		var unresolved []domain.UnresolvedConstruct
		for _, r := range cat.rules {
			f := r.spec.Match(an, r)
			patches = append(patches, f.Patches...)
			flags = append(flags, f.Flags...)
			unresolved = append(unresolved, f.Unresolved...)
		}

		selected, ambiguous := planPass(patches)
		if len(selected) == 0 || pass == maxPasses-1 {
			// Fixpoint: whatever the rules still report against the final
			// text is the authoritative set of flags and leftovers. Earlier
			// passes would report the same constructs at stale offsets.
			res.Applied = append(res.Applied, flags...)
			res.Unresolved = append(res.Unresolved, unresolved...)
			for _, p := range ambiguous {
				res.Unresolved = append(res.Unresolved, domain.UnresolvedConstruct{
					Span:      p.Span,
					Construct: p.RuleID,
					Reason:    "overlapping rewrites conflict; span left unchanged",
				})
			}
			break
		}

		sort.Slice(selected, func(i, j int) bool { return selected[i].Span.Start < selected[j].Span.Start })
		for _, p := range selected {
			res.Applied = append(res.Applied, domain.RuleApplication{
				RuleID:     p.RuleID,
				Span:       p.Span,
				Confidence: p.Confidence,
				Note:       p.Note,
			})
		}
		text = applyPatches(text, selected)
	}

	res.Rewritten = text
	res.DeriveReview()
	return res
}

// planPass partitions candidate patches into the set to apply now and the
// set that conflicts. Enclosing patches are simply dropped for this pass;
// their rules re-match on the next scan. Partial overlaps are genuine
// conflicts and are returned for reporting.
func planPass(patches []Patch) (selected, ambiguous []Patch) {
	drop := make([]bool, len(patches))
	conflict := make([]bool, len(patches))
	for i := range patches {
		for j := range patches {
			if i == j || patches[i].Span == patches[j].Span {
				continue
			}
			si, sj := patches[i].Span, patches[j].Span
			if si.Contains(sj) {
				drop[i] = true // enclosing patch waits for the inner rewrite
			} else if si.Overlaps(sj) && !sj.Contains(si) {
				conflict[i] = true
			}
		}
	}
	seen := make(map[domain.Span]bool)
	for i, p := range patches {
		switch {
		case conflict[i]:
			ambiguous = append(ambiguous, p)
		case drop[i]:
		case seen[p.Span]:
			// Equal spans from two rules: first in catalog order wins.
		default:
			seen[p.Span] = true
			selected = append(selected, p)
		}
	}
	return selected, ambiguous
}

// applyPatches splices non-overlapping replacements into text, back to
// front so earlier offsets stay valid.
func applyPatches(text string, patches []Patch) string {
	ordered := make([]Patch, len(patches))
	copy(ordered, patches)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Span.Start > ordered[j].Span.Start })

	for _, p := range ordered {
		if p.Span.Start < 0 || p.Span.End > len(text) || p.Span.Start > p.Span.End {
			continue
		}
		text = text[:p.Span.Start] + p.Replacement + text[p.Span.End:]
	}
	return text
}
