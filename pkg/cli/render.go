package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"sqlbridge/internal/assess"
	"sqlbridge/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderReport prints the per-query assessment table: one row per script,
// its score, category, effort, and rewrite disposition.
func renderReport(w io.Writer, rep *assess.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tSCORE\tCATEGORY\tHOURS\tSTATUS\tRULES\tUNRESOLVED")
	for _, a := range rep.Assessments {
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%.1f\t%s\t%d\t%d\n",
			a.Query.ID, a.Score.Value, a.Score.Category, a.Score.EstimatedHours,
			disposition(a), len(a.Rewrite.Applied), len(a.Rewrite.Unresolved))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\nrun %s: %d queries, %.1f estimated hours (catalog %s)\n",
		rep.RunID, len(rep.Assessments), rep.TotalHours, rep.CatalogVersion)
}

// renderWaves prints the migration plan.
func renderWaves(w io.Writer, waves []domain.MigrationWave) {
	for _, wave := range waves {
		fmt.Fprintf(w, "wave %q (score %.1f–%.1f): %d queries, %.1f hours\n",
			wave.Name, wave.MinScore, wave.MaxScore, len(wave.Items), wave.TotalHours)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, a := range wave.Items {
			fmt.Fprintf(tw, "  %s\t%.1f\t%.1fh\t%s\n",
				a.Query.ID, a.Score.Value, a.Score.EstimatedHours, disposition(a))
		}
		_ = tw.Flush()
	}
}

// renderRewrite prints the rewritten text with its applications and
// leftovers as trailing commentary.
func renderRewrite(w io.Writer, res domain.RewriteResult) {
	fmt.Fprintln(w, strings.TrimRight(res.Rewritten, "\n"))
	if len(res.Applied) > 0 {
		fmt.Fprintf(w, "\n-- applied rules (catalog %s):\n", res.CatalogVersion)
		for _, app := range res.Applied {
			line := fmt.Sprintf("--   %s [%s]", app.RuleID, app.Confidence)
			if app.Note != "" {
				line += ": " + app.Note
			}
			fmt.Fprintln(w, line)
		}
	}
	for _, u := range res.Unresolved {
		fmt.Fprintf(w, "-- unresolved %s at %d..%d: %s\n", u.Construct, u.Span.Start, u.Span.End, u.Reason)
	}
	if res.RequiresManualReview {
		fmt.Fprintln(w, "-- manual review required")
	}
}

func disposition(a *domain.Assessment) string {
	switch {
	case len(a.Rewrite.Unresolved) > 0:
		return "unresolved"
	case a.Rewrite.RequiresManualReview:
		return "review"
	default:
		return "automated"
	}
}
