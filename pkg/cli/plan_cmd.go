package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sqlbridge/internal/assess"
	"sqlbridge/internal/domain"
	"sqlbridge/internal/plan"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <file|dir|glob>...",
		Short: "Group scripts into migration waves by complexity",
		Long:  "Assesses each script and prints the resulting migration waves: easiest scripts first, review-required scripts last within each wave.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := assess.LoadFiles(args...)
			if err != nil {
				return fmt.Errorf("load scripts: %w", err)
			}
			assessor, _, err := buildAssessor(opts, assess.Options{})
			if err != nil {
				return err
			}

			rep, err := assessor.Run(cmd.Context(), queries)
			if err != nil {
				return fmt.Errorf("assess: %w", err)
			}

			switch opts.output {
			case "json":
				out := struct {
					RunID      string                 `json:"run_id"`
					Waves      []domain.MigrationWave `json:"waves"`
					TotalHours float64                `json:"total_hours"`
				}{rep.RunID, rep.Waves, plan.TotalHours(rep.Waves)}
				if err := printJSON(os.Stdout, out); err != nil {
					return fmt.Errorf("encode plan: %w", err)
				}
			default:
				renderWaves(os.Stdout, rep.Waves)
				fmt.Fprintf(os.Stdout, "\ntotal: %.1f estimated hours across %d waves\n",
					plan.TotalHours(rep.Waves), len(rep.Waves))
			}
			return nil
		},
	}
	return cmd
}
