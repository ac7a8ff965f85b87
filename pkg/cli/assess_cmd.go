package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sqlbridge/internal/assess"
)

func newAssessCmd(opts *rootOptions) *cobra.Command {
	var (
		workers     int
		failOnUnres bool
	)

	cmd := &cobra.Command{
		Use:   "assess <file|dir|glob>...",
		Short: "Assess T-SQL scripts for migration complexity",
		Long:  "Scans each script, scores its migration complexity, applies the rewrite catalog, and groups the results into migration waves.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := assess.LoadFiles(args...)
			if err != nil {
				return fmt.Errorf("load scripts: %w", err)
			}
			assessor, _, err := buildAssessor(opts, assess.Options{Workers: workers})
			if err != nil {
				return err
			}

			rep, err := assessor.Run(cmd.Context(), queries)
			if err != nil {
				return fmt.Errorf("assess: %w", err)
			}

			switch opts.output {
			case "json":
				if err := printJSON(os.Stdout, rep); err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
			default:
				renderReport(os.Stdout, rep)
			}

			// Exit code 2 when constructs remain unresolved (useful for CI).
			if failOnUnres {
				for _, a := range rep.Assessments {
					if len(a.Rewrite.Unresolved) > 0 {
						os.Exit(2)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent assessment workers (default 8)")
	cmd.Flags().BoolVar(&failOnUnres, "fail-on-unresolved", false, "Exit with code 2 if any script has unresolved constructs")

	return cmd
}
