// Package cli implements the sqlbridge command-line interface: batch
// assessment, single-script rewriting, wave planning, and the embedded
// server.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:           "sqlbridge",
		Short:         "T-SQL to Databricks migration assistant",
		Long:          "Assess T-SQL scripts for migration complexity, rewrite them for Databricks SQL, and plan migration waves.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOutputFormat(opts.output)
		},
	}

	pf := rootCmd.PersistentFlags()
	// Accept snake_case spellings for all flags.
	pf.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	pf.StringVar(&opts.catalogPath, "catalog", "", "rewrite catalog YAML file (default: embedded catalog)")
	pf.StringVar(&opts.weightsPath, "weights", "", "scoring weights YAML file (default: embedded weights)")
	pf.StringVarP(&opts.output, "output", "o", "table", "output format (table, json)")

	rootCmd.AddCommand(
		newAssessCmd(&opts),
		newRewriteCmd(&opts),
		newPlanCmd(&opts),
		newServeCmd(),
	)
	return rootCmd
}

// rootOptions are the persistent flags shared by the subcommands.
type rootOptions struct {
	catalogPath string
	weightsPath string
	output      string
}

func validateOutputFormat(output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}
