package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sqlbridge/internal/domain"
	"sqlbridge/internal/rewrite"
)

func newRewriteCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewrite [file]",
		Short: "Rewrite one T-SQL script for Databricks SQL",
		Long:  "Applies the rewrite catalog to a single script and prints the result. Reads from stdin when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := domain.SourceQuery{ID: "stdin", Dialect: domain.DialectTSQL}
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read script: %w", err)
				}
				name := filepath.Base(args[0])
				q.ID = strings.TrimSuffix(name, filepath.Ext(name))
				q.SQL = string(data)
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				q.SQL = string(data)
			}

			cat := rewrite.DefaultCatalog()
			if opts.catalogPath != "" {
				var err error
				if cat, err = rewrite.LoadCatalog(opts.catalogPath); err != nil {
					return err
				}
			}

			res := rewrite.Apply(cat, q)

			switch opts.output {
			case "json":
				if err := printJSON(os.Stdout, res); err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
			default:
				renderRewrite(os.Stdout, res)
			}
			return nil
		},
	}
	return cmd
}
