package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sqlbridge/internal/app"
	"sqlbridge/internal/config"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assessment HTTP server",
		Long:  "Starts the HTTP API with persistence, catalog watching, and optional scheduled rescans. Configured through SQLBRIDGE_* environment variables.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			}))
			slog.SetDefault(logger)
			for _, w := range cfg.Warnings {
				logger.Warn("configuration warning", "warning", w)
			}

			a, err := app.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
	return cmd
}
