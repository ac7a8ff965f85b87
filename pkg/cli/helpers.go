package cli

import (
	"log/slog"
	"os"

	"sqlbridge/internal/assess"
	"sqlbridge/internal/plan"
	"sqlbridge/internal/rewrite"
	"sqlbridge/internal/score"
)

// cliLogger logs to stderr so stdout stays clean for command output.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// buildAssessor assembles an assessor from the persistent flags, falling
// back to the embedded catalog and weights.
func buildAssessor(opts *rootOptions, aopts assess.Options) (*assess.Assessor, *rewrite.Store, error) {
	cat := rewrite.DefaultCatalog()
	if opts.catalogPath != "" {
		var err error
		if cat, err = rewrite.LoadCatalog(opts.catalogPath); err != nil {
			return nil, nil, err
		}
	}
	store := rewrite.NewStore(cat)

	weights := score.DefaultWeights()
	if opts.weightsPath != "" {
		var err error
		if weights, err = score.LoadWeights(opts.weightsPath); err != nil {
			return nil, nil, err
		}
	}

	assessor, err := assess.New(store, weights, plan.DefaultConfig(), aopts, cliLogger())
	if err != nil {
		return nil, nil, err
	}
	return assessor, store, nil
}
