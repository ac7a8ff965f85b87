// Package assess orchestrates the full pipeline for a batch of queries:
// extract, score, rewrite per query in parallel, then plan the waves.
package assess

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sqlbridge/internal/domain"
	"sqlbridge/internal/extract"
	"sqlbridge/internal/plan"
	"sqlbridge/internal/rewrite"
	"sqlbridge/internal/score"
)

// Report is the outcome of one batch run.
type Report struct {
	RunID          string                 `json:"run_id"`
	StartedAt      time.Time              `json:"started_at"`
	FinishedAt     time.Time              `json:"finished_at"`
	CatalogVersion string                 `json:"catalog_version"`
	Assessments    []*domain.Assessment   `json:"assessments"`
	Waves          []domain.MigrationWave `json:"waves"`
	TotalHours     float64                `json:"total_hours"`
}

// Options tune a batch run.
type Options struct {
	// Workers bounds per-query parallelism. Zero means GOMAXPROCS-ish
	// default of 8.
	Workers int

	// QueryTimeout bounds the work on one query. A query that blows the
	// budget degrades to a Partial assessment instead of failing the batch.
	QueryTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 10 * time.Second
	}
	return o
}

// Assessor runs batches against one catalog store and weight table. The
// catalog snapshot is taken once per batch: a hot reload mid-run never
// mixes rule versions within one report.
type Assessor struct {
	catalogs *rewrite.Store
	weights  score.Weights
	plan     plan.Config
	opts     Options
	logger   *slog.Logger
}

// New creates an Assessor. Weights and plan config are validated here so a
// bad configuration fails before any batch runs.
func New(catalogs *rewrite.Store, weights score.Weights, planCfg plan.Config, opts Options, logger *slog.Logger) (*Assessor, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("scoring weights: %w", err)
	}
	if err := planCfg.Validate(); err != nil {
		return nil, fmt.Errorf("wave plan: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{
		catalogs: catalogs,
		weights:  weights,
		plan:     planCfg,
		opts:     opts.withDefaults(),
		logger:   logger.With("component", "assess"),
	}, nil
}

// Run assesses every query and builds the migration plan. Queries are
// isolated from each other: a malformed script degrades its own assessment
// and never aborts the batch. Only context cancellation ends a run early.
func (a *Assessor) Run(ctx context.Context, queries []domain.SourceQuery) (*Report, error) {
	cat := a.catalogs.Current()
	rep := &Report{
		RunID:          uuid.NewString(),
		StartedAt:      time.Now().UTC(),
		CatalogVersion: cat.Version,
		Assessments:    make([]*domain.Assessment, len(queries)),
	}
	a.logger.Info("assessment run started",
		"run_id", rep.RunID, "queries", len(queries), "catalog_version", cat.Version)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i := range queries {
		i := i
		g.Go(func() error {
			rep.Assessments[i] = a.assessOne(gctx, cat, queries[i])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	waves, err := plan.Build(a.plan, rep.Assessments)
	if err != nil {
		return nil, err
	}
	rep.Waves = waves
	rep.TotalHours = plan.TotalHours(waves)
	rep.FinishedAt = time.Now().UTC()

	a.logger.Info("assessment run finished",
		"run_id", rep.RunID, "total_hours", rep.TotalHours,
		"elapsed", rep.FinishedAt.Sub(rep.StartedAt))
	return rep, nil
}

// assessOne runs the pipeline for a single query under its timeout budget.
func (a *Assessor) assessOne(ctx context.Context, cat *rewrite.Catalog, q domain.SourceQuery) *domain.Assessment {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Dialect == "" {
		q.Dialect = cat.Source
	}

	done := make(chan *domain.Assessment, 1)
	go func() {
		an := extract.Analyze(q.SQL)
		res := &domain.Assessment{
			Query:    q,
			Features: an.Features,
			Score:    score.Score(an.Features, a.weights),
			Rewrite:  rewrite.Apply(cat, q),
		}
		done <- res
	}()

	timer := time.NewTimer(a.opts.QueryTimeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return res
	case <-ctx.Done():
	case <-timer.C:
		a.logger.Warn("query assessment timed out", "query_id", q.ID,
			"timeout", a.opts.QueryTimeout)
	}

	// Timed out or canceled: degrade to a partial, review-everything
	// assessment so the batch report still accounts for the query.
	fs := domain.FeatureSet{
		Partial: true,
		Diagnostics: []domain.Diagnostic{
			{Message: "assessment did not finish within its time budget"},
		},
	}
	return &domain.Assessment{
		Query:    q,
		Features: fs,
		Score:    score.Score(fs, a.weights),
		Rewrite: domain.RewriteResult{
			Original:             q.SQL,
			Rewritten:            q.SQL,
			RequiresManualReview: true,
			CatalogVersion:       cat.Version,
			Unresolved: []domain.UnresolvedConstruct{
				{Construct: "assessment timeout", Reason: "script analysis exceeded the per-query budget"},
			},
		},
	}
}
