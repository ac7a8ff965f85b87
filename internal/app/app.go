// Package app wires configuration, storage, the assessment pipeline, and
// the HTTP server into one runnable unit shared by the server binary and
// the CLI serve command.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"sqlbridge/internal/api"
	"sqlbridge/internal/assess"
	"sqlbridge/internal/config"
	"sqlbridge/internal/db"
	"sqlbridge/internal/plan"
	"sqlbridge/internal/repository"
	"sqlbridge/internal/rewrite"
	"sqlbridge/internal/score"
)

// App is the assembled assessment service.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	writeDB  *sql.DB
	readDB   *sql.DB
	catalogs *rewrite.Store
	assessor *assess.Assessor
	runs     *repository.Runs
	server   *http.Server
}

// New assembles the service from configuration. Configuration problems are
// fatal here, before anything is listening.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	cat := rewrite.DefaultCatalog()
	if cfg.CatalogPath != "" {
		var err error
		if cat, err = rewrite.LoadCatalog(cfg.CatalogPath); err != nil {
			return nil, err
		}
	}
	catalogs := rewrite.NewStore(cat)

	weights := score.DefaultWeights()
	if cfg.WeightsPath != "" {
		var err error
		if weights, err = score.LoadWeights(cfg.WeightsPath); err != nil {
			return nil, err
		}
	}

	assessor, err := assess.New(catalogs, weights, plan.DefaultConfig(), assess.Options{
		Workers:      cfg.Workers,
		QueryTimeout: cfg.QueryTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	writeDB, readDB, err := db.OpenSQLitePair(cfg.DBPath, 0)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(writeDB); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, err
	}
	runs := repository.NewRuns(writeDB, readDB)

	handler := api.NewHandler(assessor, runs, catalogs, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return &App{
		cfg:      cfg,
		logger:   logger,
		writeDB:  writeDB,
		readDB:   readDB,
		catalogs: catalogs,
		assessor: assessor,
		runs:     runs,
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully. The
// catalog watcher and the scheduled re-assessment run alongside the server.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		_ = a.readDB.Close()
		_ = a.writeDB.Close()
	}()

	if a.cfg.WatchCatalog {
		go func() {
			if err := a.catalogs.Watch(ctx, a.cfg.CatalogPath, a.logger); err != nil {
				a.logger.Warn("catalog watcher stopped", "error", err)
			}
		}()
	}

	if a.cfg.RescanEnabled() {
		c := cron.New()
		if _, err := c.AddFunc(a.cfg.RescanCron, a.rescan); err != nil {
			return fmt.Errorf("invalid rescan schedule %q: %w", a.cfg.RescanCron, err)
		}
		c.Start()
		defer c.Stop()
		a.logger.Info("scheduled re-assessment enabled",
			"cron", a.cfg.RescanCron, "dir", a.cfg.RescanDir)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.ListenAddr)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("http server stopped")
	return nil
}

// rescan assesses the configured source directory and stores the report.
func (a *App) rescan() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	queries, err := assess.LoadFiles(a.cfg.RescanDir)
	if err != nil {
		a.logger.Warn("scheduled re-assessment skipped", "error", err)
		return
	}
	rep, err := a.assessor.Run(ctx, queries)
	if err != nil {
		a.logger.Warn("scheduled re-assessment failed", "error", err)
		return
	}
	if err := a.runs.Save(ctx, rep); err != nil {
		a.logger.Warn("scheduled re-assessment not saved", "run_id", rep.RunID, "error", err)
		return
	}
	a.logger.Info("scheduled re-assessment stored",
		"run_id", rep.RunID, "queries", len(queries), "total_hours", rep.TotalHours)
}
