// Package app wires repositories, services, background workers and the HTTP
// router from the provided dependencies.
package app

import (
	"context"
	"database/sql"
	"log/slog"

	"govreport/internal/cache"
	"govreport/internal/config"
	"govreport/internal/db/repository"
	"govreport/internal/domain"
	"govreport/internal/metrics"
	"govreport/internal/queue"
	"govreport/internal/schema"
	"govreport/internal/service/export"
	"govreport/internal/service/preview"
	"govreport/internal/service/report"
	"govreport/internal/sqlgen"
	"govreport/internal/validate"
)

// Deps holds the external dependencies that main() must provide: database
// handles, stores and config.
type Deps struct {
	Cfg       *config.Config
	MetaDB    *sql.DB
	QueueDB   *sql.DB // nil shares MetaDB
	Warehouse domain.Warehouse
	Blobs     domain.BlobStore
	Cache     cache.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Services groups the service pointers the API handler needs.
type Services struct {
	Reports *report.Service
	Preview *preview.Service
	Export  *export.Service
}

// App holds the fully-wired application.
type App struct {
	Services  Services
	Worker    *queue.Worker
	Scheduler *export.Scheduler
	Metrics   *metrics.Metrics

	deps Deps
}

// New wires all repositories and services. It also seeds the predefined
// templates.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	queueDB := deps.QueueDB
	if queueDB == nil {
		queueDB = deps.MetaDB
	}

	// === Repositories ===
	reportRepo := repository.NewReportRepo(deps.MetaDB)
	subReportRepo := repository.NewSubReportRepo(deps.MetaDB)
	templateRepo := repository.NewTemplateRepo(deps.MetaDB)
	tagRepo := repository.NewTagRepo(deps.MetaDB)
	exportRepo := repository.NewExportRepo(deps.MetaDB)

	// === Report core ===
	registry := schema.Master()
	validator := validate.New(registry)
	compiler := sqlgen.New(registry)
	execCache := cache.New(deps.Cache, cfg.CacheTTL(), deps.Metrics, logger)

	reportSvc := report.New(report.Deps{
		Reports:    reportRepo,
		SubReports: subReportRepo,
		Templates:  templateRepo,
		Tags:       tagRepo,
		Exports:    exportRepo,
		Validator:  validator,
		Cache:      execCache,
		Logger:     logger,
	})
	previewSvc := preview.New(subReportRepo, validator, compiler, execCache, deps.Warehouse, deps.Metrics, logger)

	// === Export pipeline ===
	q := queue.New(queueDB, queue.DefaultConfig(), logger)
	exportSvc := export.New(export.Deps{
		Reports:   reportRepo,
		Exports:   exportRepo,
		Queue:     q,
		Blobs:     deps.Blobs,
		SQL:       previewSvc,
		Warehouse: deps.Warehouse,
		Metrics:   deps.Metrics,
		Logger:    logger,
	}, export.Config{
		URLTTL:     cfg.ExportURLTTL(),
		JobTimeout: cfg.ExportJobTimeout,
		PageSize:   cfg.ExportPageSize,
	})

	worker := queue.NewWorker(q, queue.WorkerConfig{Concurrency: cfg.ExportWorkers}, deps.Metrics, logger)
	worker.Register(domain.ExportTaskName, exportSvc.HandleTask)

	// === Post-construction wiring ===
	scheduler := export.NewScheduler(exportSvc, reportRepo, logger)
	reportSvc.SetScheduler(scheduler)

	if n, err := reportSvc.SeedTemplates(ctx); err != nil {
		logger.Warn("seed templates failed", "error", err)
	} else if n > 0 {
		logger.Info("seeded predefined templates", "count", n)
	}

	return &App{
		Services: Services{
			Reports: reportSvc,
			Preview: previewSvc,
			Export:  exportSvc,
		},
		Worker:    worker,
		Scheduler: scheduler,
		Metrics:   deps.Metrics,
		deps:      deps,
	}, nil
}

// Start launches the export worker and the rerun scheduler.
func (a *App) Start(ctx context.Context) error {
	a.Worker.Start(ctx)
	return a.Scheduler.Start(ctx)
}

// Stop halts the scheduler, then waits for in-flight exports until ctx ends.
func (a *App) Stop(ctx context.Context) {
	a.Scheduler.Stop()
	a.Worker.Stop(ctx)
}
