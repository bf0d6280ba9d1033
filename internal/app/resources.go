package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"govreport/internal/blob"
	"govreport/internal/cache"
	"govreport/internal/config"
	internaldb "govreport/internal/db"
	"govreport/internal/domain"
	"govreport/internal/metrics"
	"govreport/internal/warehouse"
)

// Resources are the opened external handles behind Deps.
type Resources struct {
	Deps    Deps
	closers []func() error
}

// Close releases every handle in reverse opening order.
func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// Open connects the metastore, task queue, warehouse, blob store and cache
// described by cfg and applies the metastore and queue migrations.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (res *Resources, err error) {
	res = &Resources{Deps: Deps{Cfg: cfg, Metrics: metrics.New(), Logger: logger}}
	defer func() {
		if err != nil {
			_ = res.Close()
		}
	}()

	metaDB, err := internaldb.Open(ctx, cfg.MetaDBPath)
	if err != nil {
		return nil, fmt.Errorf("open metastore: %w", err)
	}
	res.closers = append(res.closers, metaDB.Close)
	res.Deps.MetaDB = metaDB

	queuePath, err := cfg.QueuePath()
	if err != nil {
		return nil, err
	}
	if queuePath == "" {
		if err := internaldb.Migrate(ctx, metaDB, internaldb.MetastoreSchema, internaldb.QueueSchema); err != nil {
			return nil, err
		}
	} else {
		if err := internaldb.Migrate(ctx, metaDB, internaldb.MetastoreSchema); err != nil {
			return nil, err
		}
		queueDB, err := internaldb.Open(ctx, queuePath)
		if err != nil {
			return nil, fmt.Errorf("open queue: %w", err)
		}
		res.closers = append(res.closers, queueDB.Close)
		if err := internaldb.Migrate(ctx, queueDB, internaldb.QueueSchema); err != nil {
			return nil, err
		}
		res.Deps.QueueDB = queueDB
	}

	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; previews and exports will fail")
		res.Deps.Warehouse = unavailableWarehouse{}
	} else {
		whDB, err := warehouse.Open(ctx, cfg.DatabaseURL, cfg.WarehouseMaxConns)
		if err != nil {
			return nil, err
		}
		res.closers = append(res.closers, whDB.Close)
		res.Deps.Warehouse = warehouse.NewExecutor(whDB, logger)
	}

	blobs, err := blob.Open(ctx, cfg.Blob.Store())
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	res.Deps.Blobs = blobs

	store, err := cache.NewStore(cfg.CacheURL)
	if err != nil {
		return nil, err
	}
	res.closers = append(res.closers, store.Close)
	res.Deps.Cache = store

	return res, nil
}

// Migrate applies the metastore and queue migrations without starting
// anything else. The queue schema goes to its own file when one is configured.
func Migrate(ctx context.Context, cfg *config.Config) error {
	queuePath, err := cfg.QueuePath()
	if err != nil {
		return err
	}
	type target struct {
		path    string
		schemas []internaldb.Schema
	}
	targets := []target{{cfg.MetaDBPath, []internaldb.Schema{internaldb.MetastoreSchema, internaldb.QueueSchema}}}
	if queuePath != "" {
		targets = []target{
			{cfg.MetaDBPath, []internaldb.Schema{internaldb.MetastoreSchema}},
			{queuePath, []internaldb.Schema{internaldb.QueueSchema}},
		}
	}
	for _, t := range targets {
		db, err := internaldb.Open(ctx, t.path)
		if err != nil {
			return err
		}
		err = internaldb.Migrate(ctx, db, t.schemas...)
		_ = db.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// unavailableWarehouse fails every query when no warehouse is configured.
type unavailableWarehouse struct{}

var errNoWarehouse = domain.ErrInternal("reporting warehouse is not configured", errors.New("DATABASE_URL is empty"))

func (unavailableWarehouse) Query(context.Context, string, []any) (*domain.RowSet, error) {
	return nil, errNoWarehouse
}

func (unavailableWarehouse) Count(context.Context, string, []any) (int64, error) {
	return 0, errNoWarehouse
}
