// Package app wires configuration, storage and the recommender together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/abdulachik/bookrec/internal/api"
	"github.com/abdulachik/bookrec/internal/catalog"
	"github.com/abdulachik/bookrec/internal/config"
	"github.com/abdulachik/bookrec/internal/db"
	"github.com/abdulachik/bookrec/internal/neighbors"
	"github.com/abdulachik/bookrec/internal/recommender"
)

// App is the main application container holding all dependencies.
type App struct {
	Config *config.Config
	Store  *db.Store
	Engine *recommender.Engine
	Health *api.Health
}

// New opens and migrates the store. The engine starts without a snapshot;
// call Load or Build to publish one.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	health := api.NewHealth()

	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	health.SetHealthy(api.ComponentStore, store.Path())

	return &App{
		Config: cfg,
		Store:  store,
		Engine: recommender.NewEngine(slog.Default()),
		Health: health,
	}, nil
}

// Options converts configuration into recommender options.
func (a *App) Options() recommender.Options {
	return recommender.Options{
		K:             a.Config.NeighborsK,
		Algorithm:     neighbors.Algorithm(a.Config.NeighborAlgorithm),
		Workers:       a.Config.BuildWorkers,
		Limit:         a.Config.RecommendLimit,
		ResolveCutoff: a.Config.ResolveCutoff,
		SuggestCutoff: a.Config.SuggestCutoff,
		SuggestLimit:  a.Config.SuggestLimit,
	}
}

// Load publishes the stored snapshot, building from the catalog CSV when
// none is stored, the stored one was built with a different K, or the
// catalog CSV has moved or changed since it was built.
func (a *App) Load(ctx context.Context) (*recommender.Snapshot, error) {
	snap, meta, err := a.restore(ctx)
	switch {
	case err == nil && snap.Table.K() != a.Config.NeighborsK:
		slog.Info("stored index has different k, rebuilding", "stored_k", snap.Table.K(), "k", a.Config.NeighborsK)
	case err == nil:
		reason := a.catalogChange(meta)
		if reason == "" {
			a.publish(snap)
			return snap, nil
		}
		slog.Info("catalog changed since last build, rebuilding", "reason", reason, "built_from", meta.CatalogPath)
	case errors.Is(err, db.ErrNoSnapshot):
		slog.Info("no stored index, building from catalog")
	default:
		slog.Warn("stored index unusable, rebuilding", "error", err)
	}
	return a.Build(ctx)
}

func (a *App) restore(ctx context.Context) (*recommender.Snapshot, db.BuildMeta, error) {
	stored, err := a.Store.LoadSnapshot(ctx)
	if err != nil {
		return nil, db.BuildMeta{}, err
	}

	cat, err := catalog.New(stored.Records)
	if err != nil {
		return nil, db.BuildMeta{}, fmt.Errorf("rebuild catalog: %w", err)
	}
	if cat.Len() != len(stored.Records) {
		return nil, db.BuildMeta{}, fmt.Errorf("stored catalog has %d invalid records", len(stored.Records)-cat.Len())
	}

	opts := a.Options()
	opts.Algorithm = neighbors.Algorithm(stored.Meta.Algorithm)
	snap, err := recommender.Restore(cat, stored.Table, opts)
	if err != nil {
		return nil, db.BuildMeta{}, err
	}
	snap.BuiltAt = stored.Meta.BuiltAt
	snap.BuildDuration = stored.Meta.BuildDuration
	return snap, stored.Meta, nil
}

// catalogChange reports why the configured catalog CSV no longer matches the
// one meta was built from. It returns "" when they match, and also when the
// catalog cannot be read, so the stored index keeps serving.
func (a *App) catalogChange(meta db.BuildMeta) string {
	path, err := a.Config.ResolveCatalogPath()
	if err != nil {
		slog.Warn("catalog unavailable, serving stored index", "error", err)
		return ""
	}
	if !samePath(path, meta.CatalogPath) {
		return "path"
	}
	sum, err := catalog.Checksum(path)
	if err != nil {
		slog.Warn("catalog unreadable, serving stored index", "path", path, "error", err)
		return ""
	}
	if sum != meta.CatalogSum {
		return "content"
	}
	return ""
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// Build reads the catalog CSV, builds a fresh snapshot, stores it and
// publishes it.
func (a *App) Build(ctx context.Context) (*recommender.Snapshot, error) {
	path, err := a.Config.ResolveCatalogPath()
	if err != nil {
		a.Health.SetUnhealthy(api.ComponentCatalog, err)
		return nil, err
	}

	sum, err := catalog.Checksum(path)
	if err != nil {
		a.Health.SetUnhealthy(api.ComponentCatalog, err)
		return nil, err
	}
	records, err := catalog.LoadCSV(path)
	if err != nil {
		a.Health.SetUnhealthy(api.ComponentCatalog, err)
		return nil, err
	}
	cat, err := catalog.New(records)
	if err != nil {
		a.Health.SetUnhealthy(api.ComponentCatalog, err)
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	slog.Info("catalog loaded", "path", path, "rows", len(records), "entries", cat.Len())

	snap, err := recommender.Build(ctx, cat, a.Options())
	if err != nil {
		a.Health.SetUnhealthy(api.ComponentIndex, err)
		return nil, err
	}

	err = a.Store.SaveSnapshot(ctx, &db.Snapshot{
		Records: cat.Records(),
		Table:   snap.Table,
		Meta: db.BuildMeta{
			K:             snap.Table.K(),
			Algorithm:     string(snap.Options.Algorithm),
			BuiltAt:       snap.BuiltAt,
			BuildDuration: snap.BuildDuration,
			CatalogPath:   path,
			CatalogSum:    sum,
		},
	})
	if err != nil {
		// The snapshot is still usable from memory.
		a.Health.SetDegraded(api.ComponentStore, err)
		slog.Error("failed to save snapshot", "error", err)
	}

	a.publish(snap)
	return snap, nil
}

func (a *App) publish(snap *recommender.Snapshot) {
	a.Engine.Publish(snap)
	a.Health.SetHealthy(api.ComponentCatalog, fmt.Sprintf("%d entries", snap.Catalog.Len()))
	a.Health.SetHealthy(api.ComponentIndex, fmt.Sprintf("k=%d source=%s", snap.Table.K(), snap.Source))
}

// Close closes all resources.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
