// Package app wires configuration, logging, the function registry, the
// definition loader, and the engine into a runnable application.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/acctflow/procgraph/internal/ctxlog"
	"github.com/acctflow/procgraph/internal/engine"
	"github.com/acctflow/procgraph/internal/ledger"
	"github.com/acctflow/procgraph/internal/registry"
	"github.com/acctflow/procgraph/internal/treefile"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	engine   *engine.Engine
	syncer   *ledger.Syncer
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// A failure to load definitions is a fatal startup error.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var syncer *ledger.Syncer
	if cfg.LedgerSnapshot != "" {
		var err error
		syncer, err = newSyncer(ctx, cfg)
		if err != nil {
			panic(fmt.Errorf("failed to wire ledger: %w", err))
		}
		modules = append(modules, ledger.NewModule(syncer))
		logger.Debug("Ledger module wired.", "snapshot", cfg.LedgerSnapshot, "postgres", cfg.LedgerDSN != "")
	}

	reg := registry.New(modules...)
	logger.Debug("All modules registered.", "count", len(modules))

	engineOpts := []engine.Option{}
	if cfg.NoCache {
		engineOpts = append(engineOpts, engine.CacheDisabled())
	}
	e := engine.New(engineOpts...)

	loader := treefile.NewLoader(registry.NewResolver(reg))
	model, err := loader.LoadDir(ctx, cfg.DefsPath)
	if err != nil {
		panic(fmt.Errorf("failed to load definitions: %w", err))
	}
	logger.Debug("Definitions loaded.", "trees", len(model.Trees), "triggers", len(model.Triggers))

	for name, tr := range model.Triggers {
		if err := e.Triggers().Register(name, tr); err != nil {
			panic(fmt.Errorf("failed to register trigger '%s': %w", name, err))
		}
	}
	for _, t := range model.Trees {
		if err := e.AddTree(t); err != nil {
			panic(fmt.Errorf("failed to add tree '%s': %w", t.Name(), err))
		}
	}

	// The canonical sync tree rides along whenever the ledger is wired, so
	// a definition directory does not need to restate it.
	if syncer != nil {
		if _, exists := e.Tree(ledger.TreeName); !exists {
			t, err := syncer.Tree()
			if err != nil {
				panic(fmt.Errorf("failed to build sync tree: %w", err))
			}
			if err := e.AddTree(t); err != nil {
				panic(fmt.Errorf("failed to add sync tree: %w", err))
			}
		}
	}

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		engine:   e,
		syncer:   syncer,
	}
}

// newSyncer assembles the ledger collaborators from config: a snapshot
// client, a Postgres-backed update store when a DSN is configured and an
// in-memory one otherwise.
func newSyncer(ctx context.Context, cfg *Config) (*ledger.Syncer, error) {
	client := ledger.NewFileClient(cfg.LedgerSnapshot)

	var store ledger.UpdateStore
	if cfg.LedgerDSN != "" {
		pg, err := ledger.NewPostgresStore(cfg.LedgerDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store = pg
	} else {
		store = ledger.NewMemStore()
	}

	checkers := ledger.NewCheckers(store, cfg.LedgerMaxAge)
	return ledger.NewSyncer(client, store, checkers), nil
}

// Engine returns the application's engine. This is primarily for testing.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
