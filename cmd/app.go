package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/markb/routinecat/internal/catalog"
	"github.com/markb/routinecat/internal/db"
	"github.com/markb/routinecat/internal/log"
	"github.com/markb/routinecat/internal/observability"
	"github.com/markb/routinecat/internal/routine"
	"github.com/markb/routinecat/internal/scan"
	"github.com/markb/routinecat/internal/store"
	"github.com/spf13/cobra"
)

// app holds everything a command needs to read the catalog.
type app struct {
	cfg       *Config
	db        *db.DB
	store     *store.Store
	mapper    *routine.Mapper
	catalog   *scan.Catalog
	telemetry *observability.Telemetry
	cleanup   []func()
}

// openApp initializes logging and telemetry, opens the catalog and builds
// the mapper for its server version.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := log.Init(cfg.LogConfig()); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	a := &app{cfg: cfg}
	a.cleanup = append(a.cleanup, func() { log.Close() })

	tel, shutdown, err := observability.Init(cmd.Context(), cfg.TelemetryConfig())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.telemetry = tel
	a.cleanup = append(a.cleanup, shutdown)

	if cfg.Driver == db.DriverSQLite {
		if _, err := os.Stat(cfg.DSN); os.IsNotExist(err) {
			a.Close()
			return nil, fmt.Errorf("catalog not found at %s (run 'routinecat init' first)", cfg.DSN)
		}
	}
	database, err := db.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = database
	a.cleanup = append(a.cleanup, func() { database.Close() })

	if err := database.RunMigrations(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	a.store = store.New(database)

	version, err := a.serverVersion(cmd.Context())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.mapper = routine.NewMapper(version)
	if cfg.Lenient {
		a.mapper = a.mapper.Lenient()
	}
	log.Debug("catalog opened",
		"driver", cfg.Driver,
		"version", version.String(),
		"lenient", cfg.Lenient,
		"owner_type", a.mapper.Caps.OwnerType,
		"dialect", a.mapper.Caps.Dialect,
		"function_type", a.mapper.Caps.FunctionType,
	)

	scanner := scan.NewScanner(a.store, a.mapper, tel)
	scanner.SetWorkers(cfg.Workers)
	a.catalog = scan.NewCatalog(scanner, a.store.ParameterFetcher(a.mapper), tel)
	return a, nil
}

// serverVersion prefers the override, then the version recorded in the
// snapshot. A snapshot without one is read with every capability on.
func (a *app) serverVersion(ctx context.Context) (catalog.Version, error) {
	if a.cfg.VersionOverride != "" {
		v, err := catalog.ParseVersion(a.cfg.VersionOverride)
		if err != nil {
			return catalog.Version{}, fmt.Errorf("--version-override: %w", err)
		}
		return v, nil
	}
	v, err := a.store.Version(ctx)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("catalog has no server version; assuming the newest")
		return catalog.V9_7, nil
	}
	return v, err
}

// container resolves a schema and an optional module name.
func (a *app) container(ctx context.Context, schemaName, moduleName string) (catalog.Container, error) {
	schema, err := a.store.Schema(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	if moduleName == "" {
		return schema, nil
	}
	return a.store.Module(ctx, schema, moduleName)
}

// routine resolves a routine from positional args [schema, name] and the
// --module flag.
func (a *app) routine(cmd *cobra.Command, args []string) (*routine.Descriptor, error) {
	module, _ := cmd.Flags().GetString("module")
	c, err := a.container(cmd.Context(), args[0], module)
	if err != nil {
		return nil, err
	}
	return a.catalog.Routine(cmd.Context(), c, args[1])
}

func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}
