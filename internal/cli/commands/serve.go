package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/cli/config"
	"github.com/conduit-lang/waypoint/internal/cli/ui"
	"github.com/conduit-lang/waypoint/internal/demo"
	"github.com/conduit-lang/waypoint/internal/web/profiling"
	"github.com/conduit-lang/waypoint/internal/web/server"
)

var serveAddress string

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Compile the routing table and serve it over HTTP",
		Long: `Compile the demo routing table and serve it over HTTP.

The serve command will:
  1. Load waypoint.yaml and WAYPOINT_* environment variables
  2. Open and migrate the configured database
  3. Compile the routing table
  4. Serve it until interrupted, draining in-flight requests

Edits to the dispatch section of the config file are applied without a
restart. A config that fails to compile keeps the previous table.`,
		Example: `  waypoint serve
  waypoint serve --addr :9090
  WAYPOINT_DISPATCH_STRATEGY=pattern waypoint serve`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddress, "addr", "", "Listen address (overrides server.address)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(configFile)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err, noColor))
		return err
	}
	if serveAddress != "" {
		cfg.Server.Address = serveAddress
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := commandContext(cmd)

	db, err := demo.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := demo.NewStore(db, cfg.Database.Driver).Migrate(ctx); err != nil {
		return err
	}

	// released by the shutdown hook, or on return when serving never starts
	resources := &releaser{}
	defer func() { _ = resources.release() }()

	limiter, closeLimiter, err := newLimiter(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	resources.add(closeLimiter)
	store, closeCache, err := newCacheStore(ctx, cfg.Cache, cfg.Redis)
	if err != nil {
		return err
	}
	resources.add(closeCache)
	tokens, err := newTokenService(cfg.Auth, logger)
	if err != nil {
		return err
	}

	deps := demo.Deps{
		Driver:   cfg.Database.Driver,
		Tokens:   tokens,
		Limiter:  limiter,
		FailOpen: cfg.Redis.FailOpen,
		Cache:    store,
		Logger:   logger,
	}
	d, err := compile(cfg, deps)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.BuildFailure(err, noColor))
		return err
	}

	adapter := server.NewAdapter(d, server.AdapterOptions{
		MountPath: cfg.Server.MountPath,
		Resources: map[string]interface{}{
			demo.ResourceDB:     db,
			demo.ResourceTokens: tokens,
		},
		Logger: logger,
	})
	ropts := server.RouterOptions{
		ExposeRoutes: cfg.Server.ExposeRoutes,
		Logger:       logger,
	}
	if cfg.Profile.Enabled {
		ropts.Profile = &profiling.Config{Path: cfg.Profile.Path}
		logger.Warn("profiling endpoints enabled", zap.String("path", cfg.Profile.Path))
	}
	router := server.NewRouter(adapter, ropts)

	scfg := server.DefaultConfig(router)
	scfg.Address = cfg.Server.Address
	if t := cfg.Dispatch.Timeout; t > 0 && t >= scfg.WriteTimeout {
		scfg.WriteTimeout = t + scfg.WriteTimeout
	}
	srv, err := server.New(scfg)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	if loader.File() != "" {
		loader.Watch(reloader(cmd, adapter, deps, cfg.Server.MountPath))
	}

	gs := server.NewGracefulShutdown(srv, cfg.Server.ShutdownTimeout, logger)
	gs.RegisterHook(func(context.Context) error { return resources.release() })

	fmt.Fprintln(cmd.OutOrStdout(), ui.FormatSuccess(
		fmt.Sprintf("serving %d routes on %s%s", d.Table().Len(), srv.Addr(), cfg.Server.MountPath), noColor))
	return gs.Run(ctx)
}

// reloader recompiles the table when the config file changes and swaps it
// into the adapter. Settings that need a new listener are only reported.
func reloader(cmd *cobra.Command, adapter *server.Adapter, deps demo.Deps, mount string) func(*config.Config, error) {
	return func(next *config.Config, err error) {
		if err == nil {
			err = swap(adapter, next, deps)
		}
		if err != nil {
			deps.Logger.Error("config reload failed", zap.Error(err))
			ui.WriteError(cmd.ErrOrStderr(), ui.ErrorOptions{
				Level:   ui.ErrorLevelWarning,
				Problem: "reload failed",
				Details: []string{err.Error(), "keeping previous table"},
				NoColor: noColor,
			})
			return
		}
		if next.Server.MountPath != mount {
			deps.Logger.Warn("server.mount_path changes need a restart",
				zap.String("current", mount),
				zap.String("configured", next.Server.MountPath),
			)
		}
	}
}

// swap compiles cfg and replaces the adapter's dispatcher with the result
func swap(adapter *server.Adapter, cfg *config.Config, deps demo.Deps) error {
	d, err := compile(cfg, deps)
	if err != nil {
		return err
	}
	adapter.Swap(d)
	deps.Logger.Info("routing table reloaded",
		zap.String("strategy", d.Strategy().String()),
		zap.Int("routes", d.Table().Len()),
	)
	return nil
}
