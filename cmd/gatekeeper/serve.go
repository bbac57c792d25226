package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/gatekeeper"
	"github.com/MrEthical07/gatekeeper/credentials"
	"github.com/MrEthical07/gatekeeper/internal/server"
	promexport "github.com/MrEthical07/gatekeeper/metrics/export/prometheus"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func runServe(ctx context.Context) error {
	if cfg.UsesDevSecret() {
		logger.Warn("using the built-in development JWT secret; set GATEKEEPER_JWT_SECRET in production")
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	client, closeRedis, err := openRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeRedis()

	builder := gatekeeper.New().
		WithConfig(cfg.EngineConfig()).
		WithUserProvider(store).
		WithLogger(logger)
	if client != nil {
		builder = builder.WithRedis(client)
	}
	switch cfg.Audit.Output {
	case "stdout":
		builder = builder.WithAuditSink(gatekeeper.NewJSONWriterSink(os.Stdout))
	default:
		builder = builder.WithAuditSink(gatekeeper.NewLogrusSink(logger.WithField("component", "audit")))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	var opts []server.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetricsHandler(promexport.NewExporter(engine).Handler()))
	}
	if client != nil {
		opts = append(opts, server.WithRedis(client))
	}

	return server.New(cfg.Server, engine, store, logger, opts...).Run(ctx)
}

// openStore connects to the credential database and migrates it when enabled.
func openStore(ctx context.Context) (*credentials.SQLStore, error) {
	openCfg, err := cfg.OpenConfig()
	if err != nil {
		return nil, err
	}

	logger.WithField("driver", openCfg.Dialect).Info("connecting to database")
	store, err := credentials.Open(ctx, openCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return store, nil
}
