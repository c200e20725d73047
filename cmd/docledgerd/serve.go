package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/docledger/internal/config"
	httpserver "github.com/fyrsmithlabs/docledger/internal/http"
	"github.com/fyrsmithlabs/docledger/internal/ignore"
	"github.com/fyrsmithlabs/docledger/internal/watch"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return runServe(ctx, cfg, logger)
		},
	}
}

// runServe serves HTTP, and watches the documents tree when enabled, until
// ctx is cancelled. Shutdown is bounded by server.shutdown_timeout.
func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer a.Close(context.Background())

	srv, err := httpserver.NewServer(a.docs, a.ledger, logger, &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return err
	}

	var monitor *watch.Monitor
	if cfg.Watch.Enabled {
		ignored, err := ignore.Load(cfg.Storage.DocumentsRoot, cfg.Watch.IgnoreFiles, ignore.DefaultPatterns)
		if err != nil {
			return fmt.Errorf("loading ignore files: %w", err)
		}
		monitor, err = watch.NewMonitor(cfg.Storage.DocumentsRoot, a.ledger, cfg.Watch.Debounce.Duration(), logger,
			watch.WithIgnore(ignored))
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if monitor != nil {
		g.Go(func() error { return monitor.Run(gctx) })
	}

	logger.Info("docledgerd started",
		zap.String("version", version),
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		zap.Bool("watch", cfg.Watch.Enabled))

	err = g.Wait()
	logger.Info("docledgerd stopped")
	return err
}
