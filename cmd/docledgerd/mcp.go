package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docledger/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Long: `Serve the document tools over the MCP stdio transport.
Logs go to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, true)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer a.Close(context.Background())

			srv, err := mcp.NewServer(&mcp.Config{
				Name:           "docledger",
				Version:        version,
				DefaultActorID: actor,
				Logger:         logger,
			}, a.docs, a.ledger)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id used when a tool call omits actor_id")
	return cmd
}
