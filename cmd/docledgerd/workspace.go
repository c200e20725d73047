package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage workspaces",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <slug> [name]",
		Short: "Register a workspace in the ledger",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			l, err := openLedger(cfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer l.Close()

			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			ws, err := l.CreateWorkspace(cmd.Context(), args[0], name)
			if err != nil {
				return fmt.Errorf("creating workspace: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ws)
		},
	})
	return cmd
}
