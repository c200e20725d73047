// Docledgerd manages documents embedded into per-workspace vector namespaces.
//
// Usage:
//
//	# Start the HTTP API (and the watched-document monitor if enabled)
//	docledgerd serve
//
//	# Serve MCP tools over stdio
//	docledgerd mcp --actor user42
//
//	# Register a workspace
//	docledgerd workspace create engineering "Engineering"
//
// Configuration is read from ~/.config/docledger/config.yaml (or --config)
// and DOCLEDGER_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config flag shared by every command.
var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docledgerd",
		Short: "Document ledger and vector namespace manager",
		Long: `docledgerd keeps a scoped document tree, a ledger of embedded documents
and per-workspace vector namespaces in agreement.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/docledger/config.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMCPCmd())
	root.AddCommand(newWorkspaceCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "docledgerd by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
