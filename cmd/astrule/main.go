// Package main provides the entry point for the astrule CLI tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/astrule/cmd/astrule/commands"
	"github.com/Sumatoshi-tech/astrule/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "astrule",
		Short: "Structural code search with composable rules",
		Long: `astrule finds code by shape instead of text.

Commands:
  scan      Run rules or a single pattern over files and directories
  validate  Check rule files without running them
  mcp       Serve structural search to AI agents over MCP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewScanCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		// Error findings were already reported.
		if !errors.Is(err, commands.ErrErrorFindings) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
