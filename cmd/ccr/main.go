// Package main provides the entry point for the ccr CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aladics/code-change-repr/cmd/ccr/commands"
	"github.com/aladics/code-change-repr/pkg/version"
)

func main() {
	rootCmd, app := commands.NewRootCommand()
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()

	if shutdownErr := app.Shutdown(context.Background()); shutdownErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: telemetry shutdown failed: %v\n", shutdownErr)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ccr %s\n", version.String())
		},
	}
}
