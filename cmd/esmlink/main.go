// Package main provides the entry point for the esmlink CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/esmlink/cmd/esmlink/commands"
	"github.com/Sumatoshi-tech/esmlink/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "esmlink",
		Short: "Compile ES modules into lazily linked host units",
		Long: `esmlink compiles a tree of ES modules into self-contained units for a host
that only offers System.getContext() and System.getModule(id).

Commands:
  compile   Compile a source tree
  graph     Inspect the resolved module graph`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewCompileCommand())
	rootCmd.AddCommand(commands.NewGraphCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
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
			fmt.Fprintf(cmd.OutOrStdout(), "esmlink %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
