package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glyph-labs/glyphflow/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "glyphflow",
	Short: "GlyphFlow node runtime CLI",
	Long:  "GlyphFlow — a CLI for loading node plugins, inspecting their node types, and running execution steps against the plugin host runtime.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("glyphflow version %s\n", version))

	rootCmd.AddCommand(cli.NewNodesCmd())
	rootCmd.AddCommand(cli.NewPluginsCmd())
	rootCmd.AddCommand(cli.NewExecCmd())
	rootCmd.AddCommand(cli.NewListenCmd())
	rootCmd.AddCommand(cli.NewConfigCmd())
}
