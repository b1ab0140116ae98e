package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/glyph-labs/glyphflow/host"
)

// NewConfigCmd creates the "config" command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the host configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective host configuration as YAML",
		RunE:  runConfigShow,
	}
	cmd.Flags().String("config", "", "Path to glyphflow.yaml host config")
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	explicit, _ := cmd.Flags().GetString("config")
	path, found, err := host.DiscoverConfigPath(explicit)
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}

	cfg := host.DefaultConfig()
	source := "built-in defaults"
	if found {
		cfg, err = host.LoadConfig(path)
		if err != nil {
			return exitError(exitConfig, "%v", err)
		}
		source = path
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return exitError(exitRuntime, "encoding config: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", source, data)
	return nil
}
