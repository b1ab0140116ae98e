package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glyph-labs/glyphflow/plugin"
)

// NewPluginsCmd creates the "plugins" command group.
func NewPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect loaded plugins",
	}
	cmd.AddCommand(newPluginsListCmd())
	cmd.AddCommand(newPluginsMenusCmd())
	cmd.AddCommand(newPluginsInvokeCmd())
	cmd.AddCommand(newPluginsSchemaCmd())
	return cmd
}

func newPluginsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the loaded plugins",
		RunE:  runPluginsList,
	}
	addSessionFlags(cmd)
	return cmd
}

func runPluginsList(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tVERSION\tAUTHOR\tSTATUS")
	for _, info := range s.manager.Plugins() {
		status := "available"
		if !s.manager.Available(info.ID) {
			status = "unavailable"
		}
		version := strings.TrimSpace(info.Version)
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", info.ID, info.Name, version, info.Author, status)
	}
	return writer.Flush()
}

func newPluginsMenusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menus",
		Short: "Show the menu trees contributed by plugins",
		RunE:  runPluginsMenus,
	}
	addSessionFlags(cmd)
	return cmd
}

func runPluginsMenus(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	menus := s.manager.Menus()
	if len(menus) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No plugin menus")
		return nil
	}
	for _, menu := range menus {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s]\n", menu.Path, menu.PluginID)
		printMenuItems(cmd, menu.Items, 1)
	}
	return nil
}

func printMenuItems(cmd *cobra.Command, items []plugin.MenuItem, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, item := range items {
		switch {
		case item.IsSeparator():
			fmt.Fprintf(cmd.OutOrStdout(), "%s---\n", indent)
		case item.ActionID != "":
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s (%s)\n", indent, item.Label, item.ActionID)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", indent, item.Label)
		}
		printMenuItems(cmd, item.Children, depth+1)
	}
}

func newPluginsInvokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke <plugin-id> <action-id>",
		Short: "Dispatch a menu action to its plugin",
		Args:  cobra.ExactArgs(2),
		RunE:  runPluginsInvoke,
	}
	addSessionFlags(cmd)
	return cmd
}

func runPluginsInvoke(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	pluginID, actionID := args[0], args[1]
	if err := s.manager.InvokeMenuAction(pluginID, actionID); err != nil {
		return exitError(exitRuntime, "menu action: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Invoked %s on %s\n", actionID, pluginID)
	return nil
}

func newPluginsSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema <plugin-id>",
		Short: "Print a plugin's settings schema",
		Args:  cobra.ExactArgs(1),
		RunE:  runPluginsSchema,
	}
	addSessionFlags(cmd)
	return cmd
}

func runPluginsSchema(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	pluginID := args[0]
	if !s.manager.Available(pluginID) {
		return exitError(exitUnknownNode, "plugin %q is not loaded", pluginID)
	}
	schema := s.manager.SettingsSchema(pluginID)
	if schema == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Plugin %s has no settings schema\n", pluginID)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), schema)
	return nil
}
