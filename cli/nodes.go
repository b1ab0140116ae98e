package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glyph-labs/glyphflow/core"
)

// NewNodesCmd creates the "nodes" command group.
func NewNodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Inspect registered node types",
	}
	cmd.AddCommand(newNodesListCmd())
	return cmd
}

func newNodesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the node types registered by the loaded plugins",
		RunE:  runNodesList,
	}
	addSessionFlags(cmd)
	cmd.Flags().String("category", "", "Only show node types in this category")
	cmd.Flags().Bool("hidden", false, "Include hidden node types")
	return cmd
}

func runNodesList(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	category, _ := cmd.Flags().GetString("category")
	showHidden, _ := cmd.Flags().GetBool("hidden")

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "UNIQUE NAME\tNAME\tCATEGORY\tFLAGS\tPINS")
	count := 0
	for _, entry := range s.reg.All() {
		if entry.Desc.Flags.Has(core.FlagHidden) && !showHidden {
			continue
		}
		if category != "" && !strings.EqualFold(entry.Desc.Category, category) {
			continue
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\n",
			entry.Desc.UniqueName,
			entry.Desc.Name,
			entry.Desc.Category,
			flagNames(entry.Desc.Flags),
			len(entry.Desc.Pins),
		)
		count++
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d node type(s)\n", count)
	return nil
}

// flagNames renders a node's flag set as a comma list, "-" when empty.
func flagNames(flags core.NodeFlags) string {
	var names []string
	for _, f := range []struct {
		flag core.NodeFlags
		name string
	}{
		{core.FlagTriggerEvent, "trigger-event"},
		{core.FlagPureData, "pure-data"},
		{core.FlagAsync, "async"},
		{core.FlagStateful, "stateful"},
		{core.FlagHidden, "hidden"},
	} {
		if flags.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}
