package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/LetsVenture2021/FollowGPT/pkg/schema"
	"github.com/LetsVenture2021/FollowGPT/pkg/toolexecutor"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools [name]",
	Short: "List the available tools",
	Long: `List every registered tool with its capabilities and whether it mutates state.

With a tool name, print that tool's details including its input and output schemas.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		desc, ok := a.registry.Get(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", toolexecutor.ErrUnknownTool, args[0])
		}
		return printTool(cmd, desc)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMUTATES\tCAPABILITIES\tDESCRIPTION")
	for _, info := range a.registry.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, yesNo(info.Mutate), joinCapabilities(info.Capabilities), info.Description)
	}
	return tw.Flush()
}

func printTool(cmd *cobra.Command, desc toolexecutor.ToolDescriptor) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:         %s\n", desc.Name)
	fmt.Fprintf(out, "Description:  %s\n", desc.Description)
	fmt.Fprintf(out, "Mutates:      %s\n", yesNo(desc.Mutate))
	fmt.Fprintf(out, "Capabilities: %s\n", joinCapabilities(desc.Capabilities))

	for _, s := range []struct {
		label string
		def   schema.Schema
	}{
		{"Input schema", desc.InputSchema},
		{"Output schema", desc.OutputSchema},
	} {
		if len(s.def) == 0 {
			continue
		}
		data, err := json.MarshalIndent(s.def, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", strings.ToLower(s.label), err)
		}
		fmt.Fprintf(out, "%s:\n%s\n", s.label, data)
	}
	return nil
}

func joinCapabilities(caps []toolexecutor.Capability) string {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return strings.Join(names, ",")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
