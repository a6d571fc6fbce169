package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags <file>",
	Short: "Show the tags recorded for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTags,
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}

func runTags(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	file, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	tags, err := a.store.TagsForFile(cmd.Context(), file)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tags) == 0 {
		fmt.Fprintf(out, "No tags recorded for %s\n", file)
		return nil
	}
	fmt.Fprintf(out, "%s: %s\n", file, strings.Join(tags, ", "))
	return nil
}
