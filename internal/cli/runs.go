package cli

import (
	"encoding/json"
	"fmt"

	"github.com/LetsVenture2021/FollowGPT/pkg/planner"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "print runs as JSON")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.store.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runsJSON {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		status := "ok"
		var result planner.PlanResult
		if err := json.Unmarshal(run.Result, &result); err == nil {
			if failed := result.FailedSteps(); failed > 0 {
				status = fmt.Sprintf("%d/%d failed", failed, len(result.Results))
			}
		}
		fmt.Fprintf(out, "%s  %-12s  %s  %q\n", run.ID, humanize.Time(run.CreatedAt), status, run.Prompt)
	}
	return nil
}
