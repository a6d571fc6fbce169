package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/LetsVenture2021/FollowGPT/pkg/agent"
	"github.com/LetsVenture2021/FollowGPT/pkg/planner"
	"github.com/spf13/cobra"
)

var (
	runPlanOnly bool
	runYes      bool
	runCwd      string
	runJSON     bool
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Plan and execute a natural-language request",
	Long: `Ask the configured LLM for a plan of tool calls and run it.
Every step runs even when an earlier step fails; failures are reported per
step. Mutating tools ask for confirmation unless --yes is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runPlanOnly, "plan-only", false, "print the plan without executing it")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "approve every mutating step")
	runCmd.Flags().StringVar(&runCwd, "cwd", "", "working directory for the run (default is the current directory)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cwd, err := workingDir(runCwd)
	if err != nil {
		return err
	}

	rt, err := a.runtime(a.confirmer(runYes))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if runPlanOnly {
		plan, err := rt.Plan(cmd.Context(), prompt)
		if err != nil {
			return err
		}
		if runJSON {
			return writeJSON(out, plan)
		}
		printPlan(out, plan)
		return nil
	}

	result, err := rt.HandlePrompt(cmd.Context(), prompt, agent.Overrides{Cwd: cwd})
	if err != nil {
		return err
	}

	if runJSON {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		printResult(out, result)
	}

	if failed := result.FailedSteps(); failed > 0 {
		return fmt.Errorf("%d of %d steps failed", failed, len(result.Results))
	}
	return nil
}

func printPlan(w io.Writer, plan *planner.Plan) {
	fmt.Fprintf(w, "Plan: %s\n", plan.Summary)
	for i, step := range plan.Steps {
		input, _ := json.Marshal(step.Input)
		fmt.Fprintf(w, "  %d. %s %s\n", i+1, step.Tool, input)
		if step.Rationale != "" {
			fmt.Fprintf(w, "     %s\n", step.Rationale)
		}
	}
}

func printResult(w io.Writer, result *planner.PlanResult) {
	fmt.Fprintf(w, "Plan: %s\n", result.Plan.Summary)
	for i, res := range result.Results {
		if res.Failed() {
			fmt.Fprintf(w, "  %d. %s failed: %s\n", i+1, res.Step.Tool, res.Error)
			continue
		}
		output, _ := json.Marshal(res.Output)
		fmt.Fprintf(w, "  %d. %s ok (%s) %s\n", i+1, res.Step.Tool, res.Duration.Round(time.Millisecond), output)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
