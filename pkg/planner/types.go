package planner

import "time"

// Plan is an ordered list of tool invocations produced from a prompt.
// Steps run in slice order.
type Plan struct {
	Summary string        `json:"summary"`
	Steps   []PlannedStep `json:"steps"`
}

// PlannedStep is one tool invocation. Input is left untyped; it is checked
// against the tool's input schema when the step runs.
type PlannedStep struct {
	Tool      string      `json:"tool"`
	Input     interface{} `json:"input"`
	Rationale string      `json:"rationale,omitempty"`
}

// StepResult holds either the output or the error of one step
type StepResult struct {
	Step     PlannedStep   `json:"step"`
	Output   interface{}   `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the step ended in an error
func (r StepResult) Failed() bool {
	return r.Error != ""
}

// PlanResult pairs a plan with one result per step, in step order
type PlanResult struct {
	Plan    Plan         `json:"plan"`
	Results []StepResult `json:"results"`
}

// FailedSteps returns the number of steps that ended in an error
func (r *PlanResult) FailedSteps() int {
	n := 0
	for _, res := range r.Results {
		if res.Failed() {
			n++
		}
	}
	return n
}
