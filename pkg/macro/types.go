// Package macro stores and replays named sequences of tool and shell steps.
//
// Invariants:
// - A macro run stops at the first failing step and returns its error.
// - Tool steps use the same lookup, validation and authorization path as planned steps.
// - A shell step's working directory is authorized before the command is spawned.
// - Nested macro runs are bounded by MaxDepth.
package macro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMacroNotFound is returned when no macro has the requested name
	ErrMacroNotFound = errors.New("macro not found")

	// ErrMacroDepth is returned when macros nest deeper than MaxDepth
	ErrMacroDepth = errors.New("macro nesting too deep")

	// ErrInvalidStep is returned for steps that fail the step schema
	ErrInvalidStep = errors.New("invalid macro step")
)

// StepKind discriminates macro steps
type StepKind string

const (
	KindTool  StepKind = "tool"
	KindShell StepKind = "shell"
)

// Step is one stored macro step: a tool invocation or a shell command
type Step struct {
	Kind    StepKind
	Tool    string
	Input   map[string]interface{}
	Command string
	Cwd     string
}

// Macro is a named, replayable step sequence
type Macro struct {
	Name      string    `json:"name"`
	Steps     []Step    `json:"steps"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is the persistence the runner and macro tools depend on
type Store interface {
	SaveMacro(ctx context.Context, name string, steps []Step) error
	LoadMacros(ctx context.Context) ([]Macro, error)
	GetMacro(ctx context.Context, name string) (*Macro, error)
}

// ToolStep builds a tool step
func ToolStep(tool string, input map[string]interface{}) Step {
	if input == nil {
		input = map[string]interface{}{}
	}
	return Step{Kind: KindTool, Tool: tool, Input: input}
}

// ShellStep builds a shell step
func ShellStep(command, cwd string) Step {
	return Step{Kind: KindShell, Command: command, Cwd: cwd}
}

// Map returns the wire form of the step, holding only the keys of its kind
func (s Step) Map() map[string]interface{} {
	m := map[string]interface{}{"kind": string(s.Kind)}
	switch s.Kind {
	case KindTool:
		m["tool"] = s.Tool
		input := s.Input
		if input == nil {
			input = map[string]interface{}{}
		}
		m["input"] = input
	case KindShell:
		m["command"] = s.Command
		if s.Cwd != "" {
			m["cwd"] = s.Cwd
		}
	}
	return m
}

// MarshalJSON implements json.Marshaler
func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// UnmarshalJSON implements json.Unmarshaler. The decoded step is checked
// against the step schema.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	step, err := StepFromMap(raw)
	if err != nil {
		return err
	}
	*s = step
	return nil
}

// StepFromMap validates a decoded step and converts it
func StepFromMap(raw interface{}) (Step, error) {
	raw, err := plainJSON(raw)
	if err != nil {
		return Step{}, fmt.Errorf("%w: %w", ErrInvalidStep, err)
	}
	if err := stepSchema.Validate(raw); err != nil {
		return Step{}, fmt.Errorf("%w: %w", ErrInvalidStep, err)
	}
	m := raw.(map[string]interface{})

	step := Step{Kind: StepKind(m["kind"].(string))}
	switch step.Kind {
	case KindTool:
		step.Tool, _ = m["tool"].(string)
		step.Input, _ = m["input"].(map[string]interface{})
		if step.Input == nil {
			step.Input = map[string]interface{}{}
		}
	case KindShell:
		step.Command, _ = m["command"].(string)
		step.Cwd, _ = m["cwd"].(string)
	}
	return step, nil
}

// StepsFromValue validates and converts a decoded step list
func StepsFromValue(raw interface{}) ([]Step, error) {
	raw, err := plainJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStep, err)
	}
	if err := stepsSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStep, err)
	}
	items := raw.([]interface{})
	steps := make([]Step, 0, len(items))
	for i, item := range items {
		step, err := StepFromMap(item)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// plainJSON re-decodes v so that objects are map[string]interface{} and arrays []interface{}
func plainJSON(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s Step) String() string {
	if s.Kind == KindShell {
		return "shell: " + s.Command
	}
	return "tool: " + s.Tool
}
