package toolexecutor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/LetsVenture2021/FollowGPT/pkg/schema"
	"github.com/rs/zerolog/log"
)

// ToolHandler is the function signature for tool execution. The input has
// already passed the tool's input schema when the handler is called.
type ToolHandler func(ctx context.Context, input map[string]interface{}, execCtx *ExecutionContext) (interface{}, error)

// ToolDescriptor defines a tool's contract and handler
type ToolDescriptor struct {
	Name         string
	Description  string
	Mutate       bool
	Capabilities []Capability
	InputSchema  schema.Schema
	OutputSchema schema.Schema
	Handler      ToolHandler
}

// ToolInfo is the handler-free view of a descriptor returned by List
type ToolInfo struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Mutate       bool          `json:"mutate"`
	Capabilities []Capability  `json:"capabilities"`
	InputSchema  schema.Schema `json:"inputSchema,omitempty"`
	OutputSchema schema.Schema `json:"outputSchema,omitempty"`
}

type registeredTool struct {
	desc   ToolDescriptor
	input  *schema.Compiled
	output *schema.Compiled
}

// Registry is the catalogue of tools available to planning and execution.
// Registration replaces an existing entry with the same name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
	order []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*registeredTool),
	}
}

// Register inserts or replaces the tool keyed by desc.Name
func (r *Registry) Register(desc ToolDescriptor) error {
	desc.Name = strings.TrimSpace(desc.Name)
	if desc.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDescriptor)
	}
	if desc.Handler == nil {
		return fmt.Errorf("%w: tool %s has no handler", ErrInvalidDescriptor, desc.Name)
	}
	for _, c := range desc.Capabilities {
		if !IsValidCapability(string(c)) {
			return fmt.Errorf("%w: tool %s declares %q", ErrInvalidCapability, desc.Name, c)
		}
	}

	input, err := schema.Compile(desc.InputSchema)
	if err != nil {
		return fmt.Errorf("%w: input schema of %s: %w", ErrInvalidDescriptor, desc.Name, err)
	}
	output, err := schema.Compile(desc.OutputSchema)
	if err != nil {
		return fmt.Errorf("%w: output schema of %s: %w", ErrInvalidDescriptor, desc.Name, err)
	}

	desc.Capabilities = append([]Capability(nil), desc.Capabilities...)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[desc.Name]; exists {
		log.Debug().Str("tool", desc.Name).Msg("Replacing registered tool")
	} else {
		r.order = append(r.order, desc.Name)
	}
	r.tools[desc.Name] = &registeredTool{desc: desc, input: input, output: output}

	log.Debug().
		Str("tool", desc.Name).
		Bool("mutate", desc.Mutate).
		Int("capabilities", len(desc.Capabilities)).
		Msg("Tool registered")

	return nil
}

// MustRegister registers desc and panics on error. Intended for built-in tools.
func (r *Registry) MustRegister(desc ToolDescriptor) {
	if err := r.Register(desc); err != nil {
		panic(err)
	}
}

// Get returns the descriptor registered under name
func (r *Registry) Get(name string) (ToolDescriptor, bool) {
	tool, ok := r.lookup(name)
	if !ok {
		return ToolDescriptor{}, false
	}
	return tool.desc, true
}

// List returns a snapshot of every registered tool in registration order
func (r *Registry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		d := r.tools[name].desc
		caps := make([]Capability, len(d.Capabilities))
		copy(caps, d.Capabilities)
		infos = append(infos, ToolInfo{
			Name:         d.Name,
			Description:  d.Description,
			Mutate:       d.Mutate,
			Capabilities: caps,
			InputSchema:  d.InputSchema,
			OutputSchema: d.OutputSchema,
		})
	}
	return infos
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

func (r *Registry) lookup(name string) (*registeredTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}
