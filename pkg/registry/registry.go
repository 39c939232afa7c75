// Package registry holds the process-wide tool table. Tools are
// registered once at startup; the table is frozen before the first
// request is served and read-only afterwards.
package registry

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/forgeline/sitesmith/pkg/types"
	"github.com/forgeline/sitesmith/pkg/validation"
)

// Handler implements a tool's behavior. It receives arguments already
// validated against the tool's input contract and returns a structured
// result or an error. Side effects are delegated entirely to external
// collaborators (filesystem, processes, network).
type Handler func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)

// Tool describes one registered tool: its name, contracts and handler
type Tool struct {
	Name        string
	Description string
	Input       validation.Contract
	Output      validation.Contract
	Handler     Handler
}

// Info renders the tool in the wire shape used by listTools
func (t Tool) Info() types.ToolInfo {
	return types.ToolInfo{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Input.Parameters(),
	}
}

// Registry maps tool names to descriptors, preserving insertion order
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	order  []string
	frozen bool
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry. It fails with a DuplicateTool
// error if the name is taken and with a plain error after Freeze.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return errors.New("tool name is required")
	}
	if t.Handler == nil {
		return errors.Errorf("tool %q has no handler", t.Name)
	}
	if err := t.Input.Compile(); err != nil {
		return errors.Wrapf(err, "tool %q input contract", t.Name)
	}
	if err := t.Output.Compile(); err != nil {
		return errors.Wrapf(err, "tool %q output contract", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.Errorf("registry is frozen, cannot register tool %q", t.Name)
	}
	if _, exists := r.tools[t.Name]; exists {
		return types.NewError(types.CodeDuplicateTool, "tool already registered: "+t.Name)
	}

	tool := t
	r.tools[t.Name] = &tool
	r.order = append(r.order, t.Name)
	return nil
}

// Freeze marks the registry read-only. Called when a server starts
// accepting requests; later Register calls fail.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Resolve returns the descriptor for name or an UnknownTool error
func (r *Registry) Resolve(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, types.NewError(types.CodeUnknownTool, "unknown tool: "+name)
	}
	return tool, nil
}

// List returns all registered tools in insertion order
func (r *Registry) List() []types.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]types.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.tools[name].Info())
	}
	return infos
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Call resolves name, validates args against the input contract,
// invokes the handler, and validates the result against the output
// contract. Contract violations on input surface as client errors;
// violations on output are a server-side bug and surface as tool
// execution errors.
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	tool, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = make(map[string]interface{})
	}
	if err := tool.Input.Validate(args, types.CodeProtocolError); err != nil {
		return nil, err
	}

	result, err := tool.Handler(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := tool.Output.Validate(result, types.CodeToolExecution); err != nil {
		return nil, err
	}
	return result, nil
}
