package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mrvn-ai/mrvn/pkg/llms"
)

// ErrDuplicateTool is returned when registering a name that is taken.
var ErrDuplicateTool = errors.New("tool is already registered")

// Registry owns tool instances and is the single dispatch point for
// execution. All failure modes of a call (unknown tool, invalid
// parameters, tool-level errors, panics) surface as error ToolResults,
// never as errors or panics to the agent loop.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		logger: slog.With("component", "tools"),
	}
}

// Register adds a tool. Registering an already-taken name fails with
// ErrDuplicateTool.
func (r *Registry) Register(t Tool) error {
	name := t.GetName()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = t
	r.logger.Debug("Registered tool", "name", name)
	return nil
}

// Unregister removes a tool. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		delete(r.tools, name)
		r.logger.Debug("Unregistered tool", "name", name)
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all registered tools in name order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	all := make([]Tool, 0, len(names))
	for _, name := range names {
		all = append(all, r.tools[name])
	}
	return all
}

// Definitions renders tools for submission to a provider. A nil or empty
// names filter includes every registered tool; unknown names are skipped.
func (r *Registry) Definitions(names []string) []llms.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		names = make([]string, 0, len(r.tools))
		for name := range r.tools {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	defs := make([]llms.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			continue
		}
		defs = append(defs, t.GetInfo().LLMDefinition())
	}
	return defs
}

// RegisterSource discovers a tool source and registers everything it
// exposes.
func (r *Registry) RegisterSource(ctx context.Context, src ToolSource) error {
	if err := src.DiscoverTools(ctx); err != nil {
		return fmt.Errorf("discover tools from %s: %w", src.GetName(), err)
	}
	for _, info := range src.ListTools() {
		t, ok := src.GetTool(info.Name)
		if !ok {
			continue
		}
		if err := r.Register(t); err != nil {
			return err
		}
	}
	r.logger.Info("Registered tool source", "source", src.GetName(), "type", src.GetType())
	return nil
}

// Execute runs a tool by name with validated parameters.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (result *ToolResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Tool panicked", "name", name, "panic", p)
			result = NewErrorResult(fmt.Sprintf("tool '%s' panicked: %v", name, p))
		}
	}()

	t, ok := r.Get(name)
	if !ok {
		return NewErrorResult(fmt.Sprintf("Tool '%s' not found", name))
	}

	if err := validateParams(t.GetInfo(), params); err != nil {
		return NewErrorResult(err.Error())
	}

	r.logger.Info("Executing tool", "name", name)
	res, err := t.Execute(ctx, params)
	if err != nil {
		r.logger.Warn("Tool failed", "name", name, "error", err)
		return NewErrorResult(err.Error())
	}
	if res == nil {
		return NewErrorResult(fmt.Sprintf("tool '%s' returned no result", name))
	}

	r.logger.Info("Tool completed", "name", name, "status", res.Status)
	return res
}
