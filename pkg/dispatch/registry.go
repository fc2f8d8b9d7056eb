package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownTool is returned when dispatching a name no tool claims.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrNoContext is returned when a tool requires an execution context
	// and none was supplied or resolvable.
	ErrNoContext = errors.New("no active context")
)

// Registry maps tool names to handlers and normalizes every outcome to the
// common result shape.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named tool and normalizes the outcome:
//   - unknown tool name: immediate failure, no executor round-trip
//   - required context missing: immediate "no active context" failure
//   - handler error: {success:false, error}
//   - handler payload: payload with success:true merged in
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]interface{}, exec *ExecutionContext) map[string]interface{} {
	tool, ok := r.Get(name)
	if !ok {
		return Failure(fmt.Errorf("%w: %s", ErrUnknownTool, name))
	}

	if cr, needs := tool.(ContextRequired); needs && cr.RequiresContext() && !exec.Resolvable() {
		return Failure(fmt.Errorf("%w for tool %s", ErrNoContext, name))
	}

	payload, err := tool.Execute(ctx, args, exec)
	if err != nil {
		return Failure(err)
	}
	return Success(payload)
}

// Success merges success:true into a payload, copying so the tool's map is
// never mutated.
func Success(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["success"] = true
	return out
}

// Failure builds the common failure shape.
func Failure(err error) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	}
}
