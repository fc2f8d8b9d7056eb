// Package dispatch defines the tool contract shared by the relay and every
// executor. A tool is a named operation taking decoded JSON arguments and an
// optional execution context (which page, which tab). All tools produce the
// same result shape so the relay and batch layers can treat outcomes
// generically: on success a payload carrying at least success:true, on
// failure {success:false, error:string}.
package dispatch

import (
	"context"
)

// Tool represents a named operation an executor can perform.
type Tool interface {
	// Name returns the unique identifier for this tool (e.g. "navigate")
	Name() string

	// Description returns a human-readable description of what this tool does
	Description() string

	// Schema returns the JSON schema for this tool's input parameters
	Schema() map[string]interface{}

	// Execute runs the tool with decoded JSON arguments and returns its
	// payload. The payload must not include the "success" key; the registry
	// adds it when normalizing outcomes. Chainable outputs are reported
	// under the "ref" key.
	Execute(ctx context.Context, args map[string]interface{}, exec *ExecutionContext) (map[string]interface{}, error)
}

// ContextRequired is an optional interface for tools that cannot run without
// an execution context (e.g. tools that act on a specific page). Dispatch
// fails such tools immediately when no context is supplied or resolvable,
// without a relay round-trip.
type ContextRequired interface {
	Tool
	RequiresContext() bool
}

// ExecutionContext identifies where a tool should act.
type ExecutionContext struct {
	// Target is an opaque handle naming the execution context, typically a
	// tab or page id. Nil means no context.
	Target interface{}

	// SubtaskID is the correlation tag of the enclosing task, if any.
	SubtaskID string
}

// Resolvable reports whether the context actually names a target.
func (e *ExecutionContext) Resolvable() bool {
	return e != nil && e.Target != nil
}

// BaseToolSchema creates a common JSON schema structure for a tool
// with the given properties and required fields
func BaseToolSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
