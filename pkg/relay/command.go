package relay

import (
	"github.com/google/uuid"
)

// Command is a unit of work addressed to the executor.
type Command struct {
	// ID uniquely identifies the command. Caller-supplied or relay-generated.
	ID string `json:"id"`

	// Tool is the name of the operation to perform (e.g. "navigate").
	Tool string `json:"tool"`

	// Args holds the tool's arguments as decoded JSON.
	Args map[string]interface{} `json:"args,omitempty"`

	// Target is an opaque execution-context handle (e.g. a tab id).
	// The relay never interprets it.
	Target interface{} `json:"target,omitempty"`

	// SubtaskID is an optional correlation tag carried through to results.
	SubtaskID string `json:"subtaskId,omitempty"`
}

// Result is the executor's answer to a command. Produced exactly once per
// command that reaches the executor.
type Result struct {
	// ID matches the command this result answers.
	ID string `json:"id"`

	// Success reports whether the tool ran successfully.
	Success bool `json:"success"`

	// Result holds the tool's payload on success.
	Result map[string]interface{} `json:"result,omitempty"`

	// Ref is the extracted reference for chainable outputs (e.g. an element
	// handle produced by a find tool, consumed by a later click).
	Ref string `json:"ref,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`
}

// NewCommandID generates a fresh command id.
func NewCommandID() string {
	return uuid.New().String()
}

// ExtractRef returns the chainable reference carried by this result, if any.
// The explicit Ref field wins; executors that still report a "ref" key inside
// the payload are honored for compatibility.
func (r *Result) ExtractRef() string {
	if r.Ref != "" {
		return r.Ref
	}
	if r.Result != nil {
		if ref, ok := r.Result["ref"].(string); ok {
			return ref
		}
	}
	return ""
}

// timeoutResult builds the structured outcome returned when no result
// arrived within the deadline. Callers must treat it as "unknown outcome",
// not "definite failure": the executor may still complete the command.
func timeoutResult(id string) *Result {
	return &Result{ID: id, Success: false, Error: "timeout"}
}
