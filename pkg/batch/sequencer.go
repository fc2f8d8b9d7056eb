// Package batch drives ordered command lists through the relay one step at
// a time, substituting back-references between steps and halting at the
// first failure.
package batch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/entrhq/taskrelay/pkg/logging"
	"github.com/entrhq/taskrelay/pkg/relay"
)

// DefaultStepTimeout bounds each batch step's wait for the executor.
const DefaultStepTimeout = 20 * time.Second

// RefPrev is the placeholder resolved to the most recent step's extracted
// reference before dispatch.
const RefPrev = "$prev"

// refStepPrefix keys a back-reference by step index: "$step:0" resolves to
// step 0's extracted reference.
const refStepPrefix = "$step:"

// Step is one partial command in a batch.
type Step struct {
	Tool   string                 `json:"tool"`
	Args   map[string]interface{} `json:"args,omitempty"`
	ID     string                 `json:"id,omitempty"`
	Target interface{}            `json:"target,omitempty"`
}

// Request is an ordered list of steps run under one logical task.
type Request struct {
	Commands  []Step `json:"commands"`
	SubtaskID string `json:"subtaskId,omitempty"`
}

// StepResult is the recorded outcome of one executed step.
type StepResult struct {
	Success bool                   `json:"success"`
	Index   int                    `json:"index"`
	Tool    string                 `json:"tool"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Response reports a whole batch. Invariants: CommandsExecuted never
// exceeds CommandsTotal, and Results holds exactly one entry per executed
// step.
type Response struct {
	Success          bool         `json:"success"`
	SubtaskID        string       `json:"subtaskId,omitempty"`
	CommandsExecuted int          `json:"commandsExecuted"`
	CommandsTotal    int          `json:"commandsTotal"`
	Results          []StepResult `json:"results"`
}

// Sequencer runs batches against a relay, strictly sequentially.
type Sequencer struct {
	relay       *relay.Relay
	stepTimeout time.Duration
	logger      *logging.Logger
}

// NewSequencer creates a sequencer. A stepTimeout of 0 selects
// DefaultStepTimeout. The logger may be nil.
func NewSequencer(r *relay.Relay, stepTimeout time.Duration, logger *logging.Logger) *Sequencer {
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	return &Sequencer{
		relay:       r,
		stepTimeout: stepTimeout,
		logger:      logger,
	}
}

// Run executes the batch. Steps run one at a time; the first failing,
// errored, or timed-out step halts the batch, and the results gathered so
// far are returned with Success=false.
func (s *Sequencer) Run(ctx context.Context, req Request) Response {
	resp := Response{
		Success:       true,
		SubtaskID:     req.SubtaskID,
		CommandsTotal: len(req.Commands),
		Results:       make([]StepResult, 0, len(req.Commands)),
	}

	// Back-references: the most recent extracted reference, plus every
	// step's reference keyed by index for "$step:N" lookups.
	lastRef := ""
	refsByStep := make([]string, len(req.Commands))

	for i, step := range req.Commands {
		if step.Tool == "" {
			resp.Results = append(resp.Results, StepResult{
				Index: i,
				Error: "missing tool",
			})
			resp.CommandsExecuted = i + 1
			resp.Success = false
			return resp
		}

		args, err := substituteRefs(step.Args, lastRef, refsByStep[:i])
		if err != nil {
			resp.Results = append(resp.Results, StepResult{
				Index: i,
				Tool:  step.Tool,
				Error: err.Error(),
			})
			resp.CommandsExecuted = i + 1
			resp.Success = false
			return resp
		}

		cmd := &relay.Command{
			ID:        step.ID,
			Tool:      step.Tool,
			Args:      args,
			Target:    step.Target,
			SubtaskID: req.SubtaskID,
		}

		res := s.relay.Execute(ctx, cmd, s.stepTimeout)
		if ref := res.ExtractRef(); ref != "" {
			lastRef = ref
			refsByStep[i] = ref
		}

		sr := StepResult{
			Success: res.Success,
			Index:   i,
			Tool:    step.Tool,
			Result:  res.Result,
			Error:   res.Error,
		}
		resp.Results = append(resp.Results, sr)
		resp.CommandsExecuted = i + 1

		if !res.Success {
			s.warnf("batch %s halted at step %d (%s): %s", req.SubtaskID, i, step.Tool, res.Error)
			resp.Success = false
			return resp
		}
	}

	return resp
}

// substituteRefs resolves back-reference placeholders in the "ref" argument
// field before dispatch. Arguments are copied; the caller's map is never
// mutated.
func substituteRefs(args map[string]interface{}, lastRef string, priorRefs []string) (map[string]interface{}, error) {
	ref, ok := args["ref"].(string)
	if !ok {
		return args, nil
	}

	resolved := ref
	switch {
	case ref == RefPrev:
		if lastRef == "" {
			return nil, fmt.Errorf("no back-reference available for %q", RefPrev)
		}
		resolved = lastRef

	case strings.HasPrefix(ref, refStepPrefix):
		idx, err := strconv.Atoi(strings.TrimPrefix(ref, refStepPrefix))
		if err != nil || idx < 0 || idx >= len(priorRefs) {
			return nil, fmt.Errorf("back-reference %q does not name a prior step", ref)
		}
		if priorRefs[idx] == "" {
			return nil, fmt.Errorf("step %d produced no reference", idx)
		}
		resolved = priorRefs[idx]

	default:
		return args, nil
	}

	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	out["ref"] = resolved
	return out, nil
}

func (s *Sequencer) warnf(format string, v ...interface{}) {
	if s.logger != nil {
		s.logger.Warnf(format, v...)
	}
}
