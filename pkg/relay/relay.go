package relay

import (
	"context"
	"time"

	"github.com/entrhq/taskrelay/pkg/dispatch"
	"github.com/entrhq/taskrelay/pkg/logging"
)

// DefaultTimeout is how long a caller waits for the executor to answer a
// single command before receiving a timeout result.
const DefaultTimeout = 30 * time.Second

// Relay combines the mailbox, the rendezvous table, and the timeout
// governor into the caller-facing command channel.
type Relay struct {
	mailbox *Mailbox
	rdv     *Rendezvous
	local   *dispatch.Registry
	timeout time.Duration
	started time.Time
	logger  *logging.Logger
}

// New creates a relay. A timeout of 0 selects DefaultTimeout. The logger
// may be nil, in which case the relay is silent.
func New(timeout time.Duration, logger *logging.Logger) *Relay {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r := &Relay{
		mailbox: NewMailbox(),
		rdv:     NewRendezvous(),
		local:   dispatch.NewRegistry(),
		timeout: timeout,
		started: time.Now(),
		logger:  logger,
	}

	// Relay-local tools are answered without an executor round-trip.
	r.local.Register(&pingTool{})
	r.local.Register(&statusTool{relay: r})

	return r
}

// Timeout returns the configured default wait deadline.
func (r *Relay) Timeout() time.Duration {
	return r.timeout
}

// IsLocal reports whether the named tool is answered by the relay itself.
func (r *Relay) IsLocal(tool string) bool {
	return r.local.Has(tool)
}

// Submit places a command in the mailbox for the executor's next poll and
// returns the command id, generating one if the caller didn't supply it.
func (r *Relay) Submit(cmd *Command) string {
	if cmd.ID == "" {
		cmd.ID = NewCommandID()
	}

	if displaced := r.mailbox.Put(cmd); displaced != nil {
		r.warnf("submit of %s (%s) displaced uncollected command %s (%s)",
			cmd.ID, cmd.Tool, displaced.ID, displaced.Tool)
	}
	return cmd.ID
}

// Poll retrieves and clears the pending command, if any. Called by the
// executor.
func (r *Relay) Poll() (*Command, bool) {
	cmd, ok := r.mailbox.Take()
	if ok {
		r.debugf("command %s (%s) picked up by executor", cmd.ID, cmd.Tool)
	}
	return cmd, ok
}

// WaitForResult blocks until the result for id arrives, the timeout
// elapses, or ctx is cancelled. A timeout of 0 selects the relay default.
// On expiry the id is marked abandoned so a late result is dropped instead
// of being delivered to an unrelated caller.
func (r *Relay) WaitForResult(ctx context.Context, id string, timeout time.Duration) *Result {
	if timeout <= 0 {
		timeout = r.timeout
	}

	w := r.rdv.register(id)
	defer r.rdv.remove(w)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		if res, ok := r.rdv.expire(w); ok {
			return res
		}
		return &Result{ID: id, Success: false, Error: "cancelled"}

	case <-timer.C:
		if res, ok := r.rdv.expire(w); ok {
			// The executor answered inside the deadline; the timer merely
			// fired first in the select.
			return res
		}
		r.warnf("command %s timed out after %s", id, timeout)
		return timeoutResult(id)

	case res, ok := <-w.ch:
		if !ok {
			// Channel closed during cleanup, treat as cancellation.
			return &Result{ID: id, Success: false, Error: "cancelled"}
		}
		return res
	}
}

// PostResult delivers a result from the executor to the waiter registered
// for its id. Returns true when delivered, false when dropped.
func (r *Relay) PostResult(res *Result) bool {
	delivered := r.rdv.Resolve(res)
	if !delivered {
		r.warnf("dropped result for %s: no waiter (late or unknown)", res.ID)
	}
	return delivered
}

// Execute submits a command and waits for its result. Relay-local tools are
// answered synchronously without occupying the mailbox.
func (r *Relay) Execute(ctx context.Context, cmd *Command, timeout time.Duration) *Result {
	if cmd.ID == "" {
		cmd.ID = NewCommandID()
	}

	if r.local.Has(cmd.Tool) {
		payload := r.local.Dispatch(ctx, cmd.Tool, cmd.Args, &dispatch.ExecutionContext{
			Target:    cmd.Target,
			SubtaskID: cmd.SubtaskID,
		})
		return resultFromPayload(cmd.ID, payload)
	}

	id := r.Submit(cmd)
	return r.WaitForResult(ctx, id, timeout)
}

// resultFromPayload converts a dispatch payload (the common tool result
// shape) into a Result.
func resultFromPayload(id string, payload map[string]interface{}) *Result {
	res := &Result{ID: id}

	success, _ := payload["success"].(bool)
	res.Success = success

	if errMsg, ok := payload["error"].(string); ok && !success {
		res.Error = errMsg
		return res
	}

	body := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == "success" {
			continue
		}
		body[k] = v
	}
	res.Result = body
	if ref, ok := body["ref"].(string); ok {
		res.Ref = ref
	}
	return res
}

// Status describes the relay's current state for diagnostics.
func (r *Relay) Status() map[string]interface{} {
	return map[string]interface{}{
		"pending":        r.mailbox.Occupied(),
		"waiting":        r.rdv.Waiting(),
		"droppedResults": r.rdv.Dropped(),
		"uptimeSeconds":  int(time.Since(r.started).Seconds()),
	}
}

func (r *Relay) debugf(format string, v ...interface{}) {
	if r.logger != nil {
		r.logger.Debugf(format, v...)
	}
}

func (r *Relay) warnf(format string, v ...interface{}) {
	if r.logger != nil {
		r.logger.Warnf(format, v...)
	}
}
