package relay

import (
	"context"
	"time"

	"github.com/entrhq/taskrelay/pkg/dispatch"
)

// pingTool is the relay-local health check. It never touches the mailbox.
type pingTool struct{}

func (t *pingTool) Name() string {
	return "ping"
}

func (t *pingTool) Description() string {
	return "Health check answered by the relay itself, without an executor round-trip"
}

func (t *pingTool) Schema() map[string]interface{} {
	return dispatch.BaseToolSchema(map[string]interface{}{}, nil)
}

func (t *pingTool) Execute(ctx context.Context, args map[string]interface{}, exec *dispatch.ExecutionContext) (map[string]interface{}, error) {
	return map[string]interface{}{
		"pong":      true,
		"timestamp": time.Now().UnixMilli(),
	}, nil
}

// statusTool reports relay diagnostics: slot occupancy, outstanding waiters,
// and the dropped-result counter.
type statusTool struct {
	relay *Relay
}

func (t *statusTool) Name() string {
	return "relay_status"
}

func (t *statusTool) Description() string {
	return "Relay diagnostics: mailbox occupancy, outstanding waiters, dropped results, uptime"
}

func (t *statusTool) Schema() map[string]interface{} {
	return dispatch.BaseToolSchema(map[string]interface{}{}, nil)
}

func (t *statusTool) Execute(ctx context.Context, args map[string]interface{}, exec *dispatch.ExecutionContext) (map[string]interface{}, error) {
	return t.relay.Status(), nil
}
