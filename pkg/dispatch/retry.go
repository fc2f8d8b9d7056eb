package dispatch

import (
	"context"
	"fmt"
	"time"
)

// Retry wraps a tool and re-invokes it up to a fixed number of attempts
// with a delay between them. Retry lives at the tool level: the relay
// itself never retries, since a timed-out command is an unknown outcome
// rather than a definite failure.
type Retry struct {
	tool     Tool
	attempts int
	delay    time.Duration
}

// WithRetry wraps t so a failed execution is retried up to attempts times
// total, sleeping delay between attempts. Attempts below 1 are treated as 1.
func WithRetry(t Tool, attempts int, delay time.Duration) *Retry {
	if attempts < 1 {
		attempts = 1
	}
	return &Retry{
		tool:     t,
		attempts: attempts,
		delay:    delay,
	}
}

// Name returns the wrapped tool's name.
func (r *Retry) Name() string {
	return r.tool.Name()
}

// Description returns the wrapped tool's description.
func (r *Retry) Description() string {
	return r.tool.Description()
}

// Schema returns the wrapped tool's schema.
func (r *Retry) Schema() map[string]interface{} {
	return r.tool.Schema()
}

// RequiresContext passes through the wrapped tool's context requirement.
func (r *Retry) RequiresContext() bool {
	if cr, ok := r.tool.(ContextRequired); ok {
		return cr.RequiresContext()
	}
	return false
}

// Execute runs the wrapped tool, retrying on error. The context is honored
// between attempts, so a cancelled caller stops the retry loop.
func (r *Retry) Execute(ctx context.Context, args map[string]interface{}, exec *ExecutionContext) (map[string]interface{}, error) {
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		payload, err := r.tool.Execute(ctx, args, exec)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if attempt == r.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.delay):
		}
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", r.tool.Name(), r.attempts, lastErr)
}
