package nativemsg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/entrhq/taskrelay/pkg/logging"
)

// defaultForwardTimeout must outlast the relay's own command deadline, so a
// slow executor surfaces as the relay's timeout result rather than a
// transport error here.
const defaultForwardTimeout = 40 * time.Second

// Host bridges a native messaging peer to a running relay. Each incoming
// message is a command submission forwarded to the relay's /command
// endpoint, and the relay's answer is framed back to the peer. Tools that
// can only speak the stdio protocol reach the relay through it.
type Host struct {
	codec    *Codec
	relayURL string
	client   *http.Client
	logger   *logging.Logger
}

// NewHost builds a bridge to the relay at relayURL. A timeout of 0 selects
// a default that outlasts the relay's command deadline. The logger may be
// nil.
func NewHost(codec *Codec, relayURL string, timeout time.Duration, logger *logging.Logger) *Host {
	if timeout <= 0 {
		timeout = defaultForwardTimeout
	}
	return &Host{
		codec:    codec,
		relayURL: relayURL,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Run serves messages until the peer closes its end of the stream or ctx is
// cancelled. Per-message forwarding failures are answered in-band as
// {success:false, error} so the peer always gets exactly one answer per
// message; a framing error is fatal because the stream is desynchronized.
func (h *Host) Run(ctx context.Context) error {
	for {
		msg, err := h.codec.Read()
		if errors.Is(err, io.EOF) {
			h.debugf("peer closed the stream")
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := h.codec.Write(h.forward(ctx, msg)); err != nil {
			return err
		}
	}
}

// forward submits one message to the relay and returns the relay's answer.
// The relay speaks {success:false, error} bodies for its own rejections, so
// the response decodes uniformly whatever the status code.
func (h *Host) forward(ctx context.Context, msg map[string]interface{}) map[string]interface{} {
	body, err := json.Marshal(msg)
	if err != nil {
		return failure(fmt.Errorf("failed to encode command: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.relayURL+"/command", bytes.NewReader(body))
	if err != nil {
		return failure(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.warnf("relay unreachable: %v", err)
		return failure(fmt.Errorf("relay unreachable: %w", err))
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return failure(fmt.Errorf("invalid relay response: %w", err))
	}
	return out
}

func failure(err error) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	}
}

func (h *Host) debugf(format string, v ...interface{}) {
	if h.logger != nil {
		h.logger.Debugf(format, v...)
	}
}

func (h *Host) warnf(format string, v ...interface{}) {
	if h.logger != nil {
		h.logger.Warnf(format, v...)
	}
}
