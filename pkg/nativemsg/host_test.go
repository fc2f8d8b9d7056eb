package nativemsg

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameMessages renders msgs in the wire framing, ready to be fed to a
// Host as its input stream.
func frameMessages(t *testing.T, msgs ...map[string]interface{}) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	c := NewCodec(nil, &buf)
	for _, msg := range msgs {
		require.NoError(t, c.Write(msg))
	}
	return &buf
}

// readAllFrames decodes every framed message in buf.
func readAllFrames(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	c := NewCodec(buf, nil)
	var out []map[string]interface{}
	for {
		msg, err := c.Read()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, msg)
	}
}

func TestHostForwardsCommands(t *testing.T) {
	// Stand-in relay: answers every /command with a result echoing the tool.
	var mu sync.Mutex
	var seen []string
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/command", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		tool, _ := body["tool"].(string)
		mu.Lock()
		seen = append(seen, tool)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      body["id"],
			"success": true,
			"result":  map[string]interface{}{"tool": tool},
		})
	}))
	defer relay.Close()

	input := frameMessages(t,
		map[string]interface{}{"id": "c1", "tool": "navigate", "args": map[string]interface{}{"url": "https://example.com"}},
		map[string]interface{}{"id": "c2", "tool": "click"},
	)
	var output bytes.Buffer

	h := NewHost(NewCodec(input, &output), relay.URL, 0, nil)
	require.NoError(t, h.Run(context.Background()), "EOF must end the loop cleanly")

	mu.Lock()
	assert.Equal(t, []string{"navigate", "click"}, seen)
	mu.Unlock()

	responses := readAllFrames(t, &output)
	require.Len(t, responses, 2, "exactly one answer per message")
	assert.Equal(t, "c1", responses[0]["id"])
	assert.Equal(t, true, responses[0]["success"])
	assert.Equal(t, "c2", responses[1]["id"])
}

func TestHostAnswersRelayRejectionsInBand(t *testing.T) {
	// The relay rejects with a 400 and a {success:false} body; the peer
	// must still get a framed answer, not a dropped message.
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "missing required field: tool",
		})
	}))
	defer relay.Close()

	input := frameMessages(t, map[string]interface{}{"args": map[string]interface{}{}})
	var output bytes.Buffer

	h := NewHost(NewCodec(input, &output), relay.URL, 0, nil)
	require.NoError(t, h.Run(context.Background()))

	responses := readAllFrames(t, &output)
	require.Len(t, responses, 1)
	assert.Equal(t, false, responses[0]["success"])
	assert.Contains(t, responses[0]["error"], "tool")
}

func TestHostUnreachableRelayAnsweredInBand(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	relay.Close() // nothing listening anymore

	input := frameMessages(t, map[string]interface{}{"tool": "ping"})
	var output bytes.Buffer

	h := NewHost(NewCodec(input, &output), relay.URL, 0, nil)
	require.NoError(t, h.Run(context.Background()), "a transport failure is per-message, not fatal")

	responses := readAllFrames(t, &output)
	require.Len(t, responses, 1)
	assert.Equal(t, false, responses[0]["success"])
	assert.Contains(t, responses[0]["error"], "relay unreachable")
}

func TestHostFramingErrorIsFatal(t *testing.T) {
	// A garbage header desynchronizes the stream; the loop must stop
	// rather than guess at message boundaries.
	input := bytes.NewBufferString("garbage that is not a frame")
	var output bytes.Buffer

	h := NewHost(NewCodec(input, &output), "http://127.0.0.1:0", 0, nil)
	err := h.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, output.Bytes(), "no answer may be framed for an unreadable message")
}
