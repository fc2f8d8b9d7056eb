// Package nativemsg implements the browser native messaging framing: every
// message is a 4-byte little-endian unsigned length followed by that many
// bytes of UTF-8 JSON. A Codec frames decoded JSON maps over an arbitrary
// reader/writer pair, typically the stdin/stdout of a host process the
// browser launched.
package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// MaxReadSize caps an incoming message. Browsers send hosts messages of
	// up to 64 MB.
	MaxReadSize = 64 << 20

	// MaxWriteSize caps an outgoing message. Browsers refuse host messages
	// over 1 MB.
	MaxWriteSize = 1 << 20
)

// ErrMessageTooLarge reports a message exceeding the protocol size limits.
var ErrMessageTooLarge = errors.New("message exceeds size limit")

// Codec reads and writes length-prefixed JSON messages. Reads must come
// from a single goroutine; writes are serialized internally so a response
// and a log line cannot interleave their frames.
type Codec struct {
	r   io.Reader
	w   io.Writer
	wmu sync.Mutex
}

// NewCodec wraps a reader/writer pair in the native messaging framing.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	return &Codec{r: r, w: w}
}

// Read returns the next message. A clean end of stream is io.EOF; a stream
// cut mid-message or carrying an oversized or malformed frame is an error,
// and no later message boundary can be trusted after one.
func (c *Codec) Read() (map[string]interface{}, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxReadSize {
		return nil, fmt.Errorf("%w: %d byte frame", ErrMessageTooLarge, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}

	var msg map[string]interface{}
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("invalid message json: %w", err)
	}
	return msg, nil
}

// Write frames and sends one message.
func (c *Codec) Write(msg interface{}) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if len(body) > MaxWriteSize {
		return fmt.Errorf("%w: %d byte message", ErrMessageTooLarge, len(body))
	}

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(body)))

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write message header: %w", err)
	}
	if _, err := c.w.Write(body); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	return nil
}
