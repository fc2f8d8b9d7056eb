package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// Entry is one record accepted by a log sink: free-form level and message,
// optionally tagged with the tool that produced it.
type Entry struct {
	Time     time.Time              `json:"time"`
	Level    string                 `json:"level"`
	Message  string                 `json:"message"`
	Tool     string                 `json:"tool,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// EntryFilter selects entries on retrieval. Zero values match everything.
type EntryFilter struct {
	// Level matches entries with this level, case-insensitively.
	Level string

	// Tool is a glob pattern matched against the entry's tool tag
	// (e.g. "cookie_*").
	Tool string

	// Limit caps the number of returned entries, newest last. 0 means all.
	Limit int
}

// Sink collects log entries posted by callers and the executor. It is a
// diagnostic collaborator, not part of relay correctness.
type Sink interface {
	Append(e Entry)
	Filter(f EntryFilter) ([]Entry, error)
}

// MemorySink is a bounded in-memory Sink. When full, the oldest entries are
// evicted.
type MemorySink struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// DefaultSinkCapacity bounds the in-memory sink when no capacity is given.
const DefaultSinkCapacity = 1000

// NewMemorySink creates a sink holding at most capacity entries.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = DefaultSinkCapacity
	}
	return &MemorySink{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
	}
}

// Append stores an entry, stamping its time if unset.
func (s *MemorySink) Append(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Level == "" {
		e.Level = "info"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.capacity {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, e)
}

// Filter returns stored entries matching f, oldest first.
func (s *MemorySink) Filter(f EntryFilter) ([]Entry, error) {
	var toolGlob glob.Glob
	if f.Tool != "" {
		g, err := glob.Compile(f.Tool)
		if err != nil {
			return nil, fmt.Errorf("invalid tool pattern %q: %w", f.Tool, err)
		}
		toolGlob = g
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if f.Level != "" && !strings.EqualFold(e.Level, f.Level) {
			continue
		}
		if toolGlob != nil && !toolGlob.Match(e.Tool) {
			continue
		}
		matched = append(matched, e)
	}

	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[len(matched)-f.Limit:]
	}
	return matched, nil
}

// Len returns the number of stored entries.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
