package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySinkAppendAndFilter(t *testing.T) {
	s := NewMemorySink(10)
	s.Append(Entry{Level: "info", Message: "navigated", Tool: "navigate"})
	s.Append(Entry{Level: "error", Message: "click failed", Tool: "click"})
	s.Append(Entry{Level: "info", Message: "cookies exported", Tool: "cookie_export"})
	s.Append(Entry{Level: "info", Message: "cookies imported", Tool: "cookie_import"})

	t.Run("no filter returns everything", func(t *testing.T) {
		entries, err := s.Filter(EntryFilter{})
		require.NoError(t, err)
		assert.Len(t, entries, 4)
	})

	t.Run("level filter is case-insensitive", func(t *testing.T) {
		entries, err := s.Filter(EntryFilter{Level: "ERROR"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "click failed", entries[0].Message)
	})

	t.Run("tool glob filter", func(t *testing.T) {
		entries, err := s.Filter(EntryFilter{Tool: "cookie_*"})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("limit keeps newest", func(t *testing.T) {
		entries, err := s.Filter(EntryFilter{Level: "info", Limit: 1})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "cookies imported", entries[0].Message)
	})

	t.Run("bad glob pattern errors", func(t *testing.T) {
		_, err := s.Filter(EntryFilter{Tool: "[bad"})
		assert.Error(t, err)
	})
}

func TestMemorySinkEvictsOldest(t *testing.T) {
	s := NewMemorySink(3)
	for i := 0; i < 5; i++ {
		s.Append(Entry{Message: fmt.Sprintf("m%d", i)})
	}

	assert.Equal(t, 3, s.Len())

	entries, err := s.Filter(EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "m2", entries[0].Message)
	assert.Equal(t, "m4", entries[2].Message)
}

func TestMemorySinkDefaults(t *testing.T) {
	s := NewMemorySink(0)
	s.Append(Entry{Message: "hello"})

	entries, err := s.Filter(EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0].Level, "level defaults to info")
	assert.False(t, entries[0].Time.IsZero(), "time is stamped on append")
}
