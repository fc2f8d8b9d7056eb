package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:8766", cfg.Addr)
	assert.Equal(t, Duration(30*time.Second), cfg.CommandTimeout)
	assert.Equal(t, Duration(20*time.Second), cfg.BatchStepTimeout)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, "*", cfg.AllowedOrigin)
	assert.Empty(t, cfg.Tools.Allowed, "default permits every tool")
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	data := `
addr: "127.0.0.1:9999"
command_timeout: 5s
tools:
  allowed:
    - "cookie_*"
    - "navigate"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Addr)
	assert.Equal(t, Duration(5*time.Second), cfg.CommandTimeout)
	// Unset fields keep their defaults.
	assert.Equal(t, Duration(20*time.Second), cfg.BatchStepTimeout)
	assert.Equal(t, []string{"cookie_*", "navigate"}, cfg.Tools.Allowed)
}

func TestDurationYAMLForms(t *testing.T) {
	write := func(t *testing.T, data string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "relay.yaml")
		require.NoError(t, os.WriteFile(path, []byte(data), 0600))
		return path
	}

	t.Run("bare numbers are seconds", func(t *testing.T) {
		cfg, err := Load(write(t, "command_timeout: 45\n"))
		require.NoError(t, err)
		assert.Equal(t, Duration(45*time.Second), cfg.CommandTimeout)
	})

	t.Run("compound duration strings", func(t *testing.T) {
		cfg, err := Load(write(t, "batch_step_timeout: 1m30s\n"))
		require.NoError(t, err)
		assert.Equal(t, Duration(90*time.Second), cfg.BatchStepTimeout)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := Load(write(t, "command_timeout: soon\n"))
		assert.Error(t, err)
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateAppliesDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Default().Addr, cfg.Addr)
	assert.Equal(t, Default().CommandTimeout, cfg.CommandTimeout)
	assert.Equal(t, Default().Logging.SinkCapacity, cfg.Logging.SinkCapacity)
}

func TestValidateRejectsBadGlob(t *testing.T) {
	cfg := Default()
	cfg.Tools.Allowed = []string{"[bad"}

	assert.Error(t, cfg.Validate())
}

func TestCompileAllowlist(t *testing.T) {
	cfg := Default()
	cfg.Tools.Allowed = []string{"cookie_*", "navigate"}

	globs, err := cfg.CompileAllowlist()
	require.NoError(t, err)
	require.Len(t, globs, 2)

	assert.True(t, globs[0].Match("cookie_export"))
	assert.False(t, globs[0].Match("navigate"))
	assert.True(t, globs[1].Match("navigate"))

	t.Run("empty allowlist compiles to nil", func(t *testing.T) {
		cfg := Default()
		globs, err := cfg.CompileAllowlist()
		require.NoError(t, err)
		assert.Nil(t, globs)
	})
}
