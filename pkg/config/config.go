// Package config holds relay configuration, loadable from a YAML file with
// programmatic defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can write values like "30s".
// Bare numbers are read as seconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" || node.Tag == "!!float" {
		var secs float64
		if err := node.Decode(&secs); err != nil {
			return fmt.Errorf("invalid duration %q", node.Value)
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", node.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the relay server configuration.
type Config struct {
	// Addr is the loopback listen address.
	Addr string `yaml:"addr" json:"addr"`

	// CommandTimeout bounds how long a single-command caller waits for the
	// executor before receiving a timeout result.
	CommandTimeout Duration `yaml:"command_timeout" json:"command_timeout"`

	// BatchStepTimeout bounds each batch step's wait.
	BatchStepTimeout Duration `yaml:"batch_step_timeout" json:"batch_step_timeout"`

	// MaxBodyBytes caps request body size.
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`

	// AllowedOrigin is echoed in CORS headers. Local tooling support.
	AllowedOrigin string `yaml:"allowed_origin" json:"allowed_origin"`

	// Logging configures the component logger and the in-memory log sink.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Tools restricts which tools callers may submit.
	Tools ToolsConfig `yaml:"tools" json:"tools"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	// Enabled turns on the component file logger.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// SinkCapacity bounds the in-memory log sink ring buffer.
	SinkCapacity int `yaml:"sink_capacity" json:"sink_capacity"`
}

// ToolsConfig restricts submittable tools.
type ToolsConfig struct {
	// Allowed is a list of glob patterns (e.g. "cookie_*"). Empty means
	// every tool is permitted.
	Allowed []string `yaml:"allowed" json:"allowed"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Addr:             "127.0.0.1:8766",
		CommandTimeout:   Duration(30 * time.Second),
		BatchStepTimeout: Duration(20 * time.Second),
		MaxBodyBytes:     1 << 20,
		AllowedOrigin:    "*",
		Logging: LoggingConfig{
			Enabled:      true,
			SinkCapacity: 1000,
		},
	}
}

// Load reads a YAML config file and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies defaults for zero values and rejects malformed settings.
func (c *Config) Validate() error {
	def := Default()

	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	if c.BatchStepTimeout <= 0 {
		c.BatchStepTimeout = def.BatchStepTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.AllowedOrigin == "" {
		c.AllowedOrigin = def.AllowedOrigin
	}
	if c.Logging.SinkCapacity <= 0 {
		c.Logging.SinkCapacity = def.Logging.SinkCapacity
	}

	if _, err := c.CompileAllowlist(); err != nil {
		return err
	}
	return nil
}

// CompileAllowlist compiles the tool allowlist patterns. A nil result means
// every tool is permitted.
func (c *Config) CompileAllowlist() ([]glob.Glob, error) {
	if len(c.Tools.Allowed) == 0 {
		return nil, nil
	}

	globs := make([]glob.Glob, 0, len(c.Tools.Allowed))
	for _, pattern := range c.Tools.Allowed {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid tool pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}
