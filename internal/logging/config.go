// internal/logging/config.go
package logging

import (
	"fmt"
	"regexp"
	"time"

	"github.com/fyrsmithlabs/syllabusd/internal/config"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level     zapcore.Level     `koanf:"level"`
	Format    string            `koanf:"format"`
	Output    OutputConfig      `koanf:"output"`
	Sampling  SamplingConfig    `koanf:"sampling"`
	Caller    bool              `koanf:"caller"`
	Fields    map[string]string `koanf:"fields"`
	Redaction RedactionConfig   `koanf:"redaction"`
}

// OutputConfig controls where logs are written. Stderr wins over Stdout so
// CLI output stays clean.
type OutputConfig struct {
	Stdout bool `koanf:"stdout"`
	Stderr bool `koanf:"stderr"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig controls log volume reduction below Error.
type SamplingConfig struct {
	Enabled    bool            `koanf:"enabled"`
	Tick       config.Duration `koanf:"tick"`
	Initial    int             `koanf:"initial"`
	Thereafter int             `koanf:"thereafter"`
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       config.Duration(time.Second),
			Initial:    100,
			Thereafter: 10,
		},
		Caller: true,
		Fields: map[string]string{
			"service": "syllabusd",
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "api_key",
				"authorization", "bearer", "credential",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
				`sk-[a-zA-Z0-9-]{20,}`,
			},
		},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.Stderr && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout, stderr or otel)")
	}
	if c.Sampling.Enabled && c.Sampling.Tick.Duration() <= 0 {
		return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
	}
	if c.Redaction.Enabled {
		for _, pattern := range c.Redaction.Patterns {
			if len(pattern) > 200 {
				return fmt.Errorf("redaction pattern too long (max 200 chars): %q", pattern)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
