// Package config provides configuration loading for syllabusd.
//
// Configuration is read from an optional YAML file and overridden by
// environment variables. Defaults come from Default.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/syllabusd/internal/secrets"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Oracle provider names.
const (
	ProviderDisabled  = "disabled"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config holds the complete syllabusd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Extraction    ExtractionConfig    `koanf:"extraction"`
	Oracle        OracleConfig        `koanf:"oracle"`
	Publish       PublishConfig       `koanf:"publish"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// MaxBodyKB caps POST /api/v1/extract bodies.
	MaxBodyKB int `koanf:"max_body_kb"`
}

// ExtractionConfig holds segmentation, concurrency and fallback settings.
type ExtractionConfig struct {
	WindowBefore           int      `koanf:"window_before"`
	WindowAfter            int      `koanf:"window_after"`
	MaxConcurrency         int      `koanf:"max_concurrency"`
	SnippetTimeout         Duration `koanf:"snippet_timeout"`
	FallbackMaxLines       int      `koanf:"fallback_max_lines"`
	FallbackLookahead      int      `koanf:"fallback_lookahead"`
	FallbackEstimatedHours int      `koanf:"fallback_estimated_hours"`
}

// OracleConfig selects and tunes the classification oracle.
type OracleConfig struct {
	Provider      string   `koanf:"provider"`
	Model         string   `koanf:"model"`
	APIKey        Secret   `koanf:"api_key"`
	BaseURL       string   `koanf:"base_url"`
	MaxTokens     int      `koanf:"max_tokens"`
	Timeout       Duration `koanf:"timeout"`
	MaxRetries    int      `koanf:"max_retries"`
	RatePerMinute int      `koanf:"rate_per_minute"`
	Burst         int      `koanf:"burst"`
	// SecretAllowlist holds regexes for text that must never be masked
	// before a snippet leaves the process.
	SecretAllowlist []string `koanf:"secret_allowlist"`
}

// Enabled reports whether a provider other than "disabled" is selected.
func (o OracleConfig) Enabled() bool {
	return o.Provider != "" && o.Provider != ProviderDisabled
}

// PublishConfig controls the NATS hand-off of extracted items.
type PublishConfig struct {
	// NATSURL empty disables publishing.
	NATSURL       string   `koanf:"nats_url"`
	SubjectPrefix string   `koanf:"subject_prefix"`
	Timeout       Duration `koanf:"timeout"`
}

// Enabled reports whether a NATS URL is configured.
func (p PublishConfig) Enabled() bool {
	return p.NATSURL != ""
}

// ObservabilityConfig holds logging and OpenTelemetry settings.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	OTLPProtocol    string  `koanf:"otlp_protocol"`
	Insecure        bool    `koanf:"insecure"`
	SamplingRate    float64 `koanf:"sampling_rate"`
	LogLevel        string  `koanf:"log_level"`
	LogFormat       string  `koanf:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
			MaxBodyKB:       1024,
		},
		Extraction: ExtractionConfig{
			WindowBefore:           1,
			WindowAfter:            3,
			MaxConcurrency:         4,
			SnippetTimeout:         Duration(90 * time.Second),
			FallbackMaxLines:       50,
			FallbackLookahead:      2,
			FallbackEstimatedHours: 5,
		},
		Oracle: OracleConfig{
			Provider:      ProviderDisabled,
			Timeout:       Duration(60 * time.Second),
			MaxRetries:    3,
			RatePerMinute: 50,
			Burst:         5,
		},
		Publish: PublishConfig{
			SubjectPrefix: "syllabus.items",
			Timeout:       Duration(5 * time.Second),
		},
		Observability: ObservabilityConfig{
			ServiceName:  "syllabusd",
			OTLPEndpoint: "localhost:4317",
			OTLPProtocol: "grpc",
			Insecure:     true,
			SamplingRate: 1.0,
			LogLevel:     "info",
			LogFormat:    "json",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d (must be 1-65535)", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}
	if c.Server.MaxBodyKB <= 0 {
		return fmt.Errorf("%w: server max_body_kb must be positive", ErrInvalidConfig)
	}

	e := c.Extraction
	if e.WindowBefore < 0 || e.WindowAfter < 0 {
		return fmt.Errorf("%w: snippet window radii cannot be negative", ErrInvalidConfig)
	}
	if e.MaxConcurrency < 1 {
		return fmt.Errorf("%w: extraction max_concurrency must be at least 1", ErrInvalidConfig)
	}
	if e.SnippetTimeout.Duration() <= 0 {
		return fmt.Errorf("%w: extraction snippet_timeout must be positive", ErrInvalidConfig)
	}
	if e.FallbackMaxLines < 1 || e.FallbackLookahead < 0 {
		return fmt.Errorf("%w: fallback_max_lines must be >= 1 and fallback_lookahead >= 0", ErrInvalidConfig)
	}

	if err := c.Oracle.validate(); err != nil {
		return err
	}

	if c.Publish.Enabled() {
		u, err := url.Parse(c.Publish.NATSURL)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("%w: publish nats_url %q is not a URL", ErrInvalidConfig, c.Publish.NATSURL)
		}
		if strings.TrimSpace(c.Publish.SubjectPrefix) == "" {
			return fmt.Errorf("%w: publish subject_prefix is required", ErrInvalidConfig)
		}
	}

	o := c.Observability
	if o.EnableTelemetry && o.ServiceName == "" {
		return fmt.Errorf("%w: service name required when telemetry is enabled", ErrInvalidConfig)
	}
	if o.OTLPProtocol != "grpc" && o.OTLPProtocol != "http" {
		return fmt.Errorf("%w: otlp_protocol must be grpc or http, got %q", ErrInvalidConfig, o.OTLPProtocol)
	}
	if o.LogFormat != "json" && o.LogFormat != "console" {
		return fmt.Errorf("%w: log_format must be json or console, got %q", ErrInvalidConfig, o.LogFormat)
	}
	return nil
}

func (o OracleConfig) validate() error {
	if err := (secrets.Config{Allowlist: o.SecretAllowlist}).Validate(); err != nil {
		return fmt.Errorf("%w: oracle secret_allowlist: %v", ErrInvalidConfig, err)
	}
	switch o.Provider {
	case "", ProviderDisabled:
		return nil
	case ProviderOpenAI, ProviderAnthropic:
		if !o.APIKey.IsSet() {
			return fmt.Errorf("%w: oracle provider %s requires api_key", ErrInvalidConfig, o.Provider)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("%w: unknown oracle provider %q", ErrInvalidConfig, o.Provider)
	}
	if o.Timeout.Duration() <= 0 {
		return fmt.Errorf("%w: oracle timeout must be positive", ErrInvalidConfig)
	}
	if o.RatePerMinute < 0 || o.Burst < 0 || o.MaxRetries < 0 {
		return fmt.Errorf("%w: oracle rate, burst and retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}
