package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider names accepted by NewCompleter.
const (
	ProviderDisabled  = "disabled"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ProviderConfig holds oracle transport configuration.
type ProviderConfig struct {
	Provider      string        `json:"provider"`
	Model         string        `json:"model,omitempty"`
	APIKey        string        `json:"-"`
	BaseURL       string        `json:"base_url,omitempty"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	MaxRetries    int           `json:"max_retries,omitempty"`
	BaseBackoff   time.Duration `json:"base_backoff,omitempty"`
	RatePerMinute float64       `json:"rate_per_minute,omitempty"`
	Burst         int           `json:"burst,omitempty"`
}

// NewCompleter creates a Completer for the configured provider. An empty or
// "disabled" provider returns ErrOracleNotConfigured.
func NewCompleter(cfg ProviderConfig) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderDisabled:
		return nil, ErrOracleNotConfigured
	case ProviderAnthropic:
		c, err := newAnthropicCompleter(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOpenAI:
		c, err := newOpenAICompleter(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOllama:
		c, err := newLangchainCompleter(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, system, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// Available returns true for a non-nil function.
func (f CompleterFunc) Available() bool {
	return f != nil
}

// Ensure interfaces are implemented.
var _ Completer = CompleterFunc(nil)
