package extraction

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/syllabusd/internal/config"
	"github.com/fyrsmithlabs/syllabusd/internal/secrets"
	"github.com/fyrsmithlabs/syllabusd/internal/snippet"
)

// ProviderConfigFrom maps the oracle config section onto ProviderConfig.
func ProviderConfigFrom(o config.OracleConfig) ProviderConfig {
	return ProviderConfig{
		Provider:      o.Provider,
		Model:         o.Model,
		APIKey:        o.APIKey.Value(),
		BaseURL:       o.BaseURL,
		MaxTokens:     o.MaxTokens,
		Timeout:       o.Timeout.Duration(),
		MaxRetries:    o.MaxRetries,
		RatePerMinute: float64(o.RatePerMinute),
		Burst:         o.Burst,
	}
}

// PipelineConfigFrom maps the extraction config section onto PipelineConfig.
// The keyword map is always the default one.
func PipelineConfigFrom(e config.ExtractionConfig) PipelineConfig {
	cfg := DefaultPipelineConfig()
	cfg.Window = snippet.Options{Before: e.WindowBefore, After: e.WindowAfter}
	cfg.MaxConcurrency = e.MaxConcurrency
	cfg.SnippetTimeout = e.SnippetTimeout.Duration()
	cfg.Fallback.MaxLines = e.FallbackMaxLines
	cfg.Fallback.Lookahead = e.FallbackLookahead
	cfg.Fallback.EstimatedHours = e.FallbackEstimatedHours
	return cfg
}

// NewOracle builds the Adapter for the oracle config section, scrubbing
// snippets with a detector that honors the section's secret allowlist. It
// returns nil without error when no provider is configured.
func NewOracle(o config.OracleConfig) (*Adapter, error) {
	completer, err := NewCompleter(ProviderConfigFrom(o))
	if errors.Is(err, ErrOracleNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	scrubber, err := secrets.New(secrets.Config{Allowlist: o.SecretAllowlist})
	if err != nil {
		return nil, fmt.Errorf("secret scrubber: %w", err)
	}
	return NewAdapter(completer, WithScrubber(scrubber)), nil
}
