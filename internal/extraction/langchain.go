package extraction

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434/v1"
	defaultOllamaModel   = "llama3.1"
	// ollamaPlaceholderToken satisfies langchaingo's token check; local
	// servers ignore it.
	ollamaPlaceholderToken = "ollama"
)

// langchainCompleter implements Completer over any OpenAI-compatible
// endpoint through langchaingo. It backs the "ollama" provider.
type langchainCompleter struct {
	model llms.Model
	name  string
	retry retrier
}

func newLangchainCompleter(cfg ProviderConfig) (*langchainCompleter, error) {
	token := cfg.APIKey
	if token == "" {
		token = ollamaPlaceholderToken
	}
	modelName := orDefault(cfg.Model, defaultOllamaModel)

	llm, err := openai.New(
		openai.WithBaseURL(orDefault(cfg.BaseURL, defaultOllamaBaseURL)),
		openai.WithModel(modelName),
		openai.WithToken(token),
	)
	if err != nil {
		return nil, fmt.Errorf("creating langchain client: %w", err)
	}

	return &langchainCompleter{
		model: llm,
		name:  modelName,
		retry: newRetrier(cfg),
	}, nil
}

// Complete sends a system and a human message at temperature 0.
func (l *langchainCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}
	return l.retry.do(ctx, func(ctx context.Context) (string, error) {
		resp, err := l.model.GenerateContent(ctx, msgs, llms.WithTemperature(0))
		if err != nil {
			// langchaingo does not expose status codes; treat every
			// transport failure as transient.
			return "", &retryableError{err: fmt.Errorf("%s completion failed: %w", l.name, err)}
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty response from %s", l.name)
		}
		return resp.Choices[0].Content, nil
	})
}

// Available returns true once the client is built.
func (l *langchainCompleter) Available() bool {
	return l.model != nil
}

var _ Completer = (*langchainCompleter)(nil)
