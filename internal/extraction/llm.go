package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOpenAIModel      = "gpt-4o"
	defaultMaxTokens        = 2048
	defaultTimeout          = 60 * time.Second
	defaultMaxRetries       = 3
	defaultBaseBackoff      = 1 * time.Second
)

// Rate limiter defaults: 50 requests per minute for both APIs.
const (
	defaultRatePerMinute = 50.0
	defaultBurst         = 5
)

// retrier runs one request under the rate limiter with exponential backoff
// on retryable failures.
type retrier struct {
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
}

func newRetrier(cfg ProviderConfig) retrier {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = defaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = defaultBaseBackoff
	}
	return retrier{
		limiter:     rate.NewLimiter(rate.Limit(perMinute/60.0), burst),
		maxRetries:  maxRetries,
		baseBackoff: backoff,
	}
}

func (r retrier) do(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// postJSON sends body to url and classifies the HTTP result. 429, 5xx and
// transport failures come back wrapped in retryableError.
func postJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string) ([]byte, int, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resp.StatusCode, &retryableError{err: fmt.Errorf("rate limited (429)")}
	case resp.StatusCode >= 500:
		return nil, resp.StatusCode, &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(data))}
	}
	return data, resp.StatusCode, nil
}

// anthropicCompleter implements Completer using Anthropic's Messages API.
type anthropicCompleter struct {
	model      string
	apiKey     string `json:"-"`
	baseURL    string
	maxTokens  int
	httpClient *http.Client
	retry      retrier
}

func newAnthropicCompleter(cfg ProviderConfig) (*anthropicCompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}
	return &anthropicCompleter{
		model:      orDefault(cfg.Model, defaultAnthropicModel),
		apiKey:     cfg.APIKey,
		baseURL:    orDefault(cfg.BaseURL, defaultAnthropicBaseURL),
		maxTokens:  orDefaultInt(cfg.MaxTokens, defaultMaxTokens),
		httpClient: &http.Client{Timeout: orDefaultDuration(cfg.Timeout, defaultTimeout)},
		retry:      newRetrier(cfg),
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the prompt at temperature 0.
func (a *anthropicCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := anthropicRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: 0,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}
	return a.retry.do(ctx, func(ctx context.Context) (string, error) {
		return a.doRequest(ctx, req)
	})
}

func (a *anthropicCompleter) doRequest(ctx context.Context, req anthropicRequest) (string, error) {
	body, status, err := postJSON(ctx, a.httpClient, a.baseURL+"/v1/messages", req, map[string]string{
		"X-API-Key":         a.apiKey,
		"Anthropic-Version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		var errResp anthropicError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", status, errResp.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", status, string(body))
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return resp.Content[0].Text, nil
}

// Available returns true if the completer has credentials.
func (a *anthropicCompleter) Available() bool {
	return a.apiKey != ""
}

// openAICompleter implements Completer using OpenAI's Chat Completions API.
type openAICompleter struct {
	model      string
	apiKey     string `json:"-"`
	baseURL    string
	maxTokens  int
	httpClient *http.Client
	retry      retrier
}

func newOpenAICompleter(cfg ProviderConfig) (*openAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}
	return &openAICompleter{
		model:      orDefault(cfg.Model, defaultOpenAIModel),
		apiKey:     cfg.APIKey,
		baseURL:    orDefault(cfg.BaseURL, defaultOpenAIBaseURL),
		maxTokens:  orDefaultInt(cfg.MaxTokens, defaultMaxTokens),
		httpClient: &http.Client{Timeout: orDefaultDuration(cfg.Timeout, defaultTimeout)},
		retry:      newRetrier(cfg),
	}, nil
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends the prompt at temperature 0.
func (o *openAICompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := openAIRequest{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: 0,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}
	return o.retry.do(ctx, func(ctx context.Context) (string, error) {
		return o.doRequest(ctx, req)
	})
}

func (o *openAICompleter) doRequest(ctx context.Context, req openAIRequest) (string, error) {
	body, status, err := postJSON(ctx, o.httpClient, o.baseURL+"/v1/chat/completions", req, map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		var errResp openAIError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", status, errResp.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", status, string(body))
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return resp.Choices[0].Message.Content, nil
}

// Available returns true if the completer has credentials.
func (o *openAICompleter) Available() bool {
	return o.apiKey != ""
}

// retryableError wraps an error to indicate it can be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryableError checks if an error, or anything it wraps, is retryable.
func isRetryableError(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// Ensure interfaces are implemented.
var _ Completer = (*anthropicCompleter)(nil)
var _ Completer = (*openAICompleter)(nil)
