package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Providers supported by the client.
const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderOllama     = "ollama"
)

// Config identifies the provider and model for a completion call.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// CallOptions configures a single completion call.
type CallOptions struct {
	Temperature float64       // Default: 0.2
	MaxTokens   int           // Default: 4096
	Timeout     time.Duration // Default: 30s
}

// DefaultCallOptions returns the gateway defaults for completion calls.
func DefaultCallOptions() CallOptions {
	return CallOptions{
		Temperature: 0.2,
		MaxTokens:   4096,
		Timeout:     30 * time.Second,
	}
}

// CallResult holds the text response and token usage of a call.
type CallResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Client makes text-completion calls against an LLM provider API.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
}

// NewClient creates a completion client. If httpClient is nil a default
// client is used; per-call timeouts come from CallOptions.
func NewClient(logger *slog.Logger, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{logger: logger, httpClient: httpClient}
}

// Complete sends (systemPrompt, userPrompt) to the configured provider
// and returns the raw text response with token usage. The context
// governs cancellation; opts.Timeout bounds the single attempt.
func (c *Client) Complete(ctx context.Context, cfg Config, systemPrompt, userPrompt string, opts CallOptions) (*CallResult, error) {
	if cfg.APIKey == "" && cfg.Provider != ProviderOllama {
		return nil, fmt.Errorf("no API key available for provider %s", cfg.Provider)
	}

	if opts.Temperature == 0 {
		opts.Temperature = 0.2
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	jsonBody, err := json.Marshal(c.buildRequestBody(cfg, systemPrompt, userPrompt, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := c.apiURL(cfg)

	if c.logger != nil {
		c.logger.Debug("making LLM API request",
			"provider", cfg.Provider,
			"model", cfg.Model,
			"api_url", apiURL,
			"prompt_length", len(systemPrompt)+len(userPrompt),
			"max_tokens", opts.MaxTokens,
		)
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req, cfg)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("LLM API request failed", "provider", cfg.Provider, "error", err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if c.logger != nil {
			c.logger.Error("LLM API error",
				"provider", cfg.Provider,
				"status_code", resp.StatusCode,
				"response_length", len(body),
			)
		}
		return nil, &APIStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return c.parseResponse(cfg.Provider, body)
}

// buildRequestBody composes the provider-specific request payload.
// Anthropic takes the system prompt as a top-level field; OpenAI-style
// APIs take it as a leading system message.
func (c *Client) buildRequestBody(cfg Config, systemPrompt, userPrompt string, opts CallOptions) map[string]any {
	if cfg.Provider == ProviderAnthropic {
		return map[string]any{
			"model":       cfg.Model,
			"system":      systemPrompt,
			"messages":    []map[string]string{{"role": "user", "content": userPrompt}},
			"temperature": opts.Temperature,
			"max_tokens":  opts.MaxTokens,
		}
	}
	return map[string]any{
		"model": cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
	}
}

// apiURL returns the chat endpoint for the provider. BaseURL overrides
// the default host when set (test servers, proxies, ollama).
func (c *Client) apiURL(cfg Config) string {
	if cfg.BaseURL != "" {
		if cfg.Provider == ProviderAnthropic {
			return cfg.BaseURL + "/v1/messages"
		}
		if cfg.Provider == ProviderOllama {
			return cfg.BaseURL + "/api/chat"
		}
		return cfg.BaseURL + "/v1/chat/completions"
	}
	switch cfg.Provider {
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1/chat/completions"
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1/messages"
	case ProviderOpenAI:
		return "https://api.openai.com/v1/chat/completions"
	case ProviderOllama:
		return "http://localhost:11434/api/chat"
	default:
		return "https://openrouter.ai/api/v1/chat/completions"
	}
}

// setAuthHeaders sets provider-appropriate authentication headers.
func (c *Client) setAuthHeaders(req *http.Request, cfg Config) {
	switch cfg.Provider {
	case ProviderAnthropic:
		req.Header.Set("x-api-key", cfg.APIKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	case ProviderOllama:
		// No auth needed.
	default:
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
}

// parseResponse extracts the text and token usage from the provider's
// response format.
func (c *Client) parseResponse(provider string, body []byte) (*CallResult, error) {
	switch provider {
	case ProviderAnthropic:
		var resp struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode Anthropic response: %w", err)
		}
		if len(resp.Content) == 0 {
			return nil, fmt.Errorf("empty response from LLM")
		}
		return &CallResult{
			Content:      resp.Content[0].Text,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}, nil

	case ProviderOllama:
		var resp struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			PromptEvalCount int `json:"prompt_eval_count"`
			EvalCount       int `json:"eval_count"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode Ollama response: %w", err)
		}
		return &CallResult{
			Content:      resp.Message.Content,
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
		}, nil

	default: // OpenAI-compatible
		var resp struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			Usage struct {
				PromptTokens     int `json:"prompt_tokens"`
				CompletionTokens int `json:"completion_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode OpenAI response: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty response from LLM")
		}
		return &CallResult{
			Content:      resp.Choices[0].Message.Content,
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}, nil
	}
}
