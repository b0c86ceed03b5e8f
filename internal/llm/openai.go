package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the DashScope OpenAI-compatible endpoint the
// original deployment talks to. Any OpenAI-compatible server works.
const DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// DefaultModel is the model used when none is configured.
const DefaultModel = "qwen-plus"

// OpenAIClient implements Client against an OpenAI-compatible chat
// completions endpoint (DashScope, OpenAI, vLLM, Ollama, ...).
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Option configures the OpenAI-compatible client.
type Option func(*OpenAIClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *OpenAIClient) { o.httpClient = c }
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(o *OpenAIClient) { o.model = model }
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
// An empty baseURL selects the DashScope compatible-mode endpoint.
func NewOpenAIClient(baseURL, apiKey string, opts ...Option) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type oaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *oaiError   `json:"error,omitempty"`
}

type oaiChoice struct {
	Message Message `json:"message"`
}

type oaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete sends a non-streaming chat request and returns the first
// choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	body, err := json.Marshal(oaiRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var oaiErr oaiResponse
		if err := json.NewDecoder(resp.Body).Decode(&oaiErr); err == nil && oaiErr.Error != nil {
			return "", fmt.Errorf("llm: HTTP %d: %s: %s", resp.StatusCode, oaiErr.Error.Type, oaiErr.Error.Message)
		}
		return "", fmt.Errorf("llm: HTTP %d", resp.StatusCode)
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if oaiResp.Error != nil {
		return "", fmt.Errorf("llm: %s: %s", oaiResp.Error.Type, oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 || oaiResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("llm: empty completion response")
	}

	return oaiResp.Choices[0].Message.Content, nil
}
