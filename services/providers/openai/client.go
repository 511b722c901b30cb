package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services"
	"github.com/routelab/ai-gateway/services/providers"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultRetryDelay = 1 * time.Second
)

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// Factory builds a Client from catalog configuration. Register it on a
// providers.Registry under the catalog provider name.
func Factory(cfg *models.ProviderConfig, logger *zap.Logger) (providers.ChatProvider, error) {
	return New(cfg, logger), nil
}

// New creates a client for the given catalog provider. A missing API key is
// tolerated here and reported on first use.
func New(cfg *models.ProviderConfig, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := &Client{
		name:       cfg.Name,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.RetryCount,
		retryDelay: defaultRetryDelay,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger,
	}

	if client.apiKey == "" {
		logger.Warn("OpenAI API key not configured", zap.String("provider", cfg.Name))
	}

	return client
}

// Name returns the catalog provider name
func (c *Client) Name() string {
	return c.name
}

// ChatCompletion performs a chat completion request with retries on
// transport errors, 5xx responses and 429 responses.
func (c *Client) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*models.ProviderCompletion, error) {
	if c.apiKey == "" {
		return nil, providers.NewProviderError(c.name, "NOT_CONFIGURED", "OpenAI API key not configured", 0, false, services.ErrProviderNotConfigured)
	}

	reqBody, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(c.name, "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	var httpResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, providers.NewProviderError(c.name, "CANCELLED", "Request cancelled", 0, false, ctx.Err())
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
			c.logger.Warn("retrying chat completion",
				zap.String("provider", c.name),
				zap.Int("attempt", attempt))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
		if err != nil {
			return nil, providers.NewProviderError(c.name, "REQUEST_ERROR", "Failed to create request", 0, false, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		httpResp, lastErr = c.httpClient.Do(httpReq)
		if lastErr == nil && httpResp.StatusCode < 500 && httpResp.StatusCode != http.StatusTooManyRequests {
			break
		}

		// Keep the last response so the upstream error can be reported.
		if attempt < c.maxRetries && httpResp != nil {
			httpResp.Body.Close()
			httpResp = nil
		}
	}

	if lastErr != nil {
		return nil, providers.NewProviderError(c.name, "HTTP_ERROR", "HTTP request failed", 0, true, lastErr)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(c.name, "READ_ERROR", "Failed to read response", httpResp.StatusCode, false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var openaiResp OpenAIChatResponse
	if err := json.Unmarshal(respBody, &openaiResp); err != nil {
		return nil, providers.NewProviderError(c.name, "UNMARSHAL_ERROR", "Failed to unmarshal response", httpResp.StatusCode, false, err)
	}

	if len(openaiResp.Choices) == 0 {
		return nil, providers.NewProviderError(c.name, "EMPTY_RESPONSE", "Response contained no choices", httpResp.StatusCode, false, nil)
	}

	choice := openaiResp.Choices[0]
	return &models.ProviderCompletion{
		Content:          choice.Message.Content,
		Model:            openaiResp.Model,
		PromptTokens:     openaiResp.Usage.PromptTokens,
		CompletionTokens: openaiResp.Usage.CompletionTokens,
		FinishReason:     choice.FinishReason,
	}, nil
}

// HealthCheck probes the models listing endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.apiKey == "" {
		return providers.NewProviderError(c.name, "NOT_CONFIGURED", "OpenAI API key not configured", 0, false, services.ErrProviderNotConfigured)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return providers.NewProviderError(c.name, "REQUEST_ERROR", "Failed to create request", 0, false, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providers.NewProviderError(c.name, "HTTP_ERROR", "Health check failed", 0, true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return providers.NewProviderError(c.name, "UNHEALTHY", fmt.Sprintf("Health check returned status %d", resp.StatusCode), resp.StatusCode, resp.StatusCode >= 500, nil)
	}

	return nil
}

func (c *Client) buildRequest(req *providers.ChatRequest) *OpenAIChatRequest {
	openaiReq := &OpenAIChatRequest{
		Model:    req.Model,
		Messages: make([]OpenAIMessage, len(req.Messages)),
	}

	for i, msg := range req.Messages {
		openaiReq.Messages[i] = OpenAIMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	openaiReq.Temperature = req.Temperature
	openaiReq.MaxTokens = req.MaxTokens

	return openaiReq
}

// handleErrorResponse maps OpenAI error payloads onto ProviderError.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var errResp OpenAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(c.name, "UNKNOWN_ERROR", string(body), statusCode, statusCode >= 500, nil)
	}

	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	return providers.NewProviderError(
		c.name,
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// OpenAI wire types

type OpenAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenAIChatResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   OpenAIUsage    `json:"usage"`
}

type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type OpenAIErrorResponse struct {
	Error OpenAIError `json:"error"`
}

type OpenAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param"`
	Code    any    `json:"code"`
}
