package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services/providers"
)

const (
	defaultBaseURL = "http://localhost:11434"

	// defaultNumPredict caps generation length when the caller does not set one
	defaultNumPredict = 1024

	healthCheckTimeout = 5 * time.Second
)

// Client talks to a local Ollama server. Ollama's generate endpoint takes a
// single prompt string, so chat messages are flattened into role-prefixed
// lines before sending.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Factory builds a Client from catalog configuration.
func Factory(cfg *models.ProviderConfig, logger *zap.Logger) (providers.ChatProvider, error) {
	return New(cfg, logger), nil
}

// New creates a client for the given catalog provider.
func New(cfg *models.ProviderConfig, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger,
	}
}

// Name returns the catalog provider name
func (c *Client) Name() string {
	return c.name
}

// ChatCompletion sends a generate request and maps the reply onto the
// provider-neutral completion. Token counts come from Ollama's eval counters.
func (c *Client) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*models.ProviderCompletion, error) {
	numPredict := defaultNumPredict
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		numPredict = *req.MaxTokens
	}

	payload := generateRequest{
		Model:  req.Model,
		Prompt: flattenMessages(req.Messages),
		Stream: false,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  numPredict,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, providers.NewProviderError(c.name, "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(c.name, "REQUEST_ERROR", "Failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(c.name, "HTTP_ERROR", "Ollama request failed", 0, true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.NewProviderError(c.name, "READ_ERROR", "Failed to read response", resp.StatusCode, false, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providers.NewProviderError(c.name, "API_ERROR",
			fmt.Sprintf("Ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			resp.StatusCode, resp.StatusCode >= 500, nil)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, providers.NewProviderError(c.name, "UNMARSHAL_ERROR", "Failed to unmarshal response", resp.StatusCode, false, err)
	}

	return &models.ProviderCompletion{
		Content:          genResp.Response,
		Model:            req.Model,
		PromptTokens:     genResp.PromptEvalCount,
		CompletionTokens: genResp.EvalCount,
		FinishReason:     "stop",
	}, nil
}

// ListModels returns the model names the Ollama server has pulled.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to list ollama models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags endpoint returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags response: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HealthCheck probes the tags endpoint under a short deadline.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return providers.NewProviderError(c.name, "REQUEST_ERROR", "Failed to create request", 0, false, err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return providers.NewProviderError(c.name, "HTTP_ERROR", "Health check failed", 0, true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return providers.NewProviderError(c.name, "UNHEALTHY", fmt.Sprintf("Health check returned status %d", resp.StatusCode), resp.StatusCode, resp.StatusCode >= 500, nil)
	}

	return nil
}

// flattenMessages converts chat messages into the role-prefixed prompt
// format the generate endpoint expects.
func flattenMessages(messages []models.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			lines = append(lines, "System: "+msg.Content)
		case models.RoleUser:
			lines = append(lines, "User: "+msg.Content)
		case models.RoleAssistant:
			lines = append(lines, "Assistant: "+msg.Content)
		}
	}
	return strings.Join(lines, "\n")
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
