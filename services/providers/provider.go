package providers

import (
	"context"
	"errors"

	"github.com/routelab/ai-gateway/models"
)

// ChatProvider is the capability a model backend must implement to serve
// chat completions. Implementations live in the subpackages (openai, ollama,
// mockai) and are constructed through factories registered on a Registry.
type ChatProvider interface {
	// Name returns the provider name as it appears in the catalog
	// (e.g. "OpenAI", "Ollama", "MockAI").
	Name() string

	// ChatCompletion sends the conversation to the backend and returns the
	// provider-neutral completion. The context carries the per-attempt
	// deadline; implementations must honor cancellation.
	ChatCompletion(ctx context.Context, req *ChatRequest) (*models.ProviderCompletion, error)

	// HealthCheck probes the backend and returns nil when it is reachable.
	HealthCheck(ctx context.Context) error
}

// ChatRequest is the provider-neutral completion request. Model is the
// backend model name as registered in the catalog.
type ChatRequest struct {
	Model       string
	Messages    []models.ChatMessage
	Temperature *float64
	MaxTokens   *int
}

// ProviderError carries structured detail about a failed provider call.
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is a short machine-readable error code
	Code string

	// Message is the human-readable error message
	Message string

	// StatusCode is the HTTP status code, when applicable
	StatusCode int

	// Retryable indicates whether the same request may succeed on retry
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable reports whether err is a provider error marked retryable.
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}
