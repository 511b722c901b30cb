package models

import (
	"time"

	"github.com/google/uuid"
)

// Catalog defaults applied when a row leaves a column NULL
const (
	DefaultContextWindow        = 8192
	DefaultModelType            = "text"
	DefaultPriority             = 5
	DefaultMaxRequestsPerMinute = 60
	DefaultRetryCount           = 3
	DefaultTimeoutSeconds       = 30
)

// AuthType identifies how a provider authenticates requests
type AuthType string

const (
	AuthTypeBearer AuthType = "bearer"
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeNone   AuthType = "none"
)

// ModelType identifies the broad capability class of a model
type ModelType string

const (
	ModelTypeText ModelType = "text"
	ModelTypeCode ModelType = "code"
	ModelTypeChat ModelType = "chat"
)

// ProviderConfig represents a provider row from the catalog
type ProviderConfig struct {
	ID                   uuid.UUID `json:"id" db:"provider_id"`
	Name                 string    `json:"name" db:"provider_name"`
	BaseURL              string    `json:"base_url" db:"base_url"`
	AuthType             AuthType  `json:"auth_type" db:"auth_type"`
	MaxRequestsPerMinute int       `json:"max_requests_per_minute" db:"max_requests_per_minute"`
	RetryCount           int       `json:"retry_count" db:"retry_count"`
	TimeoutSeconds       int       `json:"timeout_seconds" db:"timeout_seconds"`
	IsActive             bool      `json:"is_active" db:"is_active"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`

	// APIKey comes from the environment, never from the catalog
	APIKey string `json:"-" db:"-"`
}

// Timeout returns the per-request timeout for this provider
func (p *ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return time.Duration(DefaultTimeoutSeconds) * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ModelConfig represents an AI model row from the catalog
type ModelConfig struct {
	ID                      uuid.UUID `json:"id" db:"model_id"`
	ProviderID              uuid.UUID `json:"provider_id" db:"provider_id"`
	Name                    string    `json:"name" db:"model_name"`
	ModelType               ModelType `json:"model_type" db:"model_type"`
	ContextWindow           int       `json:"context_window" db:"context_window"`
	MaxOutputTokens         *int      `json:"max_output_tokens,omitempty" db:"max_output_tokens"`
	SupportsJSONMode        bool      `json:"supports_json_mode" db:"supports_json_mode"`
	SupportsFunctionCalling bool      `json:"supports_function_calling" db:"supports_function_calling"`
	InputPricePer1K         float64   `json:"input_price_per_1k" db:"input_price_per_1k"`
	OutputPricePer1K        float64   `json:"output_price_per_1k" db:"output_price_per_1k"`
	IsAvailable             bool      `json:"is_available" db:"is_available"`
	Priority                int       `json:"priority" db:"priority"`
	CreatedAt               time.Time `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`
}

// AveragePricePer1K returns the mean of input and output prices
func (m *ModelConfig) AveragePricePer1K() float64 {
	return (m.InputPricePer1K + m.OutputPricePer1K) / 2
}

// ModelSummary is the compact listing shape for a catalog model
type ModelSummary struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	ContextWindow int    `json:"context_window"`
	IsAvailable   bool   `json:"is_available"`
}

// ProviderSummary is the compact listing shape for a catalog provider
type ProviderSummary struct {
	Name       string   `json:"name"`
	Models     []string `json:"models"`
	ModelCount int      `json:"model_count"`
	IsActive   bool     `json:"is_active"`
}
