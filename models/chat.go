package models

import "github.com/google/uuid"

// Message roles accepted on chat requests
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn of a conversation
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ModelAuto asks the gateway to pick the model itself
const ModelAuto = "auto"

// ChatCompletionRequest is the inbound payload for a routed completion.
// Model is optional; empty or "auto" delegates the choice to the decision
// engine, anything else must name a catalog model.
type ChatCompletionRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Temperature *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int          `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
}

// WantsAutoRouting reports whether the decision engine should choose the model
func (r *ChatCompletionRequest) WantsAutoRouting() bool {
	return r.Model == "" || r.Model == ModelAuto
}

// ChatUsage reports token accounting for a completion
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RoutingMetadata explains the decision behind the serving model. Score and
// reasoning describe the primary selection; when a fallback candidate served
// the request the attempt count is greater than one.
type RoutingMetadata struct {
	Score     float64  `json:"score"`
	Reasoning []string `json:"reasoning"`
	IsDefault bool     `json:"is_default"`
	Attempts  int      `json:"attempts"`
}

// ChatCompletionResponse is the outbound payload for a routed completion
type ChatCompletionResponse struct {
	RequestID        uuid.UUID       `json:"request_id"`
	Content          string          `json:"content"`
	Model            string          `json:"model"`
	Provider         string          `json:"provider"`
	Usage            ChatUsage       `json:"usage"`
	Cost             float64         `json:"cost"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	FinishReason     string          `json:"finish_reason,omitempty"`
	Routing          RoutingMetadata `json:"routing"`
}

// ProviderCompletion is the provider-neutral result of one backend call
type ProviderCompletion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
}

// TotalTokens returns the combined token count of the completion
func (c *ProviderCompletion) TotalTokens() int {
	return c.PromptTokens + c.CompletionTokens
}

// ProviderHealth reports one provider's reachability
type ProviderHealth struct {
	Provider  string `json:"provider"`
	Healthy   bool   `json:"healthy"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// RecommendModelRequest asks the decision engine for a routing recommendation
// without executing the completion
type RecommendModelRequest struct {
	Messages    []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Temperature *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int          `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Detailed    bool          `json:"detailed,omitempty"`
}

// RecommendModelResponse carries the selection plus the analysis behind it.
// Candidates is populated only for detailed requests.
type RecommendModelResponse struct {
	Selection            ModelSelection    `json:"selection"`
	Analysis             PromptAnalysis    `json:"analysis"`
	CandidatesConsidered int               `json:"candidates_considered"`
	Candidates           []ScoredCandidate `json:"candidates,omitempty"`
}

// UpdateWeightsRequest replaces the five scoring weights as a group
type UpdateWeightsRequest struct {
	Cost       float64 `json:"cost" validate:"gte=0,lte=1"`
	Complexity float64 `json:"complexity" validate:"gte=0,lte=1"`
	Context    float64 `json:"context" validate:"gte=0,lte=1"`
	Priority   float64 `json:"priority" validate:"gte=0,lte=1"`
	Load       float64 `json:"load" validate:"gte=0,lte=1"`
}

// UpdateThresholdRequest replaces the minimum selection score
type UpdateThresholdRequest struct {
	Threshold float64 `json:"threshold" validate:"gte=0,lte=1"`
}

// UpdateRateLimitRequest replaces a provider's per-minute request ceiling
type UpdateRateLimitRequest struct {
	MaxRequestsPerMinute int `json:"max_requests_per_minute" validate:"required,gt=0"`
}
