package models

import "time"

// PromptComplexity buckets a prompt by estimated token volume
type PromptComplexity string

const (
	ComplexitySimple   PromptComplexity = "simple"
	ComplexityStandard PromptComplexity = "standard"
	ComplexityComplex  PromptComplexity = "complex"
	ComplexityAdvanced PromptComplexity = "advanced"
)

// Task types recognized by the prompt analyzer
const (
	TaskTypeCodeGeneration  = "code_generation"
	TaskTypeTranslation     = "translation"
	TaskTypeSummarization   = "summarization"
	TaskTypeAnalysis        = "analysis"
	TaskTypeCreativeWriting = "creative_writing"
	TaskTypeQA              = "qa"
	TaskTypeGeneral         = "general"
)

// PromptAnalysis is the analyzer's read of an incoming conversation
type PromptAnalysis struct {
	TokenEstimate   int              `json:"token_estimate"`
	Complexity      PromptComplexity `json:"complexity"`
	TaskType        string           `json:"task_type"`
	HasInstructions bool             `json:"has_instructions"`
	MessageCount    int              `json:"message_count"`
	TotalChars      int              `json:"total_chars"`
	Preview         string           `json:"preview"`
}

// Candidate pairs a model with its provider after filtering
type Candidate struct {
	Model    *ModelConfig    `json:"model"`
	Provider *ProviderConfig `json:"provider"`
}

// SubScores holds the five weighted components of a candidate score
type SubScores struct {
	Cost       float64 `json:"cost"`
	Complexity float64 `json:"complexity"`
	Context    float64 `json:"context"`
	Priority   float64 `json:"priority"`
	Load       float64 `json:"load"`
}

// ScoredCandidate is a candidate with its computed scores and reasoning
type ScoredCandidate struct {
	ModelName     string          `json:"model"`
	ProviderName  string          `json:"provider"`
	Model         *ModelConfig    `json:"-"`
	Provider      *ProviderConfig `json:"-"`
	Scores        SubScores       `json:"scores"`
	FinalScore    float64         `json:"final_score"`
	EstimatedCost float64         `json:"estimated_cost"`
	Reasoning     []string        `json:"reasoning"`
}

// RankedAlternative is one entry of the selection's candidate ranking
type RankedAlternative struct {
	Rank             int     `json:"rank"`
	Model            string  `json:"model"`
	Provider         string  `json:"provider"`
	Score            float64 `json:"score"`
	EstimatedCost    float64 `json:"estimated_cost"`
	ReasoningSummary string  `json:"reasoning_summary"`
}

// ModelSelection is the routing decision returned to callers
type ModelSelection struct {
	Model         string              `json:"model"`
	Provider      string              `json:"provider"`
	Score         float64             `json:"score"`
	EstimatedCost float64             `json:"estimated_cost"`
	Reasoning     []string            `json:"reasoning"`
	IsDefault     bool                `json:"is_default"`
	Alternatives  []RankedAlternative `json:"all_candidates,omitempty"`
}

// DecisionStats aggregates decision engine counters
type DecisionStats struct {
	TotalDecisions      int64      `json:"total_decisions"`
	SuccessfulDecisions int64      `json:"successful_decisions"`
	FallbackDecisions   int64      `json:"fallback_decisions"`
	AvgDecisionTime     float64    `json:"avg_decision_time"`
	LastDecisionTime    *time.Time `json:"last_decision_time,omitempty"`
}

// DetailedProviderLoad is the uncached per-provider load breakdown
type DetailedProviderLoad struct {
	RequestsLastHour     int       `json:"requests_last_hour"`
	MaxRequestsPerMinute int       `json:"max_requests_per_minute"`
	CurrentRPM           float64   `json:"current_rpm"`
	LoadPercentage       float64   `json:"load_percentage"`
	AvgProcessingTimeMs  float64   `json:"avg_processing_time_ms"`
	LastUpdated          time.Time `json:"last_updated"`
}

// ProviderRequestCount is one load aggregation row from the requests table
type ProviderRequestCount struct {
	Provider             string
	RequestsLastHour     int
	MaxRequestsPerMinute int
}

// ProviderRequestStats extends the count with timing for detailed views
type ProviderRequestStats struct {
	ProviderRequestCount
	AvgProcessingTimeMs float64
}
