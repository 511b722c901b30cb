package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// RequestStatus represents the lifecycle state of a persisted request
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusFailed    RequestStatus = "failed"
)

// RequestRecord represents one routed request in the requests table.
// Load estimation aggregates over these rows, so every completion attempt
// that reaches a provider is persisted.
type RequestRecord struct {
	ID               uuid.UUID     `json:"id" db:"request_id"`
	UserID           *uuid.UUID    `json:"user_id,omitempty" db:"user_id"`
	ModelID          uuid.UUID     `json:"model_id" db:"model_id"`
	PromptHash       string        `json:"prompt_hash" db:"prompt_hash"`
	InputText        string        `json:"input_text" db:"input_text"`
	InputTokens      *int          `json:"input_tokens,omitempty" db:"input_tokens"`
	OutputTokens     *int          `json:"output_tokens,omitempty" db:"output_tokens"`
	TotalCost        *float64      `json:"total_cost,omitempty" db:"total_cost"`
	Temperature      *float64      `json:"temperature,omitempty" db:"temperature"`
	MaxTokens        *int          `json:"max_tokens,omitempty" db:"max_tokens"`
	Status           RequestStatus `json:"status" db:"status"`
	ErrorMessage     *string       `json:"error_message,omitempty" db:"error_message"`
	RequestTimestamp time.Time     `json:"request_timestamp" db:"request_timestamp"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	ProcessingTimeMs *int64        `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	ClientIP         *string       `json:"client_ip,omitempty" db:"client_ip"`
	UserAgent        *string       `json:"user_agent,omitempty" db:"user_agent"`
	EndpointCalled   *string       `json:"endpoint_called,omitempty" db:"endpoint_called"`
}

// TableName returns the table name for the RequestRecord model
func (RequestRecord) TableName() string {
	return "requests"
}

// NewRequestRecord creates a pending request row for a routed completion
func NewRequestRecord(modelID uuid.UUID, inputText string) *RequestRecord {
	return &RequestRecord{
		ID:               uuid.New(),
		ModelID:          modelID,
		PromptHash:       HashPrompt(inputText),
		InputText:        inputText,
		Status:           RequestStatusPending,
		RequestTimestamp: time.Now().UTC(),
	}
}

// HashPrompt returns the hex SHA-256 of a prompt for dedup-friendly storage
func HashPrompt(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// MarkCompleted records the provider outcome on a pending row
func (r *RequestRecord) MarkCompleted(inputTokens, outputTokens int, cost float64, processingMs int64) {
	r.Status = RequestStatusCompleted
	r.InputTokens = &inputTokens
	r.OutputTokens = &outputTokens
	r.TotalCost = &cost
	r.ProcessingTimeMs = &processingMs
	now := time.Now().UTC()
	r.CompletedAt = &now
}

// MarkFailed records that no provider produced a completion
func (r *RequestRecord) MarkFailed(errorMessage string, processingMs int64) {
	r.Status = RequestStatusFailed
	r.ErrorMessage = &errorMessage
	r.ProcessingTimeMs = &processingMs
	now := time.Now().UTC()
	r.CompletedAt = &now
}

// SetParameters records the sampling parameters sent to the provider
func (r *RequestRecord) SetParameters(temperature *float64, maxTokens *int) {
	r.Temperature = temperature
	r.MaxTokens = maxTokens
}

// SetClientMetadata records where the request came from
func (r *RequestRecord) SetClientMetadata(clientIP, userAgent, endpoint string) {
	if clientIP != "" {
		r.ClientIP = &clientIP
	}
	if userAgent != "" {
		r.UserAgent = &userAgent
	}
	if endpoint != "" {
		r.EndpointCalled = &endpoint
	}
}
