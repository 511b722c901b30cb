package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Catalog tests

func TestProviderConfig_Timeout(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		want    time.Duration
	}{
		{"configured timeout", 45, 45 * time.Second},
		{"zero falls back to default", 0, 30 * time.Second},
		{"negative falls back to default", -5, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProviderConfig{TimeoutSeconds: tt.seconds}
			assert.Equal(t, tt.want, p.Timeout())
		})
	}
}

func TestProviderConfig_JSONMarshaling(t *testing.T) {
	p := ProviderConfig{
		ID:       uuid.New(),
		Name:     "OpenAI",
		BaseURL:  "https://api.openai.com/v1",
		AuthType: AuthTypeBearer,
		APIKey:   "sk-secret",
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	// API key never leaves the process
	assert.NotContains(t, string(data), "sk-secret")
	assert.Contains(t, string(data), "https://api.openai.com/v1")
}

func TestModelConfig_AveragePricePer1K(t *testing.T) {
	m := ModelConfig{
		InputPricePer1K:  0.005,
		OutputPricePer1K: 0.015,
	}
	assert.InDelta(t, 0.01, m.AveragePricePer1K(), 1e-9)
}

// Request record tests

func TestNewRequestRecord(t *testing.T) {
	modelID := uuid.New()
	rec := NewRequestRecord(modelID, "hello world")

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, modelID, rec.ModelID)
	assert.Equal(t, "hello world", rec.InputText)
	assert.Equal(t, HashPrompt("hello world"), rec.PromptHash)
	assert.Equal(t, RequestStatusPending, rec.Status)
	assert.False(t, rec.RequestTimestamp.IsZero())
	assert.Nil(t, rec.InputTokens)
	assert.Nil(t, rec.TotalCost)
}

func TestRequestRecord_TableName(t *testing.T) {
	rec := RequestRecord{}
	assert.Equal(t, "requests", rec.TableName())
}

func TestRequestRecord_MarkCompleted(t *testing.T) {
	rec := NewRequestRecord(uuid.New(), "prompt")

	rec.MarkCompleted(120, 80, 0.0042, 350)

	assert.Equal(t, RequestStatusCompleted, rec.Status)
	require.NotNil(t, rec.InputTokens)
	assert.Equal(t, 120, *rec.InputTokens)
	require.NotNil(t, rec.OutputTokens)
	assert.Equal(t, 80, *rec.OutputTokens)
	require.NotNil(t, rec.TotalCost)
	assert.Equal(t, 0.0042, *rec.TotalCost)
	require.NotNil(t, rec.ProcessingTimeMs)
	assert.Equal(t, int64(350), *rec.ProcessingTimeMs)
	require.NotNil(t, rec.CompletedAt)
	assert.Nil(t, rec.ErrorMessage)
}

func TestRequestRecord_MarkFailed(t *testing.T) {
	rec := NewRequestRecord(uuid.New(), "prompt")

	rec.MarkFailed("4 attempts failed: all candidates exhausted", 1200)

	assert.Equal(t, RequestStatusFailed, rec.Status)
	require.NotNil(t, rec.ProcessingTimeMs)
	assert.Equal(t, int64(1200), *rec.ProcessingTimeMs)
	require.NotNil(t, rec.ErrorMessage)
	assert.Equal(t, "4 attempts failed: all candidates exhausted", *rec.ErrorMessage)
	require.NotNil(t, rec.CompletedAt)
	assert.Nil(t, rec.TotalCost)
}

func TestRequestRecord_SetParameters(t *testing.T) {
	rec := NewRequestRecord(uuid.New(), "prompt")
	temp := 0.7
	maxTokens := 512

	rec.SetParameters(&temp, &maxTokens)

	require.NotNil(t, rec.Temperature)
	assert.Equal(t, 0.7, *rec.Temperature)
	require.NotNil(t, rec.MaxTokens)
	assert.Equal(t, 512, *rec.MaxTokens)
}

func TestRequestRecord_SetClientMetadata(t *testing.T) {
	rec := NewRequestRecord(uuid.New(), "prompt")

	rec.SetClientMetadata("10.0.0.1", "curl/8.0", "/api/v1/chat/completions")

	require.NotNil(t, rec.ClientIP)
	assert.Equal(t, "10.0.0.1", *rec.ClientIP)
	require.NotNil(t, rec.UserAgent)
	assert.Equal(t, "curl/8.0", *rec.UserAgent)
	require.NotNil(t, rec.EndpointCalled)
	assert.Equal(t, "/api/v1/chat/completions", *rec.EndpointCalled)

	// Empty values stay nil
	rec2 := NewRequestRecord(uuid.New(), "prompt")
	rec2.SetClientMetadata("", "", "")
	assert.Nil(t, rec2.ClientIP)
	assert.Nil(t, rec2.UserAgent)
	assert.Nil(t, rec2.EndpointCalled)
}

func TestHashPrompt(t *testing.T) {
	h1 := HashPrompt("same text")
	h2 := HashPrompt("same text")
	h3 := HashPrompt("different text")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

// Chat tests

func TestProviderCompletion_TotalTokens(t *testing.T) {
	c := ProviderCompletion{PromptTokens: 12, CompletionTokens: 30}
	assert.Equal(t, 42, c.TotalTokens())
}

func TestScoredCandidate_JSONMarshaling(t *testing.T) {
	sc := ScoredCandidate{
		ModelName:    "gpt-4o-mini",
		ProviderName: "OpenAI",
		Model:        &ModelConfig{Name: "gpt-4o-mini"},
		Provider:     &ProviderConfig{Name: "OpenAI", APIKey: "sk-secret"},
		Scores:       SubScores{Cost: 0.8, Complexity: 0.9, Context: 1.0, Priority: 0.5, Load: 0.7},
		FinalScore:   0.81,
		Reasoning:    []string{"Model: gpt-4o-mini (OpenAI)"},
	}

	data, err := json.Marshal(sc)
	require.NoError(t, err)

	// Config pointers carry credentials and are never serialized
	assert.NotContains(t, string(data), "sk-secret")
	assert.Contains(t, string(data), `"model":"gpt-4o-mini"`)
	assert.Contains(t, string(data), `"final_score":0.81`)
}

func TestModelSelection_JSONOmitsEmptyAlternatives(t *testing.T) {
	sel := ModelSelection{
		Model:    "gpt-4o",
		Provider: "OpenAI",
		Score:    0.75,
	}

	data, err := json.Marshal(sel)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "all_candidates")
}
