package routing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services"
)

func scoredCandidate(model string, score float64) models.ScoredCandidate {
	return models.ScoredCandidate{
		ModelName:     model,
		ProviderName:  "OpenAI",
		FinalScore:    score,
		EstimatedCost: 0.001,
		Reasoning: []string{
			fmt.Sprintf("Model: %s (OpenAI)", model),
			"✓ Excellent cost efficiency",
			"✓ Well-suited for prompt complexity",
			"✓ Ample context window",
		},
	}
}

func TestSelector_SelectBest(t *testing.T) {
	logger := zap.NewNop()

	t.Run("no scores yields nil", func(t *testing.T) {
		s := NewSelector(0.3, logger)
		assert.Nil(t, s.SelectBest(nil))
	})

	t.Run("everything below threshold yields nil", func(t *testing.T) {
		s := NewSelector(0.3, logger)
		result := s.SelectBest([]models.ScoredCandidate{
			scoredCandidate("a", 0.1),
			scoredCandidate("b", 0.2),
		})
		assert.Nil(t, result)
	})

	t.Run("picks the highest score", func(t *testing.T) {
		s := NewSelector(0.3, logger)
		result := s.SelectBest([]models.ScoredCandidate{
			scoredCandidate("a", 0.5),
			scoredCandidate("b", 0.9),
			scoredCandidate("c", 0.7),
		})

		require.NotNil(t, result)
		assert.Equal(t, "b", result.Model)
		assert.Equal(t, "OpenAI", result.Provider)
		assert.Equal(t, 0.9, result.Score)
		assert.False(t, result.IsDefault)
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		s := NewSelector(0.3, logger)
		result := s.SelectBest([]models.ScoredCandidate{scoredCandidate("edge", 0.3)})

		require.NotNil(t, result)
		assert.Equal(t, "edge", result.Model)
	})

	t.Run("ties keep scoring order", func(t *testing.T) {
		s := NewSelector(0.3, logger)
		result := s.SelectBest([]models.ScoredCandidate{
			scoredCandidate("b", 0.5),
			scoredCandidate("a", 0.5),
			scoredCandidate("c", 0.7),
		})

		require.NotNil(t, result)
		assert.Equal(t, "c", result.Model)

		require.Len(t, result.Alternatives, 3)
		assert.Equal(t, "c", result.Alternatives[0].Model)
		assert.Equal(t, "b", result.Alternatives[1].Model)
		assert.Equal(t, "a", result.Alternatives[2].Model)
	})

	t.Run("alternatives cap at ten", func(t *testing.T) {
		s := NewSelector(0.3, logger)

		var scores []models.ScoredCandidate
		for i := 0; i < 12; i++ {
			scores = append(scores, scoredCandidate(fmt.Sprintf("m%d", i), 0.4+float64(i)*0.01))
		}

		result := s.SelectBest(scores)
		require.NotNil(t, result)
		assert.Len(t, result.Alternatives, 10)
		assert.Equal(t, 1, result.Alternatives[0].Rank)
		assert.Equal(t, 10, result.Alternatives[9].Rank)
	})

	t.Run("alternatives round score and cost", func(t *testing.T) {
		s := NewSelector(0.3, logger)
		sc := scoredCandidate("m", 0.8765432)
		sc.EstimatedCost = 0.00123456789

		result := s.SelectBest([]models.ScoredCandidate{sc})
		require.NotNil(t, result)
		require.Len(t, result.Alternatives, 1)

		alt := result.Alternatives[0]
		assert.Equal(t, 0.877, alt.Score)
		assert.Equal(t, 0.001235, alt.EstimatedCost)
		// the selection itself keeps full precision
		assert.Equal(t, 0.8765432, result.Score)
	})
}

func TestSummarizeReasoning(t *testing.T) {
	t.Run("keeps marker lines from the first three", func(t *testing.T) {
		got := summarizeReasoning([]string{
			"Model: m (OpenAI)",
			"✓ Excellent cost efficiency",
			"✗ High provider load",
			"✓ Ample context window",
		})
		assert.Equal(t, "✓ Excellent cost efficiency; ✗ High provider load", got)
	})

	t.Run("empty reasoning", func(t *testing.T) {
		assert.Equal(t, "", summarizeReasoning(nil))
	})

	t.Run("no marker lines", func(t *testing.T) {
		assert.Equal(t, "", summarizeReasoning([]string{"Model: m (OpenAI)", "Final score: 0.500"}))
	})
}

func TestSelector_SelectFallback(t *testing.T) {
	logger := zap.NewNop()
	s := NewSelector(0.3, logger)

	t.Run("largest context wins, first on tie", func(t *testing.T) {
		result := s.SelectFallback([]models.ModelSummary{
			{Name: "small", Provider: "Ollama", ContextWindow: 8000},
			{Name: "first-big", Provider: "OpenAI", ContextWindow: 16000},
			{Name: "second-big", Provider: "OpenAI", ContextWindow: 16000},
		})

		assert.Equal(t, "first-big", result.Model)
		assert.Equal(t, "OpenAI", result.Provider)
		assert.True(t, result.IsDefault)
		assert.Equal(t, 0.0, result.Score)
		assert.Equal(t, []string{"Selected as fallback (largest context window)"}, result.Reasoning)
	})

	t.Run("empty listing yields the hardcoded default", func(t *testing.T) {
		result := s.SelectFallback(nil)

		assert.Equal(t, "gpt-4o", result.Model)
		assert.Equal(t, "OpenAI", result.Provider)
		assert.True(t, result.IsDefault)
		assert.Equal(t, []string{"Using default fallback model"}, result.Reasoning)
	})

	t.Run("zero context windows yield the hardcoded default", func(t *testing.T) {
		result := s.SelectFallback([]models.ModelSummary{
			{Name: "broken", Provider: "Ollama", ContextWindow: 0},
		})

		assert.Equal(t, "gpt-4o", result.Model)
	})
}

func TestSelector_UpdateThreshold(t *testing.T) {
	logger := zap.NewNop()

	t.Run("accepts values in range", func(t *testing.T) {
		s := NewSelector(0.3, logger)

		require.NoError(t, s.UpdateThreshold(0))
		require.NoError(t, s.UpdateThreshold(1))
		require.NoError(t, s.UpdateThreshold(0.5))
		assert.Equal(t, 0.5, s.Threshold())
	})

	t.Run("rejects values out of range", func(t *testing.T) {
		s := NewSelector(0.3, logger)

		assert.ErrorIs(t, s.UpdateThreshold(-0.1), services.ErrInvalidThreshold)
		assert.ErrorIs(t, s.UpdateThreshold(1.1), services.ErrInvalidThreshold)
		assert.Equal(t, 0.3, s.Threshold())
	})

	t.Run("selection honors the new threshold", func(t *testing.T) {
		s := NewSelector(0.3, logger)
		scores := []models.ScoredCandidate{scoredCandidate("m", 0.4)}

		require.NotNil(t, s.SelectBest(scores))

		require.NoError(t, s.UpdateThreshold(0.5))
		assert.Nil(t, s.SelectBest(scores))
	})
}
