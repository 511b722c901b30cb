package routing

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services"
)

// Hardcoded fallback used when even the catalog listing is empty
const (
	fallbackModelName    = "gpt-4o"
	fallbackProviderName = "OpenAI"
)

// Reasoning lines attached to fallback selections. The engine keys its
// decision outcome metric on these.
const (
	reasonCatalogFallback = "Selected as fallback (largest context window)"
	reasonDefaultFallback = "Using default fallback model"
)

const maxRankedAlternatives = 10

// Selector picks the best scored candidate above the score threshold.
// The threshold can be updated at runtime.
type Selector struct {
	mu                sync.RWMutex
	minScoreThreshold float64
	logger            *zap.Logger
}

// NewSelector creates a selector with the given minimum score threshold
func NewSelector(minScoreThreshold float64, logger *zap.Logger) *Selector {
	return &Selector{
		minScoreThreshold: minScoreThreshold,
		logger:            logger,
	}
}

// Threshold returns the current minimum score threshold
func (s *Selector) Threshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minScoreThreshold
}

// UpdateThreshold replaces the minimum score threshold
func (s *Selector) UpdateThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: got %.3f", services.ErrInvalidThreshold, threshold)
	}

	s.mu.Lock()
	s.minScoreThreshold = threshold
	s.mu.Unlock()

	s.logger.Info("minimum score threshold updated", zap.Float64("threshold", threshold))
	return nil
}

// SelectBest returns the highest-scoring candidate at or above the
// threshold, with up to ten ranked alternatives attached. Candidates with
// equal scores keep their scoring order. Returns nil when nothing
// qualifies so the caller can fall back.
func (s *Selector) SelectBest(scores []models.ScoredCandidate) *models.ModelSelection {
	if len(scores) == 0 {
		return nil
	}

	threshold := s.Threshold()

	filtered := make([]models.ScoredCandidate, 0, len(scores))
	for _, sc := range scores {
		if sc.FinalScore >= threshold {
			filtered = append(filtered, sc)
		}
	}

	if len(filtered) == 0 {
		s.logger.Warn("no models above threshold", zap.Float64("threshold", threshold))
		return nil
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].FinalScore > filtered[j].FinalScore
	})

	best := filtered[0]
	s.logTopCandidates(filtered)

	return &models.ModelSelection{
		Model:         best.ModelName,
		Provider:      best.ProviderName,
		Score:         best.FinalScore,
		EstimatedCost: best.EstimatedCost,
		Reasoning:     best.Reasoning,
		IsDefault:     false,
		Alternatives:  rankAlternatives(filtered),
	}
}

// SelectFallback picks the model with the largest context window from the
// catalog listing. An empty listing yields the hardcoded default.
func (s *Selector) SelectFallback(listing []models.ModelSummary) *models.ModelSelection {
	var fallback *models.ModelSummary
	maxContext := 0

	for i := range listing {
		if listing[i].ContextWindow > maxContext {
			maxContext = listing[i].ContextWindow
			fallback = &listing[i]
		}
	}

	if fallback == nil {
		return &models.ModelSelection{
			Model:     fallbackModelName,
			Provider:  fallbackProviderName,
			Reasoning: []string{reasonDefaultFallback},
			IsDefault: true,
		}
	}

	return &models.ModelSelection{
		Model:     fallback.Name,
		Provider:  fallback.Provider,
		Reasoning: []string{reasonCatalogFallback},
		IsDefault: true,
	}
}

func rankAlternatives(sorted []models.ScoredCandidate) []models.RankedAlternative {
	top := sorted
	if len(top) > maxRankedAlternatives {
		top = top[:maxRankedAlternatives]
	}

	alternatives := make([]models.RankedAlternative, 0, len(top))
	for i, sc := range top {
		alternatives = append(alternatives, models.RankedAlternative{
			Rank:             i + 1,
			Model:            sc.ModelName,
			Provider:         sc.ProviderName,
			Score:            roundTo(sc.FinalScore, 3),
			EstimatedCost:    roundTo(sc.EstimatedCost, 6),
			ReasoningSummary: summarizeReasoning(sc.Reasoning),
		})
	}
	return alternatives
}

// summarizeReasoning keeps the marker lines from the head of the reasoning
func summarizeReasoning(reasoning []string) string {
	if len(reasoning) == 0 {
		return ""
	}

	head := reasoning
	if len(head) > 3 {
		head = head[:3]
	}

	items := make([]string, 0, len(head))
	for _, line := range head {
		if strings.HasPrefix(line, "✓") || strings.HasPrefix(line, "✗") || strings.HasPrefix(line, "~") {
			items = append(items, line)
		}
	}
	return strings.Join(items, "; ")
}

func (s *Selector) logTopCandidates(sorted []models.ScoredCandidate) {
	if !s.logger.Core().Enabled(zapcore.DebugLevel) {
		return
	}

	top := sorted
	if len(top) > 5 {
		top = top[:5]
	}
	for i, sc := range top {
		s.logger.Debug("top model candidate",
			zap.Int("rank", i+1),
			zap.String("model", sc.ModelName),
			zap.String("provider", sc.ProviderName),
			zap.Float64("score", sc.FinalScore),
			zap.Float64("cost", sc.EstimatedCost))
	}
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
