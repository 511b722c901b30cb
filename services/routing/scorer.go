package routing

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/config"
	"github.com/routelab/ai-gateway/models"
)

// Built-in scoring curves, used when no overlay file overrides them.
// Cost buckets key off the average per-1K price; the context curve keys
// off the window-to-requirement ratio.
var (
	defaultCostBuckets = []config.PriceBucket{
		{MaxPrice: 0.001, Score: 1.0},
		{MaxPrice: 0.01, Score: 0.8},
		{MaxPrice: 0.05, Score: 0.6},
		{MaxPrice: 0.1, Score: 0.4},
		{MaxPrice: -1, Score: 0.2},
	}

	defaultContextCurve = []config.RatioStep{
		{MinRatio: 3.0, Score: 1.0},
		{MinRatio: 2.0, Score: 0.9},
		{MinRatio: 1.5, Score: 0.8},
		{MinRatio: 1.2, Score: 0.6},
		{MinRatio: 1.0, Score: 0.4},
		{MinRatio: 0, Score: 0.1},
	}
)

// ScorerConfig bundles the scoring surface. Zero-value curves fall back to
// the built-in defaults; weights are always required.
type ScorerConfig struct {
	Weights      ScoreWeights
	CostBuckets  []config.PriceBucket
	ContextCurve []config.RatioStep
}

// Scorer rates filtered candidates against the prompt analysis and current
// provider loads, producing a weighted final score per candidate.
type Scorer struct {
	weights      ScoreWeights
	costBuckets  []config.PriceBucket
	contextCurve []config.RatioStep
	logger       *zap.Logger
}

// NewScorer creates a scorer, rejecting weights that do not sum to 1.0
func NewScorer(cfg ScorerConfig, logger *zap.Logger) (*Scorer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}

	costBuckets := cfg.CostBuckets
	if len(costBuckets) == 0 {
		costBuckets = defaultCostBuckets
	}
	contextCurve := cfg.ContextCurve
	if len(contextCurve) == 0 {
		contextCurve = defaultContextCurve
	}

	return &Scorer{
		weights:      cfg.Weights,
		costBuckets:  costBuckets,
		contextCurve: contextCurve,
		logger:       logger,
	}, nil
}

// Weights returns the active scoring weights
func (s *Scorer) Weights() ScoreWeights {
	return s.weights
}

// ScoreCandidates rates every candidate. A candidate that fails to score
// is logged and skipped rather than failing the batch.
func (s *Scorer) ScoreCandidates(analysis models.PromptAnalysis, candidates []models.Candidate, loads map[string]float64) []models.ScoredCandidate {
	scored := make([]models.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		sc, err := s.scoreCandidate(c, analysis, loads)
		if err != nil {
			s.logger.Warn("error scoring candidate",
				zap.String("model", candidateName(c)),
				zap.Error(err))
			continue
		}
		scored = append(scored, sc)
	}
	return scored
}

func (s *Scorer) scoreCandidate(c models.Candidate, analysis models.PromptAnalysis, loads map[string]float64) (sc models.ScoredCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scoring candidate: %v", r)
		}
	}()

	sub := models.SubScores{
		Cost:       s.costScore(c.Model),
		Complexity: complexityScore(analysis.Complexity, c.Model.ContextWindow),
		Context:    s.contextScore(c.Model.ContextWindow, analysis.TokenEstimate),
		Priority:   priorityScore(c.Model.Priority),
		Load:       loadScore(c.Provider.Name, loads),
	}

	finalScore := sub.Cost*s.weights.Cost +
		sub.Complexity*s.weights.Complexity +
		sub.Context*s.weights.Context +
		sub.Priority*s.weights.Priority +
		sub.Load*s.weights.Load

	return models.ScoredCandidate{
		ModelName:     c.Model.Name,
		ProviderName:  c.Provider.Name,
		Model:         c.Model,
		Provider:      c.Provider,
		Scores:        sub,
		FinalScore:    finalScore,
		EstimatedCost: estimateCost(c.Model, analysis.TokenEstimate),
		Reasoning:     buildReasoning(c, sub, finalScore),
	}, nil
}

// costScore buckets the average per-1K price. The open-ended last bucket
// catches everything above the listed ceilings.
func (s *Scorer) costScore(m *models.ModelConfig) float64 {
	avgPrice := m.AveragePricePer1K()
	for _, b := range s.costBuckets {
		if b.MaxPrice < 0 || avgPrice <= b.MaxPrice {
			return b.Score
		}
	}
	return s.costBuckets[len(s.costBuckets)-1].Score
}

// contextScore rates how much headroom the window leaves over the prompt's
// requirement. A zero requirement is a perfect fit.
func (s *Scorer) contextScore(contextWindow, tokenEstimate int) float64 {
	requiredContext := float64(tokenEstimate) * contextHeadroomFactor
	if requiredContext == 0 {
		return 1.0
	}

	ratio := float64(contextWindow) / requiredContext
	for _, step := range s.contextCurve {
		if ratio >= step.MinRatio {
			return step.Score
		}
	}
	return s.contextCurve[len(s.contextCurve)-1].Score
}

// complexityScore rates how well a context window fits the prompt's
// complexity class. Anything beyond complex is held to the advanced tiers.
func complexityScore(complexity models.PromptComplexity, contextWindow int) float64 {
	switch complexity {
	case models.ComplexitySimple:
		return 0.9
	case models.ComplexityStandard:
		if contextWindow >= 4000 {
			return 0.8
		}
		return 0.6
	case models.ComplexityComplex:
		switch {
		case contextWindow >= 8000:
			return 0.9
		case contextWindow >= 4000:
			return 0.7
		default:
			return 0.4
		}
	default:
		switch {
		case contextWindow >= 16000:
			return 1.0
		case contextWindow >= 8000:
			return 0.8
		default:
			return 0.3
		}
	}
}

// priorityScore maps the 1..10 catalog priority onto [0, 1]
func priorityScore(priority int) float64 {
	score := (float64(priority) - 1) / 9
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// loadScore inverts the provider's load factor. A provider absent from the
// load map counts as idle.
func loadScore(providerName string, loads map[string]float64) float64 {
	return 1.0 - loads[providerName]
}

// estimateCost projects the request cost assuming the response is as long
// as the prompt.
func estimateCost(m *models.ModelConfig, tokenEstimate int) float64 {
	inputTokens := float64(tokenEstimate)
	outputTokens := inputTokens

	return inputTokens*(m.InputPricePer1K/1000) + outputTokens*(m.OutputPricePer1K/1000)
}

func candidateName(c models.Candidate) string {
	if c.Model == nil {
		return "<unknown>"
	}
	return c.Model.Name
}

func buildReasoning(c models.Candidate, sub models.SubScores, finalScore float64) []string {
	reasoning := make([]string, 0, 7)
	reasoning = append(reasoning, fmt.Sprintf("Model: %s (%s)", c.Model.Name, c.Provider.Name))
	reasoning = append(reasoning, explainScores(sub)...)
	reasoning = append(reasoning, fmt.Sprintf("Final score: %.3f", finalScore))
	return reasoning
}

func explainScores(sub models.SubScores) []string {
	explanations := make([]string, 0, 5)

	switch {
	case sub.Cost >= 0.8:
		explanations = append(explanations, "✓ Excellent cost efficiency")
	case sub.Cost >= 0.6:
		explanations = append(explanations, "✓ Good cost efficiency")
	case sub.Cost >= 0.4:
		explanations = append(explanations, "~ Moderate cost")
	default:
		explanations = append(explanations, "✗ Higher than average cost")
	}

	switch {
	case sub.Complexity >= 0.8:
		explanations = append(explanations, "✓ Well-suited for prompt complexity")
	case sub.Complexity >= 0.6:
		explanations = append(explanations, "✓ Adequate for prompt complexity")
	default:
		explanations = append(explanations, "~ May struggle with prompt complexity")
	}

	switch {
	case sub.Context >= 0.8:
		explanations = append(explanations, "✓ Ample context window")
	case sub.Context >= 0.6:
		explanations = append(explanations, "✓ Sufficient context window")
	default:
		explanations = append(explanations, "~ Limited context window")
	}

	switch {
	case sub.Priority >= 0.8:
		explanations = append(explanations, "✓ High priority model")
	case sub.Priority >= 0.6:
		explanations = append(explanations, "✓ Medium priority model")
	default:
		explanations = append(explanations, "~ Low priority model")
	}

	switch {
	case sub.Load >= 0.8:
		explanations = append(explanations, "✓ Low provider load")
	case sub.Load >= 0.6:
		explanations = append(explanations, "~ Moderate provider load")
	default:
		explanations = append(explanations, "✗ High provider load")
	}

	return explanations
}
