package routing

import (
	"math"

	"github.com/routelab/ai-gateway/config"
	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services"
)

// Default scoring weights
const (
	DefaultWeightCost       = 0.30
	DefaultWeightComplexity = 0.25
	DefaultWeightContext    = 0.20
	DefaultWeightPriority   = 0.15
	DefaultWeightLoad       = 0.10
)

// DefaultMinScoreThreshold is the score floor below which no candidate is selected
const DefaultMinScoreThreshold = 0.3

// ScoreWeights are the five weighted criteria of the candidate score.
// The components must sum to 1.0 within a 0.001 tolerance.
type ScoreWeights struct {
	Cost       float64 `json:"cost"`
	Complexity float64 `json:"complexity"`
	Context    float64 `json:"context"`
	Priority   float64 `json:"priority"`
	Load       float64 `json:"load"`
}

// DefaultWeights returns the built-in weight set
func DefaultWeights() ScoreWeights {
	return ScoreWeights{
		Cost:       DefaultWeightCost,
		Complexity: DefaultWeightComplexity,
		Context:    DefaultWeightContext,
		Priority:   DefaultWeightPriority,
		Load:       DefaultWeightLoad,
	}
}

// WeightsFromConfig reads the weight set out of the routing configuration
func WeightsFromConfig(rc config.RoutingConfig) ScoreWeights {
	return ScoreWeights{
		Cost:       rc.WeightCost,
		Complexity: rc.WeightComplexity,
		Context:    rc.WeightContext,
		Priority:   rc.WeightPriority,
		Load:       rc.WeightLoad,
	}
}

// Validate rejects negative components and sums off 1.0 by more than 0.001
func (w ScoreWeights) Validate() error {
	if w.Cost < 0 || w.Complexity < 0 || w.Context < 0 || w.Priority < 0 || w.Load < 0 {
		return services.ErrInvalidWeights
	}
	sum := w.Cost + w.Complexity + w.Context + w.Priority + w.Load
	if math.Abs(sum-1.0) >= 0.001 {
		return services.ErrInvalidWeights
	}
	return nil
}

// Map returns the weights keyed by criterion name, as exposed in stats
func (w ScoreWeights) Map() map[string]float64 {
	return map[string]float64{
		"cost":       w.Cost,
		"complexity": w.Complexity,
		"context":    w.Context,
		"priority":   w.Priority,
		"load":       w.Load,
	}
}

// PerformanceStats is the engine's observability snapshot
type PerformanceStats struct {
	Stats         models.DecisionStats                   `json:"stats"`
	Weights       map[string]float64                     `json:"weights"`
	Threshold     float64                                `json:"threshold"`
	ProviderLoads map[string]models.DetailedProviderLoad `json:"provider_loads"`
	SuccessRate   float64                                `json:"success_rate"`
	FallbackRate  float64                                `json:"fallback_rate"`
}
