package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScoringOverlay is an optional YAML file that overrides the scoring surface
// of the decision engine. Fields left unset keep the built-in defaults, so a
// file may override just the weights, just the threshold, or just a curve.
type ScoringOverlay struct {
	Weights      *WeightsOverlay `yaml:"weights"`
	Threshold    *float64        `yaml:"min_score_threshold"`
	CostBuckets  []PriceBucket   `yaml:"cost_buckets"`
	ContextCurve []RatioStep     `yaml:"context_curve"`
}

// WeightsOverlay overrides the five scoring weights as a group.
// All five must be present so the sum check stays meaningful.
type WeightsOverlay struct {
	Cost       float64 `yaml:"cost"`
	Complexity float64 `yaml:"complexity"`
	Context    float64 `yaml:"context"`
	Priority   float64 `yaml:"priority"`
	Load       float64 `yaml:"load"`
}

// PriceBucket maps an average per-1K price ceiling to a cost sub-score.
// Buckets are evaluated in order; the first bucket whose MaxPrice is not
// exceeded wins. A negative MaxPrice marks the open-ended last bucket.
type PriceBucket struct {
	MaxPrice float64 `yaml:"max_price"`
	Score    float64 `yaml:"score"`
}

// RatioStep maps a minimum context headroom ratio to a context sub-score.
// Steps are evaluated in order; the first step whose MinRatio is met wins.
type RatioStep struct {
	MinRatio float64 `yaml:"min_ratio"`
	Score    float64 `yaml:"score"`
}

// LoadScoringOverlay reads and validates a scoring overlay file.
// Returns (nil, nil) when path is empty so callers can pass the config
// value through unconditionally.
func LoadScoringOverlay(path string) (*ScoringOverlay, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scoring file: %w", err)
	}

	var overlay ScoringOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse scoring file %s: %w", path, err)
	}

	if err := overlay.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring file %s: %w", path, err)
	}

	return &overlay, nil
}

// Validate checks the overlay for values the scorer would reject
func (s *ScoringOverlay) Validate() error {
	if s.Weights != nil {
		sum := s.Weights.Cost + s.Weights.Complexity + s.Weights.Context +
			s.Weights.Priority + s.Weights.Load
		if sum < 0.999 || sum > 1.001 {
			return fmt.Errorf("weights must sum to 1.0, got %.3f", sum)
		}
		for name, w := range map[string]float64{
			"cost":       s.Weights.Cost,
			"complexity": s.Weights.Complexity,
			"context":    s.Weights.Context,
			"priority":   s.Weights.Priority,
			"load":       s.Weights.Load,
		} {
			if w < 0 {
				return fmt.Errorf("weight %s must not be negative", name)
			}
		}
	}

	if s.Threshold != nil && (*s.Threshold < 0 || *s.Threshold > 1) {
		return fmt.Errorf("min_score_threshold must be between 0 and 1, got %.3f", *s.Threshold)
	}

	for i, b := range s.CostBuckets {
		if b.Score < 0 || b.Score > 1 {
			return fmt.Errorf("cost_buckets[%d]: score must be between 0 and 1", i)
		}
	}
	if n := len(s.CostBuckets); n > 0 && s.CostBuckets[n-1].MaxPrice >= 0 {
		return fmt.Errorf("cost_buckets must end with an open-ended bucket (max_price: -1)")
	}

	for i, st := range s.ContextCurve {
		if st.Score < 0 || st.Score > 1 {
			return fmt.Errorf("context_curve[%d]: score must be between 0 and 1", i)
		}
		if st.MinRatio < 0 {
			return fmt.Errorf("context_curve[%d]: min_ratio must not be negative", i)
		}
	}

	return nil
}

// Apply folds the overlay into a RoutingConfig, returning the updated copy.
// Weights and threshold replace the config values; curves are returned as-is
// for the scorer to consume.
func (s *ScoringOverlay) Apply(rc RoutingConfig) RoutingConfig {
	if s == nil {
		return rc
	}
	if s.Weights != nil {
		rc.WeightCost = s.Weights.Cost
		rc.WeightComplexity = s.Weights.Complexity
		rc.WeightContext = s.Weights.Context
		rc.WeightPriority = s.Weights.Priority
		rc.WeightLoad = s.Weights.Load
	}
	if s.Threshold != nil {
		rc.MinScoreThreshold = *s.Threshold
	}
	return rc
}
