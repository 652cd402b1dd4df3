package scoring

import (
	"fmt"
	"math"

	"github.com/relaycrm/pulse/internal/domain"
)

// Validate checks a scoring config before it is persisted or previewed.
// Every failure wraps domain.ErrInvalidConfig and names the offending field,
// so handlers map it to a 400 with an actionable message.
//
// An empty rule list is allowed: it scores every account to zero, which is a
// legitimate (if drastic) way to pause scoring for an org.
func Validate(cfg domain.ScoringConfig) error {
	if !isFinite(cfg.MaxScore) || cfg.MaxScore <= 0 {
		return fmt.Errorf("%w: max_score must be a positive number, got %v",
			domain.ErrInvalidConfig, cfg.MaxScore)
	}

	t := cfg.TierThresholds
	if !isFinite(t.Hot) || !isFinite(t.Warm) || !isFinite(t.Cold) {
		return fmt.Errorf("%w: tier thresholds must be finite numbers", domain.ErrInvalidConfig)
	}
	if !(t.Hot > t.Warm && t.Warm > t.Cold) {
		return fmt.Errorf("%w: tier thresholds must be strictly descending, got hot=%v warm=%v cold=%v",
			domain.ErrInvalidConfig, t.Hot, t.Warm, t.Cold)
	}
	if t.Cold < 0 {
		return fmt.Errorf("%w: cold threshold must not be negative, got %v",
			domain.ErrInvalidConfig, t.Cold)
	}

	seen := make(map[string]bool, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		if rule.ID == "" {
			return fmt.Errorf("%w: rule %d has no id", domain.ErrInvalidConfig, i)
		}
		if seen[rule.ID] {
			// Factors aggregate per rule id; duplicates would silently merge
			return fmt.Errorf("%w: duplicate rule id %q", domain.ErrInvalidConfig, rule.ID)
		}
		seen[rule.ID] = true

		if rule.SignalType == "" {
			return fmt.Errorf("%w: rule %q has no signal_type", domain.ErrInvalidConfig, rule.ID)
		}
		if !isFinite(rule.Weight) {
			return fmt.Errorf("%w: rule %q weight must be a finite number",
				domain.ErrInvalidConfig, rule.ID)
		}
		if !rule.Decay.Valid() {
			return fmt.Errorf("%w: rule %q has unknown decay window %q",
				domain.ErrInvalidConfig, rule.ID, rule.Decay)
		}

		for j, cond := range rule.Conditions {
			if cond.Field == "" {
				return fmt.Errorf("%w: rule %q condition %d has no field",
					domain.ErrInvalidConfig, rule.ID, j)
			}
			if !cond.Operator.Valid() {
				return fmt.Errorf("%w: rule %q condition %d has unknown operator %q",
					domain.ErrInvalidConfig, rule.ID, j, cond.Operator)
			}
		}
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
