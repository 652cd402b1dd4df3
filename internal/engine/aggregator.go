package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/relaycrm/pulse/internal/domain"
)

// =============================================================================
// SCORE AGGREGATION
// =============================================================================
// Aggregation sums every (rule, signal) contribution for one account, clamps
// the total into [0, MaxScore], derives the tier, and records per-rule factors
// for explainability. The result is deterministic for fixed inputs: factor
// ordering uses a stable sort with rule id as the tie breaker.

// factorAccum collects one rule's running totals across all matched signals
type factorAccum struct {
	rule         domain.ScoringRule
	contribution float64
	matched      int
}

// Aggregate computes the score snapshot for one account from its signals and
// a config, at a reference time. Trend is left at its zero value; the caller
// fills it in against the prior snapshot (see Trend).
//
// Zero signals is a normal case, not an error: score 0, tier INACTIVE,
// empty factors.
func Aggregate(accountID string, signals []domain.Signal, cfg domain.ScoringConfig, referenceTime time.Time) domain.AccountScore {
	score := domain.AccountScore{
		AccountID:  accountID,
		Factors:    []domain.ScoreFactor{},
		Tier:       domain.TierInactive,
		ComputedAt: referenceTime,
	}
	if len(signals) == 0 {
		return score
	}

	accums := make(map[string]*factorAccum, len(cfg.Rules))
	total := 0.0

	for _, rule := range cfg.Rules {
		for _, signal := range signals {
			if signal.AccountID != "" && signal.AccountID != accountID {
				continue
			}
			contribution := Evaluate(rule, signal, referenceTime)

			// Track every rule that matched at least one signal, even when
			// decay has reduced its value to zero - "fully decayed" is part
			// of the explanation users see.
			if contribution != 0 || ruleMatches(rule, signal) {
				acc, ok := accums[rule.ID]
				if !ok {
					acc = &factorAccum{rule: rule}
					accums[rule.ID] = acc
				}
				acc.contribution += contribution
				acc.matched++
			}
			total += contribution
		}
	}

	score.Score = clamp(total, 0, cfg.MaxScore)
	score.Tier = cfg.TierThresholds.TierFor(score.Score)
	score.Factors = buildFactors(accums)
	score.SignalCount = len(signals)
	score.UserCount = countDistinctActors(signals)
	score.LastSignalAt = latestTimestamp(signals)

	return score
}

// ruleMatches reports whether the rule applies to the signal ignoring decay.
// Used to keep fully-decayed rules visible in the factor list.
func ruleMatches(rule domain.ScoringRule, signal domain.Signal) bool {
	return rule.Enabled &&
		rule.SignalType == signal.Type &&
		MatchConditions(rule.Conditions, signal.Metadata)
}

// buildFactors converts accumulated rule totals into the sorted factor list.
// Descending by absolute contribution; ties broken by rule id so the order
// is reproducible across runs.
func buildFactors(accums map[string]*factorAccum) []domain.ScoreFactor {
	factors := make([]domain.ScoreFactor, 0, len(accums))
	for _, acc := range accums {
		factors = append(factors, domain.ScoreFactor{
			RuleID:       acc.rule.ID,
			RuleName:     acc.rule.Name,
			Weight:       acc.rule.Weight,
			Contribution: acc.contribution,
			Description:  describeFactor(acc),
		})
	}

	sort.SliceStable(factors, func(i, j int) bool {
		ai, aj := math.Abs(factors[i].Contribution), math.Abs(factors[j].Contribution)
		if ai != aj {
			return ai > aj
		}
		return factors[i].RuleID < factors[j].RuleID
	})

	return factors
}

// describeFactor renders the human-readable explanation shown in the UI
func describeFactor(acc *factorAccum) string {
	noun := "signals"
	if acc.matched == 1 {
		noun = "signal"
	}
	if acc.rule.Decay == domain.DecayNone {
		return fmt.Sprintf("%d %s %s × weight %g", acc.matched, acc.rule.SignalType, noun, acc.rule.Weight)
	}
	return fmt.Sprintf("%d %s %s × weight %g, %s decay", acc.matched, acc.rule.SignalType, noun, acc.rule.Weight, acc.rule.Decay)
}

// countDistinctActors counts unique non-empty actor ids across the signals
func countDistinctActors(signals []domain.Signal) int {
	seen := make(map[string]struct{})
	for _, s := range signals {
		if s.ActorID == "" {
			continue
		}
		seen[s.ActorID] = struct{}{}
	}
	return len(seen)
}

// latestTimestamp returns the max signal timestamp, or nil for no signals
func latestTimestamp(signals []domain.Signal) *time.Time {
	var latest time.Time
	for _, s := range signals {
		if s.Timestamp.After(latest) {
			latest = s.Timestamp
		}
	}
	if latest.IsZero() {
		return nil
	}
	t := latest
	return &t
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
