// Package engine implements the pure scoring core: rule evaluation with time
// decay, per-account aggregation, and trend classification. Nothing in this
// package touches a store, a clock, or a logger; every function is a pure
// function of its inputs so that preview and recompute can share it safely.
package engine

import (
	"math"
	"strings"
	"time"

	"github.com/relaycrm/pulse/internal/domain"
)

// =============================================================================
// RULE EVALUATION
// =============================================================================
// A rule contributes weight × decay(Δt) for each signal it matches.
// Matching requires: rule enabled, signal type equal to the rule's type, and
// every condition satisfied against the signal's metadata. Any failure means
// zero contribution; malformed metadata never produces an error here.

const hoursPerDay = 24.0

// Evaluate returns the decayed contribution of one rule applied to one signal
// at the given reference time.
//
// Returns 0 when:
//   - the rule is disabled
//   - the signal type does not match the rule's signal type
//   - any condition fails (including type-mismatched comparisons)
//
// Otherwise the contribution is rule.Weight multiplied by the decay factor
// for the signal's age. Future-stamped signals are treated as age zero so
// clock skew never grants a bonus.
func Evaluate(rule domain.ScoringRule, signal domain.Signal, referenceTime time.Time) float64 {
	if !rule.Enabled {
		return 0
	}
	if rule.SignalType != signal.Type {
		return 0
	}
	if !MatchConditions(rule.Conditions, signal.Metadata) {
		return 0
	}

	return rule.Weight * DecayFactor(rule.Decay, referenceTime.Sub(signal.Timestamp))
}

// DecayFactor returns the multiplier in [0, 1] for a signal of the given age.
//
// DecayNone keeps full weight forever. Finite windows decay linearly:
// factor = 1 - age/window, floored at 0 at and beyond the window boundary,
// so a signal at a window's midpoint contributes exactly half weight.
// Negative ages (future timestamps) are clamped to zero.
func DecayFactor(window domain.DecayWindow, age time.Duration) float64 {
	if age < 0 {
		age = 0
	}

	days, finite := window.Days()
	if !finite {
		// DecayNone, and any unknown window value that slipped past
		// validation, keeps full weight.
		return 1.0
	}

	ageDays := age.Hours() / hoursPerDay
	return math.Max(0.0, 1.0-ageDays/days)
}

// =============================================================================
// CONDITION MATCHING
// =============================================================================
// Conditions are AND-combined predicates over signal metadata. The operator
// set is closed; each variant has its own comparison function. A comparison
// that cannot be made (missing field, wrong type) fails the condition - it
// never panics and never errors, so one bad signal cannot take down a batch.

// MatchConditions reports whether the metadata satisfies every condition.
// An empty condition list always matches.
func MatchConditions(conditions []domain.Condition, metadata map[string]any) bool {
	for _, cond := range conditions {
		if !matchCondition(cond, metadata) {
			return false
		}
	}
	return true
}

func matchCondition(cond domain.Condition, metadata map[string]any) bool {
	if metadata == nil {
		return false
	}
	actual, ok := metadata[cond.Field]
	if !ok {
		return false
	}

	switch cond.Operator {
	case domain.OpGt:
		return compareNumeric(actual, cond.Value, func(a, b float64) bool { return a > b })
	case domain.OpLt:
		return compareNumeric(actual, cond.Value, func(a, b float64) bool { return a < b })
	case domain.OpEq:
		return compareEq(actual, cond.Value)
	case domain.OpContains:
		return compareContains(actual, cond.Value)
	default:
		return false
	}
}

// compareNumeric applies cmp to two values when both coerce to numbers
func compareNumeric(actual, expected any, cmp func(a, b float64) bool) bool {
	a, aOK := toFloat(actual)
	b, bOK := toFloat(expected)
	if !aOK || !bOK {
		return false
	}
	return cmp(a, b)
}

// compareEq checks equality with numeric tolerance for cross-type numbers
// (JSON decodes every number as float64; in-process callers may pass ints)
func compareEq(actual, expected any) bool {
	if a, aOK := toFloat(actual); aOK {
		b, bOK := toFloat(expected)
		return bOK && a == b
	}

	switch av := actual.(type) {
	case string:
		bv, ok := expected.(string)
		return ok && av == bv
	case bool:
		bv, ok := expected.(bool)
		return ok && av == bv
	default:
		return false
	}
}

// compareContains handles string substring checks and element membership in
// array-like metadata values
func compareContains(actual, expected any) bool {
	switch av := actual.(type) {
	case string:
		needle, ok := expected.(string)
		return ok && strings.Contains(av, needle)
	case []any:
		for _, item := range av {
			if compareEq(item, expected) {
				return true
			}
		}
		return false
	case []string:
		needle, ok := expected.(string)
		if !ok {
			return false
		}
		for _, item := range av {
			if item == needle {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// toFloat coerces the numeric types that reach us from JSON decoding and
// in-process callers. Strings are deliberately not coerced: "5" is not 5.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
