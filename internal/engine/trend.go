package engine

import (
	"math"

	"github.com/relaycrm/pulse/internal/domain"
)

// =============================================================================
// TREND CLASSIFICATION
// =============================================================================
// Trend compares the current score against the previous snapshot. A hysteresis
// band around zero keeps small score wobble from flapping between RISING and
// FALLING on every recompute.

// DefaultTrendBand is the relative-change band classified as STABLE.
// A change of exactly the band value is still STABLE (inclusive).
const DefaultTrendBand = 0.05

// Trend classifies score movement using the default 5% band.
// previous is nil when the account has no prior snapshot; new accounts start
// STABLE rather than falsely RISING from zero.
func Trend(previous *float64, current float64) domain.Trend {
	return TrendWithBand(previous, current, DefaultTrendBand)
}

// TrendWithBand classifies score movement with a caller-supplied band.
// Relative change is (current - previous) / max(previous, 1); the max guard
// keeps near-zero previous scores from exploding the ratio.
func TrendWithBand(previous *float64, current float64, band float64) domain.Trend {
	if previous == nil {
		return domain.TrendStable
	}

	change := (current - *previous) / math.Max(*previous, 1)
	if math.Abs(change) <= band {
		return domain.TrendStable
	}
	if change > 0 {
		return domain.TrendRising
	}
	return domain.TrendFalling
}
