package scoring

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/relaycrm/pulse/internal/domain"
)

// Quartiles are the 25th, 50th and 75th percentiles of the score
// distribution.
type Quartiles struct {
	Q1 float64 `json:"q1"`
	Q2 float64 `json:"q2"`
	Q3 float64 `json:"q3"`
}

// ScoreInsights summarizes an organization's score distribution and derives
// tier threshold suggestions from it. Built for the config editor: the
// dashboard renders the distribution next to the threshold sliders.
type ScoreInsights struct {
	Accounts   int                   `json:"accounts"`
	Mean       float64               `json:"mean"`
	StdDev     float64               `json:"std_dev"`
	Min        float64               `json:"min"`
	Max        float64               `json:"max"`
	Quartiles  Quartiles             `json:"quartiles"`
	TierCounts map[domain.Tier]int   `json:"tier_counts"`
	Suggested  domain.TierThresholds `json:"suggested_thresholds"`
}

// Insights computes distribution statistics over every stored score in the
// organization. Suggested thresholds put roughly the top decile in HOT and
// the top 30% in WARM or above; when the quantiles collapse (tiny orgs,
// uniform scores) the active thresholds are suggested unchanged rather than
// an unusable ladder.
func (s *Service) Insights(ctx context.Context, orgID string) (*ScoreInsights, error) {
	values, err := s.scores.AllScores(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading score distribution: %w", domain.ErrStoreUnavailable, err)
	}

	counts, err := s.scores.CountByTier(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: counting tiers: %w", domain.ErrStoreUnavailable, err)
	}

	active, err := s.manager.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}

	insights := &ScoreInsights{
		Accounts:   len(values),
		TierCounts: counts,
		Suggested:  active.TierThresholds,
	}
	if len(values) == 0 {
		return insights, nil
	}

	// Quantile requires sorted input
	sort.Float64s(values)

	insights.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		insights.StdDev = stat.StdDev(values, nil)
	}
	insights.Min = floats.Min(values)
	insights.Max = floats.Max(values)
	insights.Quartiles = Quartiles{
		Q1: stat.Quantile(0.25, stat.Empirical, values, nil),
		Q2: stat.Quantile(0.50, stat.Empirical, values, nil),
		Q3: stat.Quantile(0.75, stat.Empirical, values, nil),
	}

	hot := stat.Quantile(0.90, stat.Empirical, values, nil)
	warm := stat.Quantile(0.70, stat.Empirical, values, nil)
	cold := stat.Quantile(0.40, stat.Empirical, values, nil)
	if hot > warm && warm > cold && cold >= 0 {
		insights.Suggested = domain.TierThresholds{Hot: hot, Warm: warm, Cold: cold}
	}

	s.log.Debug().
		Str("org_id", orgID).
		Int("accounts", insights.Accounts).
		Msg("Score insights computed")

	return insights, nil
}
