package scoring

import (
	"context"
	"time"

	"github.com/relaycrm/pulse/internal/domain"
)

// AccountScorer scores one account under an explicit config snapshot and
// persists the result. The module defines what it needs and the scores
// module implements it (scores.ComputeService), so recompute can fan out
// without a compile-time dependency on the scores package.
type AccountScorer interface {
	// ComputeWithConfig scores accountID against cfg at referenceTime,
	// persists the snapshot and returns it.
	ComputeWithConfig(ctx context.Context, orgID, accountID string, cfg domain.ScoringConfig, referenceTime time.Time) (*domain.AccountScore, error)
}

// ScoreReader provides read access to persisted score snapshots.
// Implemented by scores.Repository. Preview needs the stored current score;
// insights need the org-wide distribution.
type ScoreReader interface {
	// LoadLatest returns the live snapshot for one account, nil if never scored
	LoadLatest(ctx context.Context, orgID, accountID string) (*domain.AccountScore, error)

	// AllScores returns every score value in the org, ascending
	AllScores(ctx context.Context, orgID string) ([]float64, error)

	// CountByTier returns the number of accounts per tier
	CountByTier(ctx context.Context, orgID string) (map[domain.Tier]int, error)
}

// Leaderboard rebuilds the cached per-org score ranking after a bulk
// recompute. Implemented by the redis client; nil when no cache is wired.
type Leaderboard interface {
	// Rebuild replaces the org's ranking with exactly the given scores
	Rebuild(ctx context.Context, orgID string, scores map[string]float64) error
}
