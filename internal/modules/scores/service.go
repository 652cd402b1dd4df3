package scores

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/engine"
	"github.com/relaycrm/pulse/internal/events"
	"github.com/relaycrm/pulse/internal/observability"
)

// configProvider supplies the active scoring configuration for an org
// (for dependency injection, implemented by the scoring config manager)
type configProvider interface {
	Get(ctx context.Context, orgID string) (domain.ScoringConfig, error)
}

// leaderboard mirrors score updates into the optional ranking cache
// (for dependency injection, implemented by the redis leaderboard client)
type leaderboard interface {
	Update(ctx context.Context, orgID, accountID string, score float64) error
	TopIDs(ctx context.Context, orgID string, limit int) ([]string, error)
}

// ComputeService runs the pure scoring engine against stored signals and
// persists the outcome: live snapshot, history row, cache update, event.
type ComputeService struct {
	signalStore domain.SignalStore
	repo        *Repository
	history     *HistoryRepository
	configs     configProvider
	board       leaderboard
	bus         *events.Bus
	metrics     *observability.Metrics
	trendBand   float64
	log         zerolog.Logger
}

// NewComputeService creates a new compute service. board may be nil when no
// cache is configured; history and bus may be nil in stripped-down setups.
func NewComputeService(
	signalStore domain.SignalStore,
	repo *Repository,
	history *HistoryRepository,
	configs configProvider,
	board leaderboard,
	bus *events.Bus,
	metrics *observability.Metrics,
	trendBand float64,
	log zerolog.Logger,
) *ComputeService {
	if trendBand <= 0 {
		trendBand = engine.DefaultTrendBand
	}
	return &ComputeService{
		signalStore: signalStore,
		repo:        repo,
		history:     history,
		configs:     configs,
		board:       board,
		bus:         bus,
		metrics:     metrics,
		trendBand:   trendBand,
		log:         log.With().Str("service", "scores").Logger(),
	}
}

// Compute scores one account under the org's active configuration and
// persists the snapshot.
func (s *ComputeService) Compute(ctx context.Context, orgID, accountID string) (*domain.AccountScore, error) {
	cfg, err := s.configs.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.ComputeWithConfig(ctx, orgID, accountID, cfg, time.Now().UTC())
}

// ComputeWithConfig scores one account under an explicit config snapshot.
// The recompute orchestrator uses this so a whole run sees exactly one
// config, regardless of concurrent updates.
func (s *ComputeService) ComputeWithConfig(ctx context.Context, orgID, accountID string, cfg domain.ScoringConfig, referenceTime time.Time) (*domain.AccountScore, error) {
	signals, err := s.signalStore.ListForAccount(ctx, orgID, accountID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: loading signals for %s: %w", domain.ErrStoreUnavailable, accountID, err)
	}

	previous, err := s.repo.LoadLatest(ctx, orgID, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading prior score for %s: %w", domain.ErrStoreUnavailable, accountID, err)
	}

	score := engine.Aggregate(accountID, signals, cfg, referenceTime)
	score.ID = uuid.NewString()

	var prevScore *float64
	if previous != nil {
		prevScore = &previous.Score
	}
	score.Trend = engine.TrendWithBand(prevScore, score.Score, s.trendBand)

	if err := s.repo.Save(ctx, orgID, score); err != nil {
		return nil, fmt.Errorf("%w: saving score for %s: %w", domain.ErrStoreUnavailable, accountID, err)
	}

	// History, cache and events trail the authoritative write; their
	// failures are logged, never surfaced
	if s.history != nil {
		if err := s.history.Append(ctx, orgID, score); err != nil {
			s.log.Warn().Err(err).Str("account_id", accountID).Msg("Failed to append score history")
		}
	}

	if s.board != nil {
		if err := s.board.Update(ctx, orgID, accountID, score.Score); err != nil {
			s.log.Warn().Err(err).Str("account_id", accountID).Msg("Failed to update leaderboard cache")
		}
	}

	s.metrics.AccountScored()

	if s.bus != nil {
		s.bus.Emit(events.ScoreUpdated, "scores", map[string]any{
			"org_id":     orgID,
			"account_id": accountID,
			"score":      score.Score,
			"tier":       string(score.Tier),
			"trend":      string(score.Trend),
		})
	}

	s.log.Debug().
		Str("account_id", accountID).
		Float64("score", score.Score).
		Str("tier", string(score.Tier)).
		Str("trend", string(score.Trend)).
		Int("signals", score.SignalCount).
		Msg("Account scored")

	return &score, nil
}

// GetLatest returns the stored snapshot for an account.
// Accounts that were never scored map to ErrNotFound.
func (s *ComputeService) GetLatest(ctx context.Context, orgID, accountID string) (*domain.AccountScore, error) {
	score, err := s.repo.LoadLatest(ctx, orgID, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading score for %s: %w", domain.ErrStoreUnavailable, accountID, err)
	}
	if score == nil {
		return nil, fmt.Errorf("account %s has no score: %w", accountID, domain.ErrNotFound)
	}
	return score, nil
}

// GetHistory returns the account's score trail, newest first.
func (s *ComputeService) GetHistory(ctx context.Context, orgID, accountID string, limit int) ([]HistoryEntry, error) {
	if s.history == nil {
		return []HistoryEntry{}, nil
	}
	entries, err := s.history.ListForAccount(ctx, orgID, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: loading history for %s: %w", domain.ErrStoreUnavailable, accountID, err)
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, nil
}

// ListTop returns the organization's highest-scoring accounts, optionally
// filtered to one tier. Unfiltered queries consult the leaderboard cache
// first and fall back to sqlite silently.
func (s *ComputeService) ListTop(ctx context.Context, orgID string, tier domain.Tier, limit int) ([]domain.AccountScore, error) {
	if s.board != nil && tier == "" {
		if scores, ok := s.listTopFromCache(ctx, orgID, limit); ok {
			s.metrics.CacheHit()
			return scores, nil
		}
		s.metrics.CacheMiss()
	}

	scores, err := s.repo.ListTop(ctx, orgID, tier, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing scores: %w", domain.ErrStoreUnavailable, err)
	}
	if scores == nil {
		scores = []domain.AccountScore{}
	}
	return scores, nil
}

// listTopFromCache hydrates leaderboard ids into full snapshots.
// Any gap (cache error, empty board, missing row) falls through to sqlite.
func (s *ComputeService) listTopFromCache(ctx context.Context, orgID string, limit int) ([]domain.AccountScore, bool) {
	ids, err := s.board.TopIDs(ctx, orgID, limit)
	if err != nil || len(ids) == 0 {
		return nil, false
	}

	scores := make([]domain.AccountScore, 0, len(ids))
	for _, accountID := range ids {
		score, err := s.repo.LoadLatest(ctx, orgID, accountID)
		if err != nil || score == nil {
			return nil, false
		}
		scores = append(scores, *score)
	}
	return scores, true
}
