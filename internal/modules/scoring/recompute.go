package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/events"
	"github.com/relaycrm/pulse/internal/observability"
	"github.com/relaycrm/pulse/internal/workers"
)

// Recompute triggers, carried on the started event so dashboards can tell
// an operator action from the nightly decay pass.
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

// Service orchestrates the bulk scoring operations: recompute, dry-run
// preview, reset and insights. It never scores an account itself; the
// per-account pipeline belongs to the AccountScorer.
type Service struct {
	manager   *Manager
	directory domain.AccountDirectory
	signals   domain.SignalStore
	scorer    AccountScorer
	scores    ScoreReader
	pool      *workers.WorkerPool
	board     Leaderboard
	bus       *events.Bus
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// NewService creates a new scoring orchestration service.
// board may be nil when no cache is configured; bus may be nil in
// stripped-down setups.
func NewService(
	manager *Manager,
	directory domain.AccountDirectory,
	signals domain.SignalStore,
	scorer AccountScorer,
	scores ScoreReader,
	pool *workers.WorkerPool,
	board Leaderboard,
	bus *events.Bus,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Service {
	return &Service{
		manager:   manager,
		directory: directory,
		signals:   signals,
		scorer:    scorer,
		scores:    scores,
		pool:      pool,
		board:     board,
		bus:       bus,
		metrics:   metrics,
		log:       log.With().Str("service", "scoring").Logger(),
	}
}

// Manager returns the config manager for direct get/update access.
func (s *Service) Manager() *Manager {
	return s.manager
}

// Recompute re-scores every account in the organization under one config
// snapshot. With an override the config is validated and persisted first,
// and the run aborts before any score write if validation fails. The config
// is read exactly once; concurrent config updates never produce a run
// scored under two rule sets.
//
// Per-account failures are skipped and reported in the result, never abort
// the batch. On cancellation the completed writes remain valid and the
// result reports progress so far, with the untouched accounts counted as
// skipped.
func (s *Service) Recompute(ctx context.Context, orgID string, override *domain.ScoringConfig, trigger string) (*domain.RecomputeResult, error) {
	var cfg domain.ScoringConfig
	var err error
	if override != nil {
		cfg, err = s.manager.Update(ctx, orgID, *override)
	} else {
		cfg, err = s.manager.Get(ctx, orgID)
	}
	if err != nil {
		return nil, err
	}

	ids, err := s.directory.ListIDs(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing accounts: %w", domain.ErrStoreUnavailable, err)
	}

	if s.bus != nil {
		s.bus.Emit(events.RecomputeStarted, "scoring", map[string]any{
			"org_id":   orgID,
			"accounts": len(ids),
			"trigger":  trigger,
		})
	}

	start := time.Now()
	referenceTime := start.UTC()

	// Final scores collected for the leaderboard rebuild
	var mu sync.Mutex
	final := make(map[string]float64, len(ids))

	batchErrs := s.pool.ComputeBatch(ctx, ids, func(ctx context.Context, accountID string) error {
		score, err := s.scorer.ComputeWithConfig(ctx, orgID, accountID, cfg, referenceTime)
		if err != nil {
			return &domain.AccountScoringError{AccountID: accountID, Err: err}
		}
		mu.Lock()
		final[accountID] = score.Score
		mu.Unlock()
		return nil
	})

	result := &domain.RecomputeResult{Config: cfg}
	for i, batchErr := range batchErrs {
		if batchErr == nil {
			result.Updated++
			continue
		}
		result.Skipped++
		result.SkippedIDs = append(result.SkippedIDs, ids[i])
		if errors.Is(batchErr, context.Canceled) || errors.Is(batchErr, context.DeadlineExceeded) {
			continue
		}
		s.log.Warn().
			Err(batchErr).
			Str("account_id", ids[i]).
			Msg("Account skipped during recompute")
	}

	// Rebuild only from a complete run; a partial map would evict valid
	// members for the accounts the cancellation never reached
	if s.board != nil && ctx.Err() == nil {
		if err := s.board.Rebuild(ctx, orgID, final); err != nil {
			s.log.Warn().Err(err).Str("org_id", orgID).Msg("Failed to rebuild leaderboard after recompute")
		}
	}

	duration := time.Since(start)
	s.metrics.RecomputeRun(duration)

	if s.bus != nil {
		s.bus.Emit(events.RecomputeCompleted, "scoring", map[string]any{
			"org_id":      orgID,
			"updated":     result.Updated,
			"skipped":     result.Skipped,
			"skipped_ids": result.SkippedIDs,
			"duration_ms": duration.Milliseconds(),
		})
	}

	s.log.Info().
		Str("org_id", orgID).
		Str("trigger", trigger).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Dur("duration", duration).
		Msg("Recompute completed")

	return result, nil
}

// Reset restores the platform default config and recomputes every account
// under it, so no stored score lingers under a rule set that no longer
// exists. The reset itself is authoritative; a recompute failure is logged
// and left to the nightly run to heal.
func (s *Service) Reset(ctx context.Context, orgID string) (domain.ScoringConfig, error) {
	cfg, err := s.manager.Reset(ctx, orgID)
	if err != nil {
		return domain.ScoringConfig{}, err
	}

	if _, err := s.Recompute(ctx, orgID, nil, TriggerAPI); err != nil {
		s.log.Warn().Err(err).Str("org_id", orgID).Msg("Recompute after config reset failed")
	}

	return cfg, nil
}
