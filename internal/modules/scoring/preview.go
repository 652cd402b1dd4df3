package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/engine"
)

// Preview scores every account in the organization under a candidate config
// without persisting anything. The current side comes from the stored
// snapshots as-is; the preview side is aggregated fresh from each account's
// signals. Accounts come back in directory order, so repeated calls with the
// same candidate line up row for row.
//
// The candidate is validated first; nothing is evaluated against a config
// that could never be saved.
func (s *Service) Preview(ctx context.Context, orgID string, candidate domain.ScoringConfig) ([]domain.ScorePreview, error) {
	if err := Validate(candidate); err != nil {
		return nil, err
	}

	ids, err := s.directory.ListIDs(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing accounts: %w", domain.ErrStoreUnavailable, err)
	}

	referenceTime := time.Now().UTC()
	previews := make([]domain.ScorePreview, 0, len(ids))

	for _, accountID := range ids {
		current, err := s.scores.LoadLatest(ctx, orgID, accountID)
		if err != nil {
			return nil, fmt.Errorf("%w: loading current score for %s: %w", domain.ErrStoreUnavailable, accountID, err)
		}

		signals, err := s.signals.ListForAccount(ctx, orgID, accountID, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: loading signals for %s: %w", domain.ErrStoreUnavailable, accountID, err)
		}

		fresh := engine.Aggregate(accountID, signals, candidate, referenceTime)

		preview := domain.ScorePreview{
			AccountID:    accountID,
			PreviewScore: fresh.Score,
			PreviewTier:  fresh.Tier,
			CurrentTier:  domain.TierInactive,
		}
		if current != nil {
			preview.CurrentScore = current.Score
			preview.CurrentTier = current.Tier
		}
		previews = append(previews, preview)
	}

	s.log.Debug().
		Str("org_id", orgID).
		Int("accounts", len(previews)).
		Msg("Config preview computed")

	return previews, nil
}
