package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/modules/scoring"
)

// recomputeTimeout bounds one nightly pass across every organization.
const recomputeTimeout = 30 * time.Minute

// RecomputeScoresJob recomputes every organization's account scores so that
// time-decayed signal weights stay current even when no new signals arrive.
type RecomputeScoresJob struct {
	log     zerolog.Logger
	orgs    OrgDirectory
	scoring RecomputeService
}

// NewRecomputeScoresJob creates a new RecomputeScoresJob
func NewRecomputeScoresJob(orgs OrgDirectory, scoring RecomputeService) *RecomputeScoresJob {
	return &RecomputeScoresJob{
		log:     zerolog.Nop(),
		orgs:    orgs,
		scoring: scoring,
	}
}

// SetLogger sets the logger for the job
func (j *RecomputeScoresJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *RecomputeScoresJob) Name() string {
	return "recompute_scores"
}

// Run recomputes scores for all organizations. A failing organization is
// logged and skipped; the pass continues with the rest.
func (j *RecomputeScoresJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), recomputeTimeout)
	defer cancel()

	orgIDs, err := j.orgs.ListOrgIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}

	if len(orgIDs) == 0 {
		j.log.Debug().Msg("No organizations to recompute")
		return nil
	}

	updated := 0
	skipped := 0
	failedOrgs := 0
	for _, orgID := range orgIDs {
		result, err := j.scoring.Recompute(ctx, orgID, nil, scoring.TriggerSchedule)
		if err != nil {
			j.log.Error().
				Err(err).
				Str("org_id", orgID).
				Msg("Nightly recompute failed for organization")
			failedOrgs++
			continue
		}

		updated += result.Updated
		skipped += result.Skipped
	}

	if failedOrgs == len(orgIDs) {
		return fmt.Errorf("nightly recompute failed for all %d organizations", len(orgIDs))
	}

	j.log.Info().
		Int("organizations", len(orgIDs)).
		Int("failed_organizations", failedOrgs).
		Int("accounts_updated", updated).
		Int("accounts_skipped", skipped).
		Msg("Nightly recompute completed")

	return nil
}
