package scoring

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/events"
)

// Manager serves the active scoring config per organization and applies
// config changes. Orgs without a stored config get the platform default.
type Manager struct {
	repo     *Repository
	defaults domain.ScoringConfig
	bus      *events.Bus
	log      zerolog.Logger
}

// NewManager creates a new config manager. defaults is the parsed platform
// seed (LoadDefaults); bus may be nil in stripped-down setups.
func NewManager(repo *Repository, defaults domain.ScoringConfig, bus *events.Bus, log zerolog.Logger) *Manager {
	return &Manager{
		repo:     repo,
		defaults: defaults,
		bus:      bus,
		log:      log.With().Str("service", "scoring_config").Logger(),
	}
}

// Get returns the organization's active config, or the platform default if
// none has been saved. Callers must treat the returned config as read-only.
func (m *Manager) Get(ctx context.Context, orgID string) (domain.ScoringConfig, error) {
	cfg, err := m.repo.Load(ctx, orgID)
	if err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("%w: loading config: %w", domain.ErrStoreUnavailable, err)
	}
	if cfg == nil {
		return m.defaults, nil
	}
	return *cfg, nil
}

// Update validates and persists a new config for the organization.
// Nothing is written when validation fails.
func (m *Manager) Update(ctx context.Context, orgID string, cfg domain.ScoringConfig) (domain.ScoringConfig, error) {
	if err := Validate(cfg); err != nil {
		return domain.ScoringConfig{}, err
	}

	if err := m.repo.Save(ctx, orgID, cfg); err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("%w: saving config: %w", domain.ErrStoreUnavailable, err)
	}

	if m.bus != nil {
		m.bus.Emit(events.ConfigUpdated, "scoring", map[string]any{
			"org_id":     orgID,
			"rule_count": len(cfg.Rules),
			"max_score":  cfg.MaxScore,
		})
	}

	m.log.Info().
		Str("org_id", orgID).
		Int("rules", len(cfg.Rules)).
		Float64("max_score", cfg.MaxScore).
		Msg("Scoring config updated")

	return cfg, nil
}

// Reset removes the organization's stored config so it falls back to the
// platform default, and returns that default. Scores computed under the old
// config remain until the follow-up recompute overwrites them.
func (m *Manager) Reset(ctx context.Context, orgID string) (domain.ScoringConfig, error) {
	removed, err := m.repo.Delete(ctx, orgID)
	if err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("%w: resetting config: %w", domain.ErrStoreUnavailable, err)
	}

	if m.bus != nil {
		m.bus.Emit(events.ConfigReset, "scoring", map[string]any{
			"org_id": orgID,
		})
	}

	m.log.Info().
		Str("org_id", orgID).
		Bool("had_custom_config", removed).
		Msg("Scoring config reset to platform default")

	return m.defaults, nil
}
