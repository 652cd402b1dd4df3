// Package scoring owns the per-organization scoring configuration and the
// operations that apply it in bulk: defaults, validation, dry-run preview,
// recompute orchestration and score insights.
//
// Configs are stored in config.db as full JSON documents, one active document
// per org. Updates always replace the whole document in a single statement so
// concurrent readers never observe a half-applied rule set.
package scoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/domain"
)

// Repository handles scoring config persistence in config.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new scoring config repository.
//
// Parameters:
//   - db: Database connection to config.db
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "scoring_configs").Logger(),
	}
}

// Load retrieves the active config document for an organization.
// Returns nil if the org has never saved one (not an error); callers fall
// back to the platform default.
func (r *Repository) Load(ctx context.Context, orgID string) (*domain.ScoringConfig, error) {
	var document string
	err := r.db.QueryRowContext(ctx,
		"SELECT document FROM scoring_configs WHERE org_id = ?", orgID,
	).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring config for org %s: %w", orgID, err)
	}

	var cfg domain.ScoringConfig
	if err := json.Unmarshal([]byte(document), &cfg); err != nil {
		return nil, fmt.Errorf("corrupt scoring config document for org %s: %w", orgID, err)
	}
	return &cfg, nil
}

// Save replaces the organization's config with the given document.
// The whole document is overwritten in a single upsert.
func (r *Repository) Save(ctx context.Context, orgID string, cfg domain.ScoringConfig) error {
	document, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode scoring config: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scoring_configs (org_id, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(org_id) DO UPDATE SET
			document   = excluded.document,
			updated_at = excluded.updated_at
	`, orgID, string(document), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save scoring config for org %s: %w", orgID, err)
	}

	r.log.Debug().
		Str("org_id", orgID).
		Int("rules", len(cfg.Rules)).
		Msg("Scoring config saved")

	return nil
}

// Delete removes the organization's stored config so reads fall back to the
// platform default. Returns true if a document was actually removed.
func (r *Repository) Delete(ctx context.Context, orgID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM scoring_configs WHERE org_id = ?", orgID)
	if err != nil {
		return false, fmt.Errorf("failed to delete scoring config for org %s: %w", orgID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check deleted rows for org %s: %w", orgID, err)
	}
	return affected > 0, nil
}
