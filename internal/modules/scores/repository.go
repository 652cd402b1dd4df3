// Package scores owns computed score persistence: the live snapshot per
// account (scores.db), the append-only history (history.db), and the compute
// service that runs the pure engine against stored signals and persists the
// outcome.
package scores

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/domain"
)

// Repository handles live score snapshots in scores.db.
// One row per (org, account), overwritten on every compute pass. The engine
// is the only writer. Implements domain.ScoreStore.
type Repository struct {
	db  *sql.DB        // scores.db - account_scores table
	log zerolog.Logger // Structured logger
}

// NewRepository creates a new score repository.
//
// Parameters:
//   - db: Database connection to scores.db
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "scores").Logger(),
	}
}

// LoadLatest returns the current score snapshot for an account.
// Returns (nil, nil) when the account has never been scored.
//
// Parameters:
//   - ctx: Request context
//   - orgID: Owning organization
//   - accountID: Account whose snapshot to load
//
// Returns:
//   - *domain.AccountScore: Snapshot if present, nil when never scored
//   - error: Error if the query fails
func (r *Repository) LoadLatest(ctx context.Context, orgID, accountID string) (*domain.AccountScore, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, score, tier, factors, signal_count, user_count,
		       last_signal_at, trend, computed_at
		FROM account_scores
		WHERE org_id = ? AND account_id = ?
	`, orgID, accountID)

	score, err := scanScore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load score for account %s: %w", accountID, err)
	}
	return score, nil
}

// Save upserts the live snapshot for an account. The previous snapshot is
// overwritten; history keeps the trail (see HistoryRepository).
//
// Parameters:
//   - ctx: Request context
//   - orgID: Owning organization
//   - score: Snapshot to persist
//
// Returns:
//   - error: Error if the write fails
func (r *Repository) Save(ctx context.Context, orgID string, score domain.AccountScore) error {
	factors, err := json.Marshal(score.Factors)
	if err != nil {
		return fmt.Errorf("failed to encode factors for account %s: %w", score.AccountID, err)
	}

	var lastSignalAt any
	if score.LastSignalAt != nil {
		lastSignalAt = score.LastSignalAt.UTC().Unix()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO account_scores (org_id, account_id, id, score, tier, factors,
			signal_count, user_count, last_signal_at, trend, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id, account_id) DO UPDATE SET
			id = excluded.id,
			score = excluded.score,
			tier = excluded.tier,
			factors = excluded.factors,
			signal_count = excluded.signal_count,
			user_count = excluded.user_count,
			last_signal_at = excluded.last_signal_at,
			trend = excluded.trend,
			computed_at = excluded.computed_at
	`, orgID, score.AccountID, score.ID, score.Score, string(score.Tier), string(factors),
		score.SignalCount, score.UserCount, lastSignalAt, string(score.Trend),
		score.ComputedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save score for account %s: %w", score.AccountID, err)
	}

	return nil
}

// ListTop returns the highest-scoring accounts for an organization,
// optionally filtered to one tier. Ordered by score descending, ties by
// account id for a stable leaderboard.
//
// Parameters:
//   - ctx: Request context
//   - orgID: Owning organization
//   - tier: Optional tier filter (empty string means all tiers)
//   - limit: Maximum rows to return
//
// Returns:
//   - []domain.AccountScore: Snapshots ordered by score descending
//   - error: Error if the query fails
func (r *Repository) ListTop(ctx context.Context, orgID string, tier domain.Tier, limit int) ([]domain.AccountScore, error) {
	query := `
		SELECT id, account_id, score, tier, factors, signal_count, user_count,
		       last_signal_at, trend, computed_at
		FROM account_scores
		WHERE org_id = ?`
	args := []any{orgID}

	if tier != "" {
		query += " AND tier = ?"
		args = append(args, string(tier))
	}
	query += " ORDER BY score DESC, account_id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list top scores for org %s: %w", orgID, err)
	}
	defer rows.Close()

	var scores []domain.AccountScore
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			r.log.Warn().Err(err).Str("org_id", orgID).Msg("Failed to scan score row")
			continue
		}
		scores = append(scores, *score)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores for org %s: %w", orgID, err)
	}

	return scores, nil
}

// CountByTier returns the number of scored accounts per tier for an org.
// Used by the insights service and the system status endpoint.
func (r *Repository) CountByTier(ctx context.Context, orgID string) (map[domain.Tier]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tier, COUNT(*) FROM account_scores
		WHERE org_id = ?
		GROUP BY tier
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tiers for org %s: %w", orgID, err)
	}
	defer rows.Close()

	counts := make(map[domain.Tier]int)
	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan tier count")
			continue
		}
		counts[domain.Tier(tier)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tier counts for org %s: %w", orgID, err)
	}

	return counts, nil
}

// AllScores returns every score value in the organization.
// Feeds the distribution statistics behind threshold suggestions.
func (r *Repository) AllScores(ctx context.Context, orgID string) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT score FROM account_scores WHERE org_id = ? ORDER BY score ASC", orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores for org %s: %w", orgID, err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan score value")
			continue
		}
		scores = append(scores, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score values for org %s: %w", orgID, err)
	}

	return scores, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scanning
type scanner interface {
	Scan(dest ...any) error
}

// scanScore builds a domain.AccountScore from one result row
func scanScore(row scanner) (*domain.AccountScore, error) {
	var (
		score        domain.AccountScore
		tier         string
		trend        string
		factors      string
		lastSignalAt sql.NullInt64
		computedAt   int64
	)

	if err := row.Scan(&score.ID, &score.AccountID, &score.Score, &tier, &factors,
		&score.SignalCount, &score.UserCount, &lastSignalAt, &trend, &computedAt); err != nil {
		return nil, err
	}

	score.Tier = domain.Tier(tier)
	score.Trend = domain.Trend(trend)
	score.ComputedAt = time.Unix(computedAt, 0).UTC()

	if lastSignalAt.Valid {
		ts := time.Unix(lastSignalAt.Int64, 0).UTC()
		score.LastSignalAt = &ts
	}

	if err := json.Unmarshal([]byte(factors), &score.Factors); err != nil {
		return nil, fmt.Errorf("corrupt factors on account %s: %w", score.AccountID, err)
	}

	return &score, nil
}
