package scores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/relaycrm/pulse/internal/domain"
)

// HistoryEntry is one point in an account's score trail
type HistoryEntry struct {
	AccountID  string               `json:"account_id"`
	ComputedAt time.Time            `json:"computed_at"`
	Score      float64              `json:"score"`
	Tier       domain.Tier          `json:"tier"`
	Trend      domain.Trend         `json:"trend"`
	Factors    []domain.ScoreFactor `json:"factors,omitempty"`
}

// historySnapshot is the msgpack payload stored alongside each history row.
// The scalar columns cover sparkline queries without decoding; the snapshot
// carries the full factor breakdown for drill-down.
type historySnapshot struct {
	SignalCount int                  `msgpack:"signal_count"`
	UserCount   int                  `msgpack:"user_count"`
	Factors     []domain.ScoreFactor `msgpack:"factors"`
}

// HistoryRepository handles the append-only score trail in history.db.
// Rows are written once per compute pass and trimmed by the retention job.
type HistoryRepository struct {
	db  *sql.DB        // history.db - score_history table
	log zerolog.Logger // Structured logger
}

// NewHistoryRepository creates a new history repository.
//
// Parameters:
//   - db: Database connection to history.db
//   - log: Structured logger
//
// Returns:
//   - *HistoryRepository: Initialized repository instance
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repository", "score_history").Logger(),
	}
}

// Append records one compute pass in the account's trail.
// A second snapshot for the same (org, account, computed_at) second replaces
// the first; retries of the same pass stay idempotent.
//
// Parameters:
//   - ctx: Request context
//   - orgID: Owning organization
//   - score: The snapshot that was just persisted
//
// Returns:
//   - error: Error if the write fails
func (r *HistoryRepository) Append(ctx context.Context, orgID string, score domain.AccountScore) error {
	snapshot, err := msgpack.Marshal(historySnapshot{
		SignalCount: score.SignalCount,
		UserCount:   score.UserCount,
		Factors:     score.Factors,
	})
	if err != nil {
		return fmt.Errorf("failed to encode history snapshot for account %s: %w", score.AccountID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO score_history (org_id, account_id, computed_at, score, tier, trend, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id, account_id, computed_at) DO UPDATE SET
			score = excluded.score,
			tier = excluded.tier,
			trend = excluded.trend,
			snapshot = excluded.snapshot
	`, orgID, score.AccountID, score.ComputedAt.UTC().Unix(), score.Score,
		string(score.Tier), string(score.Trend), snapshot)
	if err != nil {
		return fmt.Errorf("failed to append history for account %s: %w", score.AccountID, err)
	}

	return nil
}

// ListForAccount returns the most recent history entries for an account,
// newest first, decoded with their factor breakdowns.
//
// Parameters:
//   - ctx: Request context
//   - orgID: Owning organization
//   - accountID: Account whose trail to load
//   - limit: Maximum entries to return
//
// Returns:
//   - []HistoryEntry: Entries ordered by computed_at descending
//   - error: Error if the query fails
func (r *HistoryRepository) ListForAccount(ctx context.Context, orgID, accountID string, limit int) ([]HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT computed_at, score, tier, trend, snapshot
		FROM score_history
		WHERE org_id = ? AND account_id = ?
		ORDER BY computed_at DESC
		LIMIT ?
	`, orgID, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			entry      HistoryEntry
			tier       string
			trend      string
			computedAt int64
			blob       []byte
		)
		if err := rows.Scan(&computedAt, &entry.Score, &tier, &trend, &blob); err != nil {
			r.log.Warn().Err(err).Str("account_id", accountID).Msg("Failed to scan history row")
			continue
		}

		entry.AccountID = accountID
		entry.ComputedAt = time.Unix(computedAt, 0).UTC()
		entry.Tier = domain.Tier(tier)
		entry.Trend = domain.Trend(trend)

		if len(blob) > 0 {
			var snapshot historySnapshot
			if err := msgpack.Unmarshal(blob, &snapshot); err != nil {
				r.log.Warn().Err(err).Str("account_id", accountID).Msg("Corrupt history snapshot")
			} else {
				entry.Factors = snapshot.Factors
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history for account %s: %w", accountID, err)
	}

	return entries, nil
}

// TrimOlderThan deletes history rows computed before the cutoff, across all
// organizations. Returns the number of rows removed.
//
// Parameters:
//   - ctx: Request context
//   - cutoff: Rows strictly older than this are removed
//
// Returns:
//   - int64: Rows deleted
//   - error: Error if the delete fails
func (r *HistoryRepository) TrimOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM score_history WHERE computed_at < ?", cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to trim score history: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read trim result: %w", err)
	}

	if deleted > 0 {
		r.log.Info().Int64("rows", deleted).Time("cutoff", cutoff).Msg("Trimmed score history")
	}

	return deleted, nil
}
