// Package signals owns the raw behavioral signal store (signals.db).
// Signals are immutable once ingested: the ingestion surface writes them,
// the scoring engine only ever reads them back. Rows are tenant-scoped by
// org_id and idempotent by signal id.
package signals

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/domain"
)

// Repository handles signal persistence in signals.db.
// It implements domain.SignalStore for the engine's read side and adds the
// write operations used by the ingestion service.
type Repository struct {
	db  *sql.DB        // signals.db - signals table
	log zerolog.Logger // Structured logger
}

// NewRepository creates a new signal repository.
//
// Parameters:
//   - db: Database connection to signals.db
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "signals").Logger(),
	}
}

// Insert persists one signal. Idempotent by signal id: inserting an id that
// already exists is a no-op, not an error.
//
// Parameters:
//   - ctx: Request context
//   - orgID: Owning organization
//   - signal: Signal to persist (id, type, accountId and timestamp must be set)
//
// Returns:
//   - bool: true when a new row was written, false when the id already existed
//   - error: Error if the write fails
func (r *Repository) Insert(ctx context.Context, orgID string, signal domain.Signal) (bool, error) {
	metadata, err := marshalMetadata(signal.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to encode signal metadata: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO signals (id, org_id, account_id, type, actor_id, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, signal.ID, orgID, signal.AccountID, signal.Type, nullableString(signal.ActorID),
		signal.Timestamp.UTC().Unix(), metadata)
	if err != nil {
		return false, fmt.Errorf("failed to insert signal %s: %w", signal.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result for signal %s: %w", signal.ID, err)
	}

	return affected > 0, nil
}

// ListForAccount returns all signals for one account, oldest first.
// This is the engine's hot path; it is served by the (org_id, account_id,
// timestamp) index. A nil since returns the full history.
//
// Parameters:
//   - ctx: Request context
//   - orgID: Owning organization
//   - accountID: Account whose signals to load
//   - since: Optional lower bound on signal timestamp (inclusive)
//
// Returns:
//   - []domain.Signal: Signals ordered by timestamp, then id (stable)
//   - error: Error if the query fails
func (r *Repository) ListForAccount(ctx context.Context, orgID, accountID string, since *time.Time) ([]domain.Signal, error) {
	query := `
		SELECT id, type, account_id, actor_id, timestamp, metadata
		FROM signals
		WHERE org_id = ? AND account_id = ?`
	args := []any{orgID, accountID}

	if since != nil {
		query += " AND timestamp >= ?"
		args = append(args, since.UTC().Unix())
	}
	query += " ORDER BY timestamp ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			r.log.Warn().Err(err).Str("account_id", accountID).Msg("Failed to scan signal row")
			continue
		}
		signals = append(signals, signal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals for account %s: %w", accountID, err)
	}

	return signals, nil
}

// CountForOrg returns the total number of signals stored for an organization.
//
// Parameters:
//   - ctx: Request context
//   - orgID: Owning organization
//
// Returns:
//   - int: Signal count
//   - error: Error if the query fails
func (r *Repository) CountForOrg(ctx context.Context, orgID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM signals WHERE org_id = ?", orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count signals for org %s: %w", orgID, err)
	}
	return count, nil
}

// scanSignal builds a domain.Signal from one result row
func scanSignal(rows *sql.Rows) (domain.Signal, error) {
	var (
		signal    domain.Signal
		actorID   sql.NullString
		timestamp int64
		metadata  sql.NullString
	)

	if err := rows.Scan(&signal.ID, &signal.Type, &signal.AccountID,
		&actorID, &timestamp, &metadata); err != nil {
		return domain.Signal{}, err
	}

	signal.ActorID = actorID.String
	signal.Timestamp = time.Unix(timestamp, 0).UTC()

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &signal.Metadata); err != nil {
			return domain.Signal{}, fmt.Errorf("corrupt metadata on signal %s: %w", signal.ID, err)
		}
	}

	return signal, nil
}

// marshalMetadata encodes metadata as JSON, NULL when absent
func marshalMetadata(metadata map[string]any) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// nullableString stores empty strings as NULL
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
