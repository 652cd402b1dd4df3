// Package accounts provides the minimal tenant account registry backing the
// scoring engine's account directory. The companies-CRUD service elsewhere in
// the platform owns the rich account record; scoring only needs identity and
// a stable iteration order for bulk recompute.
package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/domain"
)

// Repository handles account registry operations in config.db.
// It implements domain.AccountDirectory.
type Repository struct {
	db  *sql.DB        // config.db - accounts table
	log zerolog.Logger // Structured logger
}

// NewRepository creates a new account repository.
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
		log: log.With().Str("repository", "accounts").Logger(),
	}
}

// Create registers an account. Idempotent by account id: re-registering an
// existing id leaves the original row untouched.
//
// Parameters:
//   - ctx: Request context
//   - account: Account to register (ID, OrgID and CreatedAt must be set)
//
// Returns:
//   - bool: true when a new row was written
//   - error: Error if the write fails
func (r *Repository) Create(ctx context.Context, account domain.Account) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (org_id, id, name, domain, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(org_id, id) DO NOTHING
	`, account.OrgID, account.ID, account.Name, nullableString(account.Domain),
		account.CreatedAt.UTC().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to create account %s: %w", account.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read create result for account %s: %w", account.ID, err)
	}

	return affected > 0, nil
}

// Ensure registers a bare directory entry for an account observed through a
// signal. No-op when the account already exists.
func (r *Repository) Ensure(ctx context.Context, orgID, accountID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (org_id, id, name, created_at)
		VALUES (?, ?, '', ?)
		ON CONFLICT(org_id, id) DO NOTHING
	`, orgID, accountID, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to ensure account %s: %w", accountID, err)
	}
	return nil
}

// List returns all accounts for an organization, oldest first.
func (r *Repository) List(ctx context.Context, orgID string) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, domain, created_at
		FROM accounts
		WHERE org_id = ?
		ORDER BY created_at ASC, id ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for org %s: %w", orgID, err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var (
			account   domain.Account
			accDomain sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&account.ID, &account.Name, &accDomain, &createdAt); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan account row")
			continue
		}
		account.OrgID = orgID
		account.Domain = accDomain.String
		account.CreatedAt = time.Unix(createdAt, 0).UTC()
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts for org %s: %w", orgID, err)
	}

	return accounts, nil
}

// ListIDs returns the ids of every account in the organization, in the
// directory's stable iteration order. This is the recompute work list.
//
// Parameters:
//   - ctx: Request context
//   - orgID: Owning organization
//
// Returns:
//   - []string: Account ids ordered by creation time, then id
//   - error: Error if the query fails
func (r *Repository) ListIDs(ctx context.Context, orgID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM accounts
		WHERE org_id = ?
		ORDER BY created_at ASC, id ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account ids for org %s: %w", orgID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan account id")
			continue
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account ids for org %s: %w", orgID, err)
	}

	return ids, nil
}

// ListOrgIDs returns every organization that has at least one registered
// account. The nightly recompute job walks this list.
func (r *Repository) ListOrgIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT org_id FROM accounts ORDER BY org_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgIDs []string
	for rows.Next() {
		var orgID string
		if err := rows.Scan(&orgID); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan org id")
			continue
		}
		orgIDs = append(orgIDs, orgID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", err)
	}

	return orgIDs, nil
}

// Exists reports whether an account is present in the directory.
func (r *Repository) Exists(ctx context.Context, orgID, accountID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM accounts WHERE org_id = ? AND id = ?", orgID, accountID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check account %s: %w", accountID, err)
	}
	return true, nil
}

// nullableString stores empty strings as NULL
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
