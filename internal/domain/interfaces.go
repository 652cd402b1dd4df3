package domain

import (
	"context"
	"time"
)

// SignalStore provides read access to raw behavioral signals.
// The engine never writes signals; ingestion is a separate collaborator.
type SignalStore interface {
	// ListForAccount returns all signals for one account in one organization,
	// oldest first. A non-nil since restricts to signals at or after that time.
	ListForAccount(ctx context.Context, orgID, accountID string, since *time.Time) ([]Signal, error)
}

// AccountDirectory lists the accounts belonging to an organization.
// Backed by the companies-CRUD collaborator.
type AccountDirectory interface {
	// ListIDs returns every account id in the organization, in stable order
	ListIDs(ctx context.Context, orgID string) ([]string, error)
}

// ConfigStore persists the active scoring configuration per organization
type ConfigStore interface {
	// Load returns the stored config, or (nil, nil) when the organization
	// has never saved one (callers fall back to the platform default)
	Load(ctx context.Context, orgID string) (*ScoringConfig, error)

	// Save atomically overwrites the organization's config.
	// Concurrent readers see either the old or the new document, never a mix.
	Save(ctx context.Context, orgID string, cfg ScoringConfig) error
}

// ScoreStore persists computed account score snapshots
type ScoreStore interface {
	// LoadLatest returns the most recent snapshot for the account,
	// or (nil, nil) when the account has never been scored
	LoadLatest(ctx context.Context, orgID, accountID string) (*AccountScore, error)

	// Save upserts the account's snapshot (one live row per account)
	Save(ctx context.Context, orgID string, score AccountScore) error

	// ListTop returns accounts ordered by score descending, optionally
	// filtered to one tier. limit <= 0 applies the store's default cap.
	ListTop(ctx context.Context, orgID string, tier Tier, limit int) ([]AccountScore, error)
}
