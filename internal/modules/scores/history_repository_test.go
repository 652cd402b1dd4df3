package scores_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/modules/scores"
)

// setupHistoryRepo creates a history repository over an in-memory database
func setupHistoryRepo(t *testing.T) *scores.HistoryRepository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE score_history (
			org_id      TEXT NOT NULL,
			account_id  TEXT NOT NULL,
			computed_at INTEGER NOT NULL,
			score       REAL NOT NULL,
			tier        TEXT NOT NULL,
			trend       TEXT NOT NULL,
			snapshot    BLOB,
			PRIMARY KEY (org_id, account_id, computed_at)
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return scores.NewHistoryRepository(db, zerolog.Nop())
}

func historyScore(accountID string, score float64, computedAt time.Time) domain.AccountScore {
	return domain.AccountScore{
		ID:         "snap_x",
		AccountID:  accountID,
		Score:      score,
		Tier:       domain.TierWarm,
		Trend:      domain.TrendRising,
		ComputedAt: computedAt,
		Factors: []domain.ScoreFactor{
			{RuleID: "r1", RuleName: "Page views", Weight: 10, Contribution: score, Description: "test"},
		},
		SignalCount: 4,
		UserCount:   2,
	}
}

// TestHistoryAppendAndList tests the trail round trip including the
// msgpack factor snapshot
func TestHistoryAppendAndList(t *testing.T) {
	repo := setupHistoryRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)

	for day := 0; day < 3; day++ {
		entry := historyScore("acct_1", float64(40+day*10), base.AddDate(0, 0, day))
		require.NoError(t, repo.Append(ctx, "org_1", entry))
	}

	entries, err := repo.ListForAccount(ctx, "org_1", "acct_1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 60.0, entries[0].Score, "newest first")
	assert.Equal(t, 40.0, entries[2].Score)
	assert.Equal(t, domain.TierWarm, entries[0].Tier)
	assert.Equal(t, domain.TrendRising, entries[0].Trend)

	require.Len(t, entries[0].Factors, 1)
	assert.Equal(t, "r1", entries[0].Factors[0].RuleID)
	assert.Equal(t, 60.0, entries[0].Factors[0].Contribution)
}

// TestHistoryListLimit tests the limit cut
func TestHistoryListLimit(t *testing.T) {
	repo := setupHistoryRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)

	for day := 0; day < 5; day++ {
		require.NoError(t, repo.Append(ctx, "org_1",
			historyScore("acct_1", float64(day), base.AddDate(0, 0, day))))
	}

	entries, err := repo.ListForAccount(ctx, "org_1", "acct_1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 4.0, entries[0].Score)
	assert.Equal(t, 3.0, entries[1].Score)
}

// TestHistoryAppendSameSecondReplaces tests retry idempotency
func TestHistoryAppendSameSecondReplaces(t *testing.T) {
	repo := setupHistoryRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, "org_1", historyScore("acct_1", 10, at)))
	require.NoError(t, repo.Append(ctx, "org_1", historyScore("acct_1", 99, at)))

	entries, err := repo.ListForAccount(ctx, "org_1", "acct_1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 99.0, entries[0].Score, "retry wins")
}

// TestHistoryTrim tests retention deletion across orgs
func TestHistoryTrim(t *testing.T) {
	repo := setupHistoryRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)

	for day := 0; day < 10; day++ {
		require.NoError(t, repo.Append(ctx, "org_1",
			historyScore("acct_1", float64(day), base.AddDate(0, 0, day))))
		require.NoError(t, repo.Append(ctx, "org_2",
			historyScore("acct_9", float64(day), base.AddDate(0, 0, day))))
	}

	cutoff := base.AddDate(0, 0, 5)
	deleted, err := repo.TrimOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(10), deleted, "5 days removed from each org")

	entries, err := repo.ListForAccount(ctx, "org_1", "acct_1", 100)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, cutoff.Unix(), entries[4].ComputedAt.Unix(), "cutoff row survives")

	deleted, err = repo.TrimOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
