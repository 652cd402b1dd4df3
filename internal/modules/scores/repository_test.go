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

// setupScoreRepo creates a score repository over an in-memory database
func setupScoreRepo(t *testing.T) *scores.Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE account_scores (
			org_id         TEXT NOT NULL,
			account_id     TEXT NOT NULL,
			id             TEXT NOT NULL,
			score          REAL NOT NULL,
			tier           TEXT NOT NULL,
			factors        TEXT NOT NULL DEFAULT '[]',
			signal_count   INTEGER NOT NULL DEFAULT 0,
			user_count     INTEGER NOT NULL DEFAULT 0,
			last_signal_at INTEGER,
			trend          TEXT NOT NULL DEFAULT 'STABLE',
			computed_at    INTEGER NOT NULL,
			PRIMARY KEY (org_id, account_id)
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return scores.NewRepository(db, zerolog.Nop())
}

func snapshot(accountID string, score float64, tier domain.Tier) domain.AccountScore {
	return domain.AccountScore{
		ID:         "snap_" + accountID,
		AccountID:  accountID,
		Score:      score,
		Tier:       tier,
		Factors:    []domain.ScoreFactor{},
		Trend:      domain.TrendStable,
		ComputedAt: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

// TestSaveAndLoadLatest tests the round trip including factors and timestamps
func TestSaveAndLoadLatest(t *testing.T) {
	repo := setupScoreRepo(t)
	ctx := context.Background()

	lastSignal := time.Date(2026, 3, 15, 11, 30, 0, 0, time.UTC)
	stored := domain.AccountScore{
		ID:        "snap_1",
		AccountID: "acct_1",
		Score:     72.5,
		Tier:      domain.TierHot,
		Factors: []domain.ScoreFactor{
			{RuleID: "r1", RuleName: "Page views", Weight: 10, Contribution: 60.5, Description: "8 page_view signal(s)"},
			{RuleID: "r2", RuleName: "API calls", Weight: 4, Contribution: 12, Description: "3 api_call signal(s)"},
		},
		SignalCount:  11,
		UserCount:    3,
		LastSignalAt: &lastSignal,
		Trend:        domain.TrendRising,
		ComputedAt:   time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, repo.Save(ctx, "org_1", stored))

	loaded, err := repo.LoadLatest(ctx, "org_1", "acct_1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "snap_1", loaded.ID)
	assert.Equal(t, 72.5, loaded.Score)
	assert.Equal(t, domain.TierHot, loaded.Tier)
	assert.Equal(t, domain.TrendRising, loaded.Trend)
	assert.Equal(t, 11, loaded.SignalCount)
	assert.Equal(t, 3, loaded.UserCount)
	require.NotNil(t, loaded.LastSignalAt)
	assert.Equal(t, lastSignal.Unix(), loaded.LastSignalAt.Unix())
	require.Len(t, loaded.Factors, 2)
	assert.Equal(t, "r1", loaded.Factors[0].RuleID)
	assert.Equal(t, 60.5, loaded.Factors[0].Contribution)
}

// TestLoadLatestNeverScored tests the (nil, nil) contract
func TestLoadLatestNeverScored(t *testing.T) {
	repo := setupScoreRepo(t)

	loaded, err := repo.LoadLatest(context.Background(), "org_1", "acct_unknown")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

// TestSaveOverwrites tests that each compute pass replaces the live row
func TestSaveOverwrites(t *testing.T) {
	repo := setupScoreRepo(t)
	ctx := context.Background()

	first := snapshot("acct_1", 20, domain.TierCold)
	require.NoError(t, repo.Save(ctx, "org_1", first))

	second := snapshot("acct_1", 80, domain.TierHot)
	second.ID = "snap_newer"
	second.Trend = domain.TrendRising
	require.NoError(t, repo.Save(ctx, "org_1", second))

	loaded, err := repo.LoadLatest(ctx, "org_1", "acct_1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "snap_newer", loaded.ID)
	assert.Equal(t, 80.0, loaded.Score)
	assert.Equal(t, domain.TierHot, loaded.Tier)
	assert.Equal(t, domain.TrendRising, loaded.Trend)
}

// TestListTop tests leaderboard ordering, tier filter and limit
func TestListTop(t *testing.T) {
	repo := setupScoreRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "org_1", snapshot("acct_warm", 55, domain.TierWarm)))
	require.NoError(t, repo.Save(ctx, "org_1", snapshot("acct_hot_b", 90, domain.TierHot)))
	require.NoError(t, repo.Save(ctx, "org_1", snapshot("acct_hot_a", 90, domain.TierHot)))
	require.NoError(t, repo.Save(ctx, "org_1", snapshot("acct_cold", 12, domain.TierCold)))
	require.NoError(t, repo.Save(ctx, "org_2", snapshot("acct_other", 99, domain.TierHot)))

	listed, err := repo.ListTop(ctx, "org_1", "", 10)
	require.NoError(t, err)
	require.Len(t, listed, 4)
	assert.Equal(t, "acct_hot_a", listed[0].AccountID, "ties break by account id")
	assert.Equal(t, "acct_hot_b", listed[1].AccountID)
	assert.Equal(t, "acct_warm", listed[2].AccountID)
	assert.Equal(t, "acct_cold", listed[3].AccountID)

	hot, err := repo.ListTop(ctx, "org_1", domain.TierHot, 10)
	require.NoError(t, err)
	require.Len(t, hot, 2)

	limited, err := repo.ListTop(ctx, "org_1", "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "acct_hot_a", limited[0].AccountID)
}

// TestCountByTierAndAllScores tests the insight feed queries
func TestCountByTierAndAllScores(t *testing.T) {
	repo := setupScoreRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "org_1", snapshot("a", 90, domain.TierHot)))
	require.NoError(t, repo.Save(ctx, "org_1", snapshot("b", 85, domain.TierHot)))
	require.NoError(t, repo.Save(ctx, "org_1", snapshot("c", 40, domain.TierWarm)))

	counts, err := repo.CountByTier(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.TierHot])
	assert.Equal(t, 1, counts[domain.TierWarm])
	assert.Zero(t, counts[domain.TierCold])

	values, err := repo.AllScores(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 85, 90}, values)
}
