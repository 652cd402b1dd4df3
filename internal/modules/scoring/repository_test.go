package scoring_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/modules/scoring"
)

// setupRepo creates a config repository over an in-memory database
func setupRepo(t *testing.T) (*scoring.Repository, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE scoring_configs (
			org_id     TEXT PRIMARY KEY,
			document   TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return scoring.NewRepository(db, zerolog.Nop()), db
}

func testConfig(maxScore float64) domain.ScoringConfig {
	return domain.ScoringConfig{
		Rules: []domain.ScoringRule{
			{
				ID:         "r_pv",
				Name:       "Page views",
				SignalType: "page_view",
				Weight:     2,
				Decay:      domain.Decay30d,
				Enabled:    true,
			},
			{
				ID:         "r_int",
				Name:       "Integration adoption",
				SignalType: "feature_used",
				Weight:     5,
				Decay:      domain.Decay90d,
				Conditions: []domain.Condition{
					{Field: "feature", Operator: domain.OpEq, Value: "integrations"},
				},
				Enabled: true,
			},
		},
		TierThresholds: domain.TierThresholds{Hot: 70, Warm: 40, Cold: 10},
		MaxScore:       maxScore,
	}
}

// TestLoadUnset tests that orgs without a saved config get nil, not an error
func TestLoadUnset(t *testing.T) {
	repo, _ := setupRepo(t)

	cfg, err := repo.Load(context.Background(), "org_fresh")
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

// TestSaveAndLoad tests the full document round trip
func TestSaveAndLoad(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	saved := testConfig(100)
	require.NoError(t, repo.Save(ctx, "org_1", saved))

	loaded, err := repo.Load(ctx, "org_1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, saved.MaxScore, loaded.MaxScore)
	assert.Equal(t, saved.TierThresholds, loaded.TierThresholds)
	require.Len(t, loaded.Rules, 2)
	assert.Equal(t, "r_pv", loaded.Rules[0].ID)
	assert.Equal(t, domain.Decay90d, loaded.Rules[1].Decay)

	require.Len(t, loaded.Rules[1].Conditions, 1)
	assert.Equal(t, domain.OpEq, loaded.Rules[1].Conditions[0].Operator)
	assert.Equal(t, "integrations", loaded.Rules[1].Conditions[0].Value)
}

// TestSaveOverwritesDocument tests that saves replace the whole document
func TestSaveOverwritesDocument(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "org_1", testConfig(100)))
	require.NoError(t, repo.Save(ctx, "org_1", testConfig(200)))

	loaded, err := repo.Load(ctx, "org_1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 200.0, loaded.MaxScore)
}

// TestDelete tests removing a stored config
func TestDelete(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "org_1", testConfig(100)))

	removed, err := repo.Delete(ctx, "org_1")
	require.NoError(t, err)
	assert.True(t, removed)

	cfg, err := repo.Load(ctx, "org_1")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	// Deleting again reports nothing removed
	removed, err = repo.Delete(ctx, "org_1")
	require.NoError(t, err)
	assert.False(t, removed)
}

// TestLoadScopedByOrg tests that configs never leak across orgs
func TestLoadScopedByOrg(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "org_1", testConfig(100)))

	cfg, err := repo.Load(ctx, "org_2")
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

// TestLoadCorruptDocument tests that a mangled row surfaces as an error
func TestLoadCorruptDocument(t *testing.T) {
	repo, db := setupRepo(t)

	_, err := db.Exec(
		"INSERT INTO scoring_configs (org_id, document, updated_at) VALUES (?, ?, ?)",
		"org_bad", "{not json", 0)
	require.NoError(t, err)

	_, err = repo.Load(context.Background(), "org_bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}
