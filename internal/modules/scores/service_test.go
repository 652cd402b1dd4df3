package scores_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/events"
	"github.com/relaycrm/pulse/internal/modules/scores"
)

// stubSignalStore serves canned signals per account
type stubSignalStore struct {
	signals map[string][]domain.Signal
}

func (s *stubSignalStore) ListForAccount(_ context.Context, _, accountID string, _ *time.Time) ([]domain.Signal, error) {
	return s.signals[accountID], nil
}

// stubConfigs serves one fixed scoring config
type stubConfigs struct {
	cfg domain.ScoringConfig
}

func (s *stubConfigs) Get(context.Context, string) (domain.ScoringConfig, error) {
	return s.cfg, nil
}

// mockBoard records leaderboard updates and serves a canned ranking
type mockBoard struct {
	updates map[string]float64
	top     []string
	err     error
}

func (m *mockBoard) Update(_ context.Context, _, accountID string, score float64) error {
	if m.updates == nil {
		m.updates = make(map[string]float64)
	}
	m.updates[accountID] = score
	return nil
}

func (m *mockBoard) TopIDs(context.Context, string, int) ([]string, error) {
	return m.top, m.err
}

func pageViewConfig() domain.ScoringConfig {
	return domain.ScoringConfig{
		Rules: []domain.ScoringRule{
			{ID: "r_pv", Name: "Page views", SignalType: "page_view", Weight: 10, Decay: domain.Decay30d, Enabled: true},
		},
		TierThresholds: domain.TierThresholds{Hot: 70, Warm: 40, Cold: 10},
		MaxScore:       100,
	}
}

func pageViews(n int, accountID string, ts time.Time) []domain.Signal {
	signals := make([]domain.Signal, n)
	for i := range signals {
		signals[i] = domain.Signal{
			ID:        "sig_" + string(rune('a'+i)),
			Type:      "page_view",
			AccountID: accountID,
			ActorID:   "user_1",
			Timestamp: ts,
		}
	}
	return signals
}

type serviceFixture struct {
	service *scores.ComputeService
	repo    *scores.Repository
	history *scores.HistoryRepository
	store   *stubSignalStore
	board   *mockBoard
	bus     *events.Bus
}

func setupComputeService(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		repo:    setupScoreRepo(t),
		history: setupHistoryRepo(t),
		store:   &stubSignalStore{signals: map[string][]domain.Signal{}},
		board:   &mockBoard{},
		bus:     events.NewBus(zerolog.Nop()),
	}
	f.service = scores.NewComputeService(
		f.store, f.repo, f.history,
		&stubConfigs{cfg: pageViewConfig()},
		f.board, f.bus, nil, 0.05, zerolog.Nop(),
	)
	return f
}

// TestComputePersistsSnapshot tests the full pipeline: eight fresh page
// views under a weight-10 rule score 80 and land in HOT
func TestComputePersistsSnapshot(t *testing.T) {
	f := setupComputeService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	f.store.signals["acct_1"] = pageViews(8, "acct_1", now)

	var emitted []*events.Event
	f.bus.Subscribe(events.ScoreUpdated, func(event *events.Event) {
		emitted = append(emitted, event)
	})

	score, err := f.service.ComputeWithConfig(ctx, "org_1", "acct_1", pageViewConfig(), now)
	require.NoError(t, err)

	assert.InDelta(t, 80.0, score.Score, 1e-9)
	assert.Equal(t, domain.TierHot, score.Tier)
	assert.Equal(t, domain.TrendStable, score.Trend, "no prior snapshot")
	assert.NotEmpty(t, score.ID)
	assert.Equal(t, 8, score.SignalCount)
	assert.Equal(t, 1, score.UserCount)

	// Live row persisted
	stored, err := f.repo.LoadLatest(ctx, "org_1", "acct_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, score.ID, stored.ID)
	assert.InDelta(t, 80.0, stored.Score, 1e-9)

	// History trail appended
	trail, err := f.history.ListForAccount(ctx, "org_1", "acct_1", 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.InDelta(t, 80.0, trail[0].Score, 1e-9)

	// Leaderboard mirrored
	assert.InDelta(t, 80.0, f.board.updates["acct_1"], 1e-9)

	// Event emitted
	require.Len(t, emitted, 1)
	assert.Equal(t, "acct_1", emitted[0].Data["account_id"])
	assert.Equal(t, "HOT", emitted[0].Data["tier"])
}

// TestComputeTrendAgainstPrior tests trend classification across passes
func TestComputeTrendAgainstPrior(t *testing.T) {
	f := setupComputeService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	f.store.signals["acct_1"] = pageViews(8, "acct_1", now)
	first, err := f.service.ComputeWithConfig(ctx, "org_1", "acct_1", pageViewConfig(), now)
	require.NoError(t, err)
	assert.Equal(t, domain.TrendStable, first.Trend)

	// Activity drops sharply before the next pass
	f.store.signals["acct_1"] = pageViews(2, "acct_1", now)
	second, err := f.service.ComputeWithConfig(ctx, "org_1", "acct_1", pageViewConfig(), now.Add(time.Hour))
	require.NoError(t, err)

	assert.InDelta(t, 20.0, second.Score, 0.1)
	assert.Equal(t, domain.TrendFalling, second.Trend)

	// And recovers
	f.store.signals["acct_1"] = pageViews(8, "acct_1", now)
	third, err := f.service.ComputeWithConfig(ctx, "org_1", "acct_1", pageViewConfig(), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.TrendRising, third.Trend)
}

// TestComputeZeroSignals tests the quiet-account snapshot
func TestComputeZeroSignals(t *testing.T) {
	f := setupComputeService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	score, err := f.service.ComputeWithConfig(ctx, "org_1", "acct_quiet", pageViewConfig(), now)
	require.NoError(t, err)

	assert.Zero(t, score.Score)
	assert.Equal(t, domain.TierInactive, score.Tier)
	assert.Equal(t, domain.TrendStable, score.Trend)
	assert.Empty(t, score.Factors)
	assert.Nil(t, score.LastSignalAt)

	stored, err := f.repo.LoadLatest(ctx, "org_1", "acct_quiet")
	require.NoError(t, err)
	require.NotNil(t, stored, "quiet accounts still get a snapshot")
}

// TestComputeUsesActiveConfig tests the provider-backed entry point
func TestComputeUsesActiveConfig(t *testing.T) {
	f := setupComputeService(t)
	ctx := context.Background()

	f.store.signals["acct_1"] = pageViews(3, "acct_1", time.Now().UTC())

	score, err := f.service.Compute(ctx, "org_1", "acct_1")
	require.NoError(t, err)
	assert.InDelta(t, 30.0, score.Score, 0.1)
}

// TestGetLatestNotFound tests the 404 contract for unscored accounts
func TestGetLatestNotFound(t *testing.T) {
	f := setupComputeService(t)

	_, err := f.service.GetLatest(context.Background(), "org_1", "acct_never")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// TestListTopFromCache tests leaderboard hydration and fallback
func TestListTopFromCache(t *testing.T) {
	f := setupComputeService(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Save(ctx, "org_1", snapshot("acct_a", 90, domain.TierHot)))
	require.NoError(t, f.repo.Save(ctx, "org_1", snapshot("acct_b", 70, domain.TierHot)))
	require.NoError(t, f.repo.Save(ctx, "org_1", snapshot("acct_c", 30, domain.TierCold)))

	// Cache serves the ranking
	f.board.top = []string{"acct_a", "acct_b"}
	listed, err := f.service.ListTop(ctx, "org_1", "", 2)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "acct_a", listed[0].AccountID)
	assert.Equal(t, "acct_b", listed[1].AccountID)

	// Cache failure falls back to sqlite
	f.board.top = nil
	f.board.err = errors.New("redis down")
	listed, err = f.service.ListTop(ctx, "org_1", "", 10)
	require.NoError(t, err)
	require.Len(t, listed, 3)

	// Tier filters always go to sqlite
	f.board.top = []string{"acct_a"}
	f.board.err = nil
	listed, err = f.service.ListTop(ctx, "org_1", domain.TierCold, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "acct_c", listed[0].AccountID)
}
