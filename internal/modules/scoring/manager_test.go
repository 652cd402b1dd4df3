package scoring_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/events"
	"github.com/relaycrm/pulse/internal/modules/scoring"
)

// setupManager creates a manager over an in-memory repo with the embedded
// platform defaults
func setupManager(t *testing.T) (*scoring.Manager, *events.Bus) {
	t.Helper()

	repo, _ := setupRepo(t)
	bus := events.NewBus(zerolog.Nop())

	defaults, err := scoring.LoadDefaults("")
	require.NoError(t, err)

	return scoring.NewManager(repo, defaults, bus, zerolog.Nop()), bus
}

// TestManagerGetFallsBackToDefaults tests that fresh orgs score under the
// platform seed
func TestManagerGetFallsBackToDefaults(t *testing.T) {
	manager, _ := setupManager(t)

	cfg, err := manager.Get(context.Background(), "org_fresh")
	require.NoError(t, err)

	defaults, err := scoring.LoadDefaults("")
	require.NoError(t, err)
	assert.Equal(t, defaults, cfg)
}

// TestManagerUpdatePersists tests the update round trip and its event
func TestManagerUpdatePersists(t *testing.T) {
	manager, bus := setupManager(t)
	ctx := context.Background()

	var emitted []*events.Event
	bus.Subscribe(events.ConfigUpdated, func(event *events.Event) {
		emitted = append(emitted, event)
	})

	saved, err := manager.Update(ctx, "org_1", testConfig(160))
	require.NoError(t, err)
	assert.Equal(t, 160.0, saved.MaxScore)

	loaded, err := manager.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, 160.0, loaded.MaxScore)
	assert.Len(t, loaded.Rules, 2)

	require.Len(t, emitted, 1)
	assert.Equal(t, "org_1", emitted[0].Data["org_id"])
	assert.Equal(t, 2, emitted[0].Data["rule_count"])
}

// TestManagerUpdateInvalidPersistsNothing tests that validation runs before
// any write
func TestManagerUpdateInvalidPersistsNothing(t *testing.T) {
	manager, bus := setupManager(t)
	ctx := context.Background()

	var updates int
	bus.Subscribe(events.ConfigUpdated, func(event *events.Event) {
		updates++
	})

	_, err := manager.Update(ctx, "org_1", testConfig(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
	assert.Zero(t, updates)

	// The org still scores under the defaults
	defaults, err := scoring.LoadDefaults("")
	require.NoError(t, err)
	loaded, err := manager.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, defaults, loaded)
}

// TestManagerReset tests restoring the platform default
func TestManagerReset(t *testing.T) {
	manager, bus := setupManager(t)
	ctx := context.Background()

	var resets int
	bus.Subscribe(events.ConfigReset, func(event *events.Event) {
		resets++
	})

	_, err := manager.Update(ctx, "org_1", testConfig(160))
	require.NoError(t, err)

	cfg, err := manager.Reset(ctx, "org_1")
	require.NoError(t, err)

	defaults, err := scoring.LoadDefaults("")
	require.NoError(t, err)
	assert.Equal(t, defaults, cfg)

	loaded, err := manager.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, defaults, loaded)

	assert.Equal(t, 1, resets)
}
