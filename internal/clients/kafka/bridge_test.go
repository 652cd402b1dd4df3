package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/pulse/internal/events"
)

// Compile-time interface checks
var (
	_ Publisher = (*Writer)(nil)
	_ Publisher = NoopPublisher{}
)

// mockPublisher captures published events
type mockPublisher struct {
	mu     sync.Mutex
	events []*events.Event
	closed bool
}

func (m *mockPublisher) Publish(_ context.Context, event *events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// TestBridgeForwardsEvents tests the bus-to-publisher path
func TestBridgeForwardsEvents(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	mock := &mockPublisher{}

	bridge := NewBridge(bus, mock, zerolog.Nop())
	bridge.Start()

	bus.Emit(events.ScoreUpdated, "scores", map[string]any{
		"org_id":     "org_1",
		"account_id": "acct_1",
		"score":      80.0,
	})

	require.Eventually(t, func() bool {
		return mock.count() == 1
	}, time.Second, 10*time.Millisecond)

	mock.mu.Lock()
	assert.Equal(t, events.ScoreUpdated, mock.events[0].Type)
	mock.mu.Unlock()

	require.NoError(t, bridge.Close())
	assert.True(t, mock.closed)
}

// TestBridgeCloseDrainsBuffered tests that Close flushes the queue before
// stopping
func TestBridgeCloseDrainsBuffered(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	mock := &mockPublisher{}

	bridge := NewBridge(bus, mock, zerolog.Nop())

	// Queue up events before the pump starts
	for i := 0; i < 3; i++ {
		bus.Emit(events.ConfigUpdated, "scoring", map[string]any{"org_id": "org_1"})
	}

	bridge.Start()
	require.NoError(t, bridge.Close())

	assert.Equal(t, 3, mock.count())
}

// TestBridgeDropsWhenFull tests that a stalled publisher never blocks the
// bus emit path
func TestBridgeDropsWhenFull(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	mock := &mockPublisher{}

	bridge := NewBridge(bus, mock, zerolog.Nop())

	// Pump not started: the buffer fills and the rest must drop, not block
	for i := 0; i < bridgeBuffer+50; i++ {
		bus.Emit(events.ScoreUpdated, "scores", map[string]any{"org_id": "org_1"})
	}

	bridge.Start()
	require.NoError(t, bridge.Close())

	assert.Equal(t, bridgeBuffer, mock.count())
}

// TestPartitionKey tests the ordering key choice
func TestPartitionKey(t *testing.T) {
	byAccount := &events.Event{
		Type: events.ScoreUpdated,
		Data: map[string]any{"org_id": "org_1", "account_id": "acct_1"},
	}
	assert.Equal(t, "acct_1", partitionKey(byAccount))

	byOrg := &events.Event{
		Type: events.ConfigUpdated,
		Data: map[string]any{"org_id": "org_1"},
	}
	assert.Equal(t, "org_1", partitionKey(byOrg))

	byType := &events.Event{
		Type: events.BackupCompleted,
		Data: map[string]any{"key": "backups/pulse.tar.gz"},
	}
	assert.Equal(t, string(events.BackupCompleted), partitionKey(byType))
}
