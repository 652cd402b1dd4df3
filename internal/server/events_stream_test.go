package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/relaycrm/pulse/internal/events"
)

// dialStream connects a websocket client to the handler and consumes the
// initial connected frame, so the subscription is active before the test
// emits anything.
func dialStream(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(url, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var hello map[string]any
	require.NoError(t, json.Unmarshal(data, &hello))
	require.Equal(t, "connected", hello["type"])

	return conn
}

func readStreamMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]any {
	t.Helper()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestStreamHandler_DeliversEvents(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	handler := NewStreamHandler(bus, nil, zerolog.Nop())

	srv := httptest.NewServer(handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialStream(t, ctx, srv.URL)

	bus.Emit(events.ScoreUpdated, "scores", map[string]any{
		"org_id":     "org_a",
		"account_id": "acct_1",
		"score":      72.5,
	})

	msg := readStreamMessage(t, ctx, conn)
	assert.Equal(t, "SCORE_UPDATED", msg["type"])
	assert.Equal(t, "scores", msg["module"])
	assert.NotEmpty(t, msg["timestamp"])

	data, ok := msg["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "acct_1", data["account_id"])
	assert.Equal(t, 72.5, data["score"])
}

func TestStreamHandler_TypesFilter(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	handler := NewStreamHandler(bus, nil, zerolog.Nop())

	srv := httptest.NewServer(handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialStream(t, ctx, srv.URL+"?types=CONFIG_UPDATED")

	// Filtered out, then delivered
	bus.Emit(events.ScoreUpdated, "scores", map[string]any{"account_id": "acct_1"})
	bus.Emit(events.ConfigUpdated, "scoring", map[string]any{"org_id": "org_a"})

	msg := readStreamMessage(t, ctx, conn)
	assert.Equal(t, "CONFIG_UPDATED", msg["type"])
	assert.Equal(t, "scoring", msg["module"])
}

func TestStreamHandler_UnsubscribesOnDisconnect(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	handler := NewStreamHandler(bus, nil, zerolog.Nop())

	srv := httptest.NewServer(handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialStream(t, ctx, srv.URL)
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	// Emitting after the close must not panic or block once the handler
	// has torn the subscription down
	deadline := time.After(2 * time.Second)
	for {
		if bus.SubscriberCount() == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("stream subscription was not removed after disconnect")
		case <-time.After(10 * time.Millisecond):
		}
	}

	bus.Emit(events.ScoreUpdated, "scores", map[string]any{"account_id": "acct_1"})
}
