// Package server provides the HTTP server and routing for Pulse.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/relaycrm/pulse/internal/auth"
	"github.com/relaycrm/pulse/internal/events"
	"github.com/relaycrm/pulse/internal/observability"
)

const (
	// streamBufferSize is the per-client event buffer. Emitters never block;
	// a client that cannot keep up loses events instead.
	streamBufferSize = 100

	// streamWriteWait bounds a single websocket write or ping
	streamWriteWait = 10 * time.Second

	// heartbeatInterval keeps idle connections alive through proxies
	heartbeatInterval = 30 * time.Second
)

// StreamHandler pushes bus events to websocket clients as JSON messages.
type StreamHandler struct {
	eventBus *events.Bus
	metrics  *observability.Metrics
	log      zerolog.Logger
}

// NewStreamHandler creates a new websocket event stream handler.
func NewStreamHandler(eventBus *events.Bus, metrics *observability.Metrics, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		eventBus: eventBus,
		metrics:  metrics,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws requests.
// An optional ?types=SCORE_UPDATED,CONFIG_UPDATED query parameter narrows the
// stream to the listed event types.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	typesFilter := r.URL.Query().Get("types")

	var allowedTypes map[events.EventType]bool
	if typesFilter != "" {
		allowedTypes = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowedTypes[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	h.metrics.StreamClientConnected()
	defer h.metrics.StreamClientDisconnected()

	h.log.Info().
		Str("types_filter", typesFilter).
		Str("org_id", auth.OrgID(r.Context())).
		Msg("Client connected to event stream")

	// Create event channel for this connection
	eventChan := make(chan *events.Event, streamBufferSize)

	unsubscribe := h.eventBus.SubscribeAll(func(event *events.Event) {
		// Apply type filter if specified
		if allowedTypes != nil && !allowedTypes[event.Type] {
			return
		}

		// Non-blocking send (drop if channel full)
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	})
	defer unsubscribe()

	// CloseRead discards incoming messages and cancels the context when the
	// client goes away
	ctx := conn.CloseRead(r.Context())

	// Send initial connection message
	if err := h.writeMessage(ctx, conn, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}); err != nil {
		return
	}

	// Heartbeat ticker to keep connection alive
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			payload := map[string]interface{}{
				"type":      string(event.Type),
				"module":    event.Module,
				"timestamp": event.Timestamp.Format(time.RFC3339),
				"data":      event.Data,
			}
			if err := h.writeMessage(ctx, conn, payload); err != nil {
				h.log.Debug().Err(err).Msg("Websocket write failed, closing stream")
				return
			}

		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, streamWriteWait)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Websocket ping failed, closing stream")
				return
			}
		}
	}
}

// writeMessage marshals the payload and writes it as one text frame.
// Marshal failures drop the message but keep the stream open.
func (h *StreamHandler) writeMessage(ctx context.Context, conn *websocket.Conn, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, streamWriteWait)
	defer cancel()

	return conn.Write(writeCtx, websocket.MessageText, data)
}
