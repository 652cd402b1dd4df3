// Package kafka publishes scoring events to downstream services.
//
// Score changes land on pulse.scores and config changes on pulse.config,
// keyed by account or org so each consumer partition sees its keys in
// order. Webhook and alerting services consume these topics; nothing in
// this process does.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/relaycrm/pulse/internal/events"
)

// Default topics by event type. Events without a mapping stay in-process.
var defaultTopics = map[events.EventType]string{
	events.ScoreUpdated:  "pulse.scores",
	events.ConfigUpdated: "pulse.config",
	events.ConfigReset:   "pulse.config",
}

// Publisher is the outbound event sink. The bridge forwards bus events to
// it; the noop variant keeps the wiring identical when Kafka is off.
type Publisher interface {
	// Publish sends one event to its topic. Events without a topic
	// mapping are dropped silently.
	Publish(ctx context.Context, event *events.Event) error

	Close() error
}

// Writer publishes events to Kafka.
type Writer struct {
	writer       *kafka.Writer
	topicByEvent map[events.EventType]string
	log          zerolog.Logger
}

// NewWriter creates a Kafka publisher over the given brokers.
func NewWriter(brokers []string, log zerolog.Logger) (*Writer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}

	return &Writer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topicByEvent: defaultTopics,
		log:          log.With().Str("client", "kafka").Logger(),
	}, nil
}

// Publish sends the event to its mapped topic, keyed by account when the
// payload names one, else by org.
func (w *Writer) Publish(ctx context.Context, event *events.Event) error {
	topic, ok := w.topicByEvent[event.Type]
	if !ok {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.Type, err)
	}

	return w.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(partitionKey(event)),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

// Close flushes and closes the underlying writer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// partitionKey picks the ordering key: per account when the event names
// one, else per org, else the event type.
func partitionKey(event *events.Event) string {
	if accountID, ok := event.Data["account_id"].(string); ok && accountID != "" {
		return accountID
	}
	if orgID, ok := event.Data["org_id"].(string); ok && orgID != "" {
		return orgID
	}
	return string(event.Type)
}

// NoopPublisher drops every event. Wired when no brokers are configured so
// the rest of the pipeline never branches on Kafka availability.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *events.Event) error { return nil }

func (NoopPublisher) Close() error { return nil }
