package kafka

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/events"
)

const (
	// Events buffered between the bus and the publisher goroutine.
	// The bus contract forbids blocking handlers; when Kafka falls behind
	// the bridge drops events rather than stall score computes.
	bridgeBuffer = 256

	publishTimeout = 5 * time.Second
)

// Bridge forwards bus events to the publisher on its own goroutine.
type Bridge struct {
	publisher   Publisher
	log         zerolog.Logger
	queue       chan *events.Event
	quit        chan struct{}
	done        chan struct{}
	unsubscribe func()
}

// NewBridge creates a bridge between the in-process bus and the publisher.
// Call Start to begin forwarding and Close to drain and stop.
func NewBridge(bus *events.Bus, publisher Publisher, log zerolog.Logger) *Bridge {
	b := &Bridge{
		publisher: publisher,
		log:       log.With().Str("component", "kafka_bridge").Logger(),
		queue:     make(chan *events.Event, bridgeBuffer),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	b.unsubscribe = bus.SubscribeAll(b.enqueue)
	return b
}

// Start launches the forwarding goroutine.
func (b *Bridge) Start() {
	go b.pump()
}

// Close detaches from the bus, drains buffered events and stops.
func (b *Bridge) Close() error {
	b.unsubscribe()
	close(b.quit)
	<-b.done
	return b.publisher.Close()
}

// enqueue runs on the bus emit path and must never block
func (b *Bridge) enqueue(event *events.Event) {
	select {
	case b.queue <- event:
	default:
		b.log.Warn().
			Str("event_type", string(event.Type)).
			Msg("Kafka bridge buffer full, dropping event")
	}
}

func (b *Bridge) pump() {
	defer close(b.done)

	for {
		select {
		case event := <-b.queue:
			b.publish(event)
		case <-b.quit:
			// Drain whatever is already buffered, then stop
			for {
				select {
				case event := <-b.queue:
					b.publish(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bridge) publish(event *events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := b.publisher.Publish(ctx, event); err != nil {
		b.log.Warn().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("Failed to publish event to Kafka")
	}
}
