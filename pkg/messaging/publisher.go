package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

// EventPublisher wraps a Broker, publishing each event as a Message on the
// channel named after the event type.
type EventPublisher struct {
	broker  Broker
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEventPublisher(broker Broker, log *logger.Logger, m *metrics.Metrics) *EventPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &EventPublisher{broker: broker, logger: log, metrics: m, now: time.Now}
}

func (p *EventPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	msg := Message{Type: eventType, Payload: payload, OccurredAt: p.now().UTC()}
	err := p.broker.Publish(ctx, eventType, msg)
	p.metrics.ObserveEvent(eventType, err)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	return nil
}

// Listen subscribes to a channel and hands every decoded message to handler
// until ctx is done. Handler errors are logged and processing continues.
func Listen(ctx context.Context, broker Broker, channel string, log *logger.Logger, handler func(Message) error) error {
	msgChan, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	if log == nil {
		log = logger.Nop()
	}

	go func() {
		for raw := range msgChan {
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Error(err, "failed to decode message", "channel", channel)
				continue
			}
			if err := handler(msg); err != nil {
				log.Error(err, "message handler failed", "channel", channel, "type", msg.Type)
			}
		}
	}()
	return nil
}
