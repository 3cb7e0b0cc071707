// Package notify is the fan-out publisher: it puts tagged notification events
// onto a user's personal notification topic. Delivery is at-most-once and
// best-effort; with no session subscribed the event is simply dropped.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MaciejkaG/lux-backend/pkg/presence"
)

// Event kinds carried on notification topics.
const (
	KindFriendRequest = "friend_request"
	KindFriendDeleted = "friend_deleted"
)

// Event is the tagged payload published on a notification topic. It exists
// only on the wire; nothing persists it.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Publisher publishes notification events through the presence store.
type Publisher struct {
	store   *presence.Store
	counter metric.Int64Counter
}

func NewPublisher(store *presence.Store, meter metric.Meter) *Publisher {
	counter, _ := meter.Int64Counter("notifications_published_total",
		metric.WithDescription("Total notification events published to user topics"))
	return &Publisher{store: store, counter: counter}
}

// Notify publishes a tagged event onto the target user's notification topic.
// Ordering holds only per topic, as far as the store preserves it.
func (p *Publisher) Notify(ctx context.Context, targetPublicID, kind string, data any) error {
	body, err := encodeEvent(kind, data)
	if err != nil {
		return err
	}
	topic := p.store.NotificationTopic(targetPublicID)
	if err := p.store.PublishTraced(ctx, topic, body); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	p.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	return nil
}

// encodeEvent builds the wire form of a tagged event.
func encodeEvent(kind string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode notification data: %w", err)
	}
	body, err := json.Marshal(Event{Event: kind, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encode notification event: %w", err)
	}
	return body, nil
}
