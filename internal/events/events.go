// Package events publishes order lifecycle changes to the configured brokers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"kioskpos/internal/models"
	"kioskpos/internal/telemetry"

	"github.com/google/uuid"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

type Event struct {
	EventID        string       `json:"event_id"`
	Type           string       `json:"type"`
	PreviousStatus string       `json:"previous_status,omitempty"`
	Order          models.Order `json:"order"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

func OrderCreated(order models.Order) Event {
	return Event{
		EventID:    uuid.NewString(),
		Type:       TypeOrderCreated,
		Order:      order,
		OccurredAt: order.CreatedAt,
	}
}

func StatusChanged(order models.Order, previous string, at time.Time) Event {
	return Event{
		EventID:        uuid.NewString(),
		Type:           TypeOrderStatusChanged,
		PreviousStatus: previous,
		Order:          order,
		OccurredAt:     at,
	}
}

// Key is the routing key: the event type followed by the order's status,
// e.g. "order.status_changed.ready".
func (e Event) Key() string {
	return e.Type + "." + strings.ToLower(e.Order.Status)
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type Noop struct{}

func (Noop) Publish(ctx context.Context, event Event) error { return nil }
func (Noop) Close() error                                   { return nil }

// Multi delivers every event to all publishers. A failing publisher does not
// stop delivery to the rest.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emit publishes event and logs a failure. Order changes are already
// committed when events go out, so a broker outage never fails the request.
func Emit(ctx context.Context, publisher Publisher, event Event) {
	if publisher == nil {
		return
	}
	ctx, span := telemetry.Start(ctx, "events.publish")
	defer span.End()
	if err := publisher.Publish(ctx, event); err != nil {
		span.RecordError(err)
		log.Printf("event publish failed type=%s order_id=%s err=%v", event.Type, event.Order.OrderID, err)
	}
}
