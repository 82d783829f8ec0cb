package hub

import (
	"context"
	"testing"
	"time"

	"kioskpos/internal/events"
	"kioskpos/internal/models"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		view     string
		status   string
		previous string
		want     bool
	}{
		{"all views", ViewAll, models.StatusDelivered, models.StatusOnDisplay, true},
		{"kitchen new ticket", ViewKitchen, models.StatusInKitchen, models.StatusPendingPayment, true},
		{"kitchen loses ticket", ViewKitchen, models.StatusOnDisplay, models.StatusReady, true},
		{"kitchen ignores creation", ViewKitchen, models.StatusPendingPayment, "", false},
		{"cashier creation", ViewCashier, models.StatusPendingPayment, "", true},
		{"cashier paid", ViewCashier, models.StatusInKitchen, models.StatusPendingPayment, true},
		{"monitor shows", ViewMonitor, models.StatusOnDisplay, models.StatusReady, true},
		{"monitor ignores kitchen", ViewMonitor, models.StatusReady, models.StatusInKitchen, false},
		{"unknown view", "lobby", models.StatusReady, "", false},
		{"unsubscribed", ViewNone, models.StatusOnDisplay, models.StatusReady, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event := events.Event{Order: models.Order{Status: tc.status}, PreviousStatus: tc.previous}
			if got := match(tc.view, event); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestPublishRoutesByView(t *testing.T) {
	h := New()
	kitchen := &Client{ID: "k", Send: make(chan []byte, 1), View: ViewKitchen}
	monitor := &Client{ID: "m", Send: make(chan []byte, 1), View: ViewMonitor}
	h.Register(kitchen)
	h.Register(monitor)

	order := models.Order{OrderID: "o1", Status: models.StatusInKitchen}
	if err := h.Publish(context.Background(), events.StatusChanged(order, models.StatusPendingPayment, time.Now())); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-kitchen.Send:
	default:
		t.Fatalf("expected kitchen client to receive the event")
	}
	select {
	case <-monitor.Send:
		t.Fatalf("monitor should not receive kitchen events")
	default:
	}
}

func TestPublishDropsForFullClient(t *testing.T) {
	h := New()
	slow := &Client{ID: "slow", Send: make(chan []byte)}
	h.Register(slow)
	if err := h.Publish(context.Background(), events.OrderCreated(models.Order{})); err != nil {
		t.Fatalf("publish should not block or fail: %v", err)
	}
	h.Unregister(slow)
	h.Unregister(slow)
	if h.Len() != 0 {
		t.Fatalf("expected no clients")
	}
}

func TestParseSubscribe(t *testing.T) {
	if msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","view":"kitchen"}`)); !ok || msg.View != ViewKitchen {
		t.Fatalf("expected kitchen subscription, got %+v", msg)
	}
	if _, ok := ParseSubscribe([]byte(`{"action":"subscribe","view":"lobby"}`)); ok {
		t.Fatalf("expected unknown view to be rejected")
	}
	if _, ok := ParseSubscribe([]byte(`{"action":"dance"}`)); ok {
		t.Fatalf("expected unknown action to be rejected")
	}
	if _, ok := ParseSubscribe([]byte(`not json`)); ok {
		t.Fatalf("expected invalid json to be rejected")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := New()
	client := &Client{ID: "c1", Send: make(chan []byte, 4), View: ViewMonitor}
	h.Register(client)

	h.Handle(client, []byte(`{"action":"unsubscribe"}`))
	event := events.Event{Type: events.TypeOrderStatusChanged, Order: models.Order{Status: models.StatusOnDisplay}, PreviousStatus: models.StatusReady}
	if err := h.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(client.Send) != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d messages", len(client.Send))
	}

	h.Handle(client, []byte(`{"action":"subscribe","view":"monitor"}`))
	if err := h.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(client.Send) != 1 {
		t.Fatalf("expected delivery after subscribing again, got %d messages", len(client.Send))
	}
}
