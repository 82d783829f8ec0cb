package store

import (
	"time"

	"kioskpos/internal/models"
)

const (
	ActionMarkPaid      = "mark_paid"
	ActionCancel        = "cancel"
	ActionMarkReady     = "mark_ready"
	ActionSendToDisplay = "send_to_display"
	ActionMarkDelivered = "mark_delivered"
)

type Transition struct {
	Action string
	From   []string
	To     string
	// Column is the timestamp recorded when the transition applies.
	Column string
}

var transitionMap = map[string]Transition{
	ActionMarkPaid:      {ActionMarkPaid, []string{models.StatusPendingPayment}, models.StatusInKitchen, "paid_at"},
	ActionCancel:        {ActionCancel, []string{models.StatusPendingPayment}, models.StatusCancelled, "cancelled_at"},
	ActionMarkReady:     {ActionMarkReady, []string{models.StatusInKitchen}, models.StatusReady, "ready_at"},
	ActionSendToDisplay: {ActionSendToDisplay, []string{models.StatusReady}, models.StatusOnDisplay, "displayed_at"},
	ActionMarkDelivered: {ActionMarkDelivered, []string{models.StatusReady, models.StatusOnDisplay}, models.StatusDelivered, "delivered_at"},
}

func LookupTransition(action string) (Transition, bool) {
	t, ok := transitionMap[action]
	return t, ok
}

func ValidTransition(action, fromStatus string) bool {
	t, ok := transitionMap[action]
	if !ok {
		return false
	}
	return t.Allows(fromStatus)
}

func (t Transition) Allows(fromStatus string) bool {
	for _, status := range t.From {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// Apply moves order to the target status and stamps the matching timestamp.
// The caller checks Allows first.
func (t Transition) Apply(order *models.Order, at time.Time) {
	order.Status = t.To
	stamp := at
	switch t.Column {
	case "paid_at":
		order.PaidAt = &stamp
	case "cancelled_at":
		order.CancelledAt = &stamp
	case "ready_at":
		order.ReadyAt = &stamp
	case "displayed_at":
		order.DisplayedAt = &stamp
	case "delivered_at":
		order.DeliveredAt = &stamp
	}
}

// KitchenStatuses are the orders the kitchen is working on or has plated.
var KitchenStatuses = []string{models.StatusInKitchen, models.StatusReady}

// SaleStatuses are the statuses counted as sales.
var SaleStatuses = []string{models.StatusInKitchen, models.StatusReady, models.StatusOnDisplay, models.StatusDelivered}

// Source reports which of the allowed statuses order left when t was applied
// to it. Only mark_delivered has more than one source; an order that passed
// through the monitor carries a displayed_at stamp.
func (t Transition) Source(order models.Order) string {
	if len(t.From) == 1 {
		return t.From[0]
	}
	if order.DisplayedAt != nil && t.Allows(models.StatusOnDisplay) {
		return models.StatusOnDisplay
	}
	return t.From[0]
}
