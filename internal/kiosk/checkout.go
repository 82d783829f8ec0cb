// Package kiosk turns a customer's cart into a submitted order.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"kioskpos/internal/cart"
	"kioskpos/internal/client"
	"kioskpos/internal/models"
)

const Channel = "kiosk"

var ErrEmptyCart = errors.New("cart is empty")

// Submitter is the part of the REST client checkout needs.
type Submitter interface {
	CreateOrder(ctx context.Context, req client.CreateOrderRequest) (models.Order, error)
}

// Checkout submits the cart as one order. The cart is cleared only when the
// order was accepted, so a failed submission can be retried as is. Retries of
// an unchanged cart reuse its request id, so an order the server committed
// before the client gave up is returned instead of created twice.
func Checkout(ctx context.Context, c *cart.Cart, submitter Submitter) (models.Order, error) {
	items, requestID := c.Submission()
	if len(items) == 0 {
		return models.Order{}, ErrEmptyCart
	}

	order, err := submitter.CreateOrder(ctx, client.CreateOrderRequest{
		RequestID: requestID,
		Channel:   Channel,
		Items:     items,
	})
	if err != nil {
		return models.Order{}, fmt.Errorf("submit order: %w", err)
	}
	c.Clear()
	return order, nil
}

// Describe maps a checkout or polling error to a notifier key and the text
// shown to the operator.
func Describe(err error) (string, string) {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty-cart", "Add at least one product before ordering."
	case errors.As(err, &apiErr) && apiErr.Code == "product_unavailable":
		return "product-unavailable", "A product in the order is no longer available."
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized:
		return "unauthorized", "Session expired, sign in again."
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden:
		return "forbidden", "This account is not allowed to do that."
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
		return "invalid-state", "The order already moved on, refresh the list."
	case client.IsTransient(err):
		return "unreachable", "Could not reach the order service, retrying."
	default:
		return "error", "Something went wrong: " + err.Error()
	}
}
