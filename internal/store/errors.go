package store

import "errors"

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidState       = errors.New("invalid order state")
	ErrUnknownAction      = errors.New("unknown order action")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrAccessDenied       = errors.New("access denied")
	// ErrRequestConflict means a request id was already used for a different
	// order or action.
	ErrRequestConflict = errors.New("request id already used for another change")
)
