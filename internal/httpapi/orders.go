package httpapi

import (
	"encoding/json"
	"errors"
	"expvar"
	"io"
	"net/http"
	"sort"
	"strings"

	"kioskpos/internal/events"
	"kioskpos/internal/models"
	"kioskpos/internal/store"
	"kioskpos/internal/telemetry"
	"kioskpos/internal/turn"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const defaultChannel = "kiosk"

var (
	ordersCreated    = expvar.NewInt("orders_created_total")
	orderTransitions = expvar.NewMap("order_transitions_total")
)

type createOrderRequest struct {
	RequestID string                 `json:"request_id"`
	Channel   string                 `json:"channel"`
	Items     []store.OrderLineInput `json:"items"`
}

type orderActionRequest struct {
	RequestID string `json:"request_id"`
}

// registerOrderRoutes adds the staff order routes. They share the /orders
// prefix with the public create and current-display routes, so they are
// registered flat rather than mounted as a sub-router.
func (h *Handler) registerOrderRoutes(r chi.Router) {
	r.Get("/orders", h.handleListOrders)
	r.Get("/orders/kitchen/active", h.handleKitchenActive)
	r.With(requireRole(cashierRoles...)).Get("/orders/pending-payment", h.handlePendingPayment)
	r.With(requireRole(adminRoles...)).Get("/orders/kitchen-view", h.handleKitchenView)
	r.Get("/orders/{id}", h.handleGetOrder)

	r.With(requireRole(cashierRoles...)).Patch("/orders/{id}/mark-paid", h.orderAction(store.ActionMarkPaid))
	r.With(requireRole(cashierRoles...)).Patch("/orders/{id}/cancel", h.orderAction(store.ActionCancel))
	r.With(requireRole(staffRoles...)).Patch("/orders/{id}/mark-ready", h.orderAction(store.ActionMarkReady))
	r.With(requireRole(staffRoles...)).Patch("/orders/{id}/send-to-display", h.orderAction(store.ActionSendToDisplay))
	r.With(requireRole(staffRoles...)).Patch("/orders/{id}/mark-delivered", h.orderAction(store.ActionMarkDelivered))
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.Channel = strings.TrimSpace(req.Channel)

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	} else if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}
	if req.Channel == "" {
		req.Channel = defaultChannel
	}
	if len(req.Items) == 0 {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "items are required")
		return
	}
	for i := range req.Items {
		req.Items[i].ProductID = strings.TrimSpace(req.Items[i].ProductID)
		if req.Items[i].ProductID == "" {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "product_id is required for every item")
			return
		}
		if req.Items[i].Quantity < 1 {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "quantity must be at least 1")
			return
		}
	}

	order, created, err := h.store.CreateOrder(r.Context(), store.CreateOrderInput{
		RequestID:    req.RequestID,
		Channel:      req.Channel,
		Lines:        req.Items,
		BusinessDate: h.clock.Today(),
		CreatedAt:    h.clock.Now(),
	})
	if err != nil {
		writeStoreError(w, req.RequestID, err)
		return
	}
	telemetry.AnnotateOrder(r.Context(), order.OrderID, order.TurnNumber, order.Status)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		ordersCreated.Add(1)
		events.Emit(r.Context(), h.publisher, events.OrderCreated(order))
	}
	writeJSON(w, status, order)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = h.clock.Today()
	}
	if !turn.ValidDate(date) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}
	h.listOrders(w, r, store.OrderFilter{DateFrom: date, DateTo: date})
}

func (h *Handler) handlePendingPayment(w http.ResponseWriter, r *http.Request) {
	today := h.clock.Today()
	h.listOrders(w, r, store.OrderFilter{DateFrom: today, DateTo: today, Statuses: []string{models.StatusPendingPayment}})
}

func (h *Handler) handleKitchenActive(w http.ResponseWriter, r *http.Request) {
	today := h.clock.Today()
	h.listOrders(w, r, store.OrderFilter{DateFrom: today, DateTo: today, Statuses: []string{models.StatusInKitchen}})
}

func (h *Handler) handleKitchenView(w http.ResponseWriter, r *http.Request) {
	today := h.clock.Today()
	h.listOrders(w, r, store.OrderFilter{DateFrom: today, DateTo: today, Statuses: store.KitchenStatuses})
}

// listOrders answers oldest first so screens serve customers in turn order.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, filter store.OrderFilter) {
	orders, err := h.store.ListOrders(r.Context(), filter)
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleCurrentDisplay(w http.ResponseWriter, r *http.Request) {
	order, found, err := h.store.CurrentDisplay(r.Context(), h.clock.Today())
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) orderAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := orderIDParam(w, r)
		if !ok {
			return
		}
		var req orderActionRequest
		if !decodeOptional(w, r, &req) {
			return
		}
		requestID := strings.TrimSpace(req.RequestID)
		if requestID == "" {
			requestID = requestIDFromRequest(r)
		}
		if requestID != "" && !isValidUUID(requestID) {
			writeError(w, requestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
			return
		}

		order, applied, err := h.store.TransitionOrder(r.Context(), store.OrderActionInput{
			RequestID:  requestID,
			OrderID:    orderID,
			Action:     action,
			OccurredAt: h.clock.Now(),
		})
		if err != nil {
			writeStoreError(w, requestID, err)
			return
		}
		telemetry.AnnotateOrder(r.Context(), order.OrderID, order.TurnNumber, order.Status)

		if applied {
			orderTransitions.Add(action, 1)
			transition, _ := store.LookupTransition(action)
			events.Emit(r.Context(), h.publisher, events.StatusChanged(order, transition.Source(order), h.clock.Now()))
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "id"))
	if !isValidUUID(orderID) {
		writeError(w, requestIDFromRequest(r), http.StatusNotFound, "order_not_found", "order not found")
		return "", false
	}
	return orderID, true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if r.Body == nil {
		return true
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}
