package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"kioskpos/internal/events"
	"kioskpos/internal/reports"
	"kioskpos/internal/store"
	"kioskpos/internal/turn"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	store      store.Store
	reports    *reports.Service
	publisher  events.Publisher
	clock      turn.Clock
	sessionTTL time.Duration
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Options struct {
	Clock      turn.Clock
	Publisher  events.Publisher
	SessionTTL time.Duration
}

func NewHandler(st store.Store, options Options) *Handler {
	publisher := options.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	ttl := options.SessionTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Handler{
		store:      st,
		reports:    reports.NewService(st, options.Clock),
		publisher:  publisher,
		clock:      options.Clock,
		sessionTTL: ttl,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.handleLogin)
		r.Post("/orders", h.handleCreateOrder)
		r.Get("/orders/current-display", h.handleCurrentDisplay)
		r.Get("/products", h.handleListProducts)
		r.Get("/products/featured", h.handleFeaturedProducts)
		r.Get("/products/category/{category}", h.handleProductsByCategory)
		r.Get("/products/{id}", h.handleGetProduct)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.store))
			r.Get("/auth/me", h.handleMe)
			h.registerOrderRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(adminRoles...))
				h.registerProductAdminRoutes(r)
				h.registerReportRoutes(r)
			})
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found", "product not found"
	case errors.Is(err, store.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found", "order not found"
	case errors.Is(err, store.ErrProductUnavailable):
		return http.StatusConflict, "product_unavailable", "product is not available"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "order state does not allow this action"
	case errors.Is(err, store.ErrRequestConflict):
		return http.StatusConflict, "request_conflict", "request id already used for another change"
	case errors.Is(err, store.ErrUnknownAction):
		return http.StatusBadRequest, "invalid_request", "unknown order action"
	case errors.Is(err, store.ErrEmptyOrder):
		return http.StatusBadRequest, "invalid_request", "order has no items"
	case errors.Is(err, store.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_request", "quantity must be at least 1"
	case errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthorized", "invalid email or password"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusUnauthorized, "unauthorized", "invalid session"
	case errors.Is(err, store.ErrAccessDenied):
		return http.StatusForbidden, "access_denied", "access denied"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeStoreError(w http.ResponseWriter, requestID string, err error) {
	status, code, message := mapError(err)
	writeError(w, requestID, status, code, message)
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}
