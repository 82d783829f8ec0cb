package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"kioskpos/internal/reports"
	"kioskpos/internal/turn"

	"github.com/go-chi/chi/v5"
)

const defaultTopLimit = 10

type topProductsResponse struct {
	From     string                `json:"from"`
	To       string                `json:"to"`
	Products []reports.ProductLine `json:"products"`
}

func (h *Handler) registerReportRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/today", h.handleReportToday)
		r.Get("/range", h.handleReportRange)
		r.Get("/top-products", h.handleTopProducts)
		r.Get("/statistics", h.handleStatistics)
		r.Get("/export", h.handleExport)
	})
}

func (h *Handler) handleReportToday(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Today(r.Context())
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleReportRange(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	summary, err := h.reports.Range(r.Context(), from, to)
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	limit := defaultTopLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = value
	}
	summary, err := h.reports.Range(r.Context(), from, to)
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	products := reports.Top(summary, limit)
	if products == nil {
		products = []reports.ProductLine{}
	}
	writeJSON(w, http.StatusOK, topProductsResponse{From: from, To: to, Products: products})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Statistics(r.Context())
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	orders, err := h.reports.Orders(r.Context(), from, to)
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sales_`+from+`_`+to+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_ = reports.WriteCSV(w, orders)
}

// dateRange reads from/to (or the fechaInicio/fechaFin names older
// dashboards send). Both default to today.
func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	query := r.URL.Query()
	from := firstNonEmpty(query.Get("from"), query.Get("fechaInicio"))
	to := firstNonEmpty(query.Get("to"), query.Get("fechaFin"))
	today := h.clock.Today()
	if from == "" {
		from = today
	}
	if to == "" {
		to = today
	}
	if !turn.ValidDate(from) || !turn.ValidDate(to) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "from and to must be YYYY-MM-DD")
		return "", "", false
	}
	if from > to {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "from must not be after to")
		return "", "", false
	}
	return from, to, true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
