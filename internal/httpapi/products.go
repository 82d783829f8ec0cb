package httpapi

import (
	"net/http"
	"strings"

	"kioskpos/internal/models"
	"kioskpos/internal/store"

	"github.com/go-chi/chi/v5"
)

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
	Available   *bool  `json:"available"`
	Featured    *bool  `json:"featured"`
}

func (h *Handler) registerProductAdminRoutes(r chi.Router) {
	r.Get("/products/admin/all", h.handleListAllProducts)
	r.Post("/products", h.handleCreateProduct)
	r.Put("/products/{id}", h.handleUpdateProduct)
	r.Delete("/products/{id}", h.handleDeleteProduct)
	r.Patch("/products/{id}/toggle-availability", h.handleToggleAvailability)
	r.Patch("/products/{id}/toggle-featured", h.handleToggleFeatured)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	h.listProducts(w, r, store.ProductFilter{OnlyAvailable: true})
}

func (h *Handler) handleFeaturedProducts(w http.ResponseWriter, r *http.Request) {
	h.listProducts(w, r, store.ProductFilter{OnlyAvailable: true, OnlyFeatured: true})
}

func (h *Handler) handleProductsByCategory(w http.ResponseWriter, r *http.Request) {
	category := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "category")))
	if !models.IsValidCategory(category) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "unknown category")
		return
	}
	h.listProducts(w, r, store.ProductFilter{Category: category, OnlyAvailable: true})
}

func (h *Handler) handleListAllProducts(w http.ResponseWriter, r *http.Request) {
	h.listProducts(w, r, store.ProductFilter{})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request, filter store.ProductFilter) {
	products, err := h.store.ListProducts(r.Context(), filter)
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	product, err := h.store.GetProduct(r.Context(), productID)
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	product, err := h.store.CreateProduct(r.Context(), input)
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	input, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	product, err := h.store.UpdateProduct(r.Context(), productID, input)
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteProduct(r.Context(), productID); err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleToggleAvailability(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	product, err := h.store.ToggleAvailability(r.Context(), productID)
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) handleToggleFeatured(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	product, err := h.store.ToggleFeatured(r.Context(), productID)
	if err != nil {
		writeStoreError(w, requestIDFromRequest(r), err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// productIDParam answers 404 for ids that are not UUIDs, the same as an id
// that is well formed but unknown.
func productIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	productID := strings.TrimSpace(chi.URLParam(r, "id"))
	if !isValidUUID(productID) {
		writeError(w, requestIDFromRequest(r), http.StatusNotFound, "product_not_found", "product not found")
		return "", false
	}
	return productID, true
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (store.ProductInput, bool) {
	var req productRequest
	if !decodeRequest(w, r, &req) {
		return store.ProductInput{}, false
	}
	input := store.ProductInput{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Category:    strings.ToUpper(strings.TrimSpace(req.Category)),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		Available:   true,
	}
	if req.Available != nil {
		input.Available = *req.Available
	}
	if req.Featured != nil {
		input.Featured = *req.Featured
	}

	requestID := requestIDFromRequest(r)
	if input.Name == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "name is required")
		return store.ProductInput{}, false
	}
	if input.Price <= 0 {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "price must be greater than zero")
		return store.ProductInput{}, false
	}
	if !models.IsValidCategory(input.Category) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "unknown category")
		return store.ProductInput{}, false
	}
	return input, true
}
