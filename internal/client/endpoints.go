package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"kioskpos/internal/models"
	"kioskpos/internal/reports"
	"kioskpos/internal/store"
)

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

type ProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url,omitempty"`
	Available   *bool  `json:"available,omitempty"`
	Featured    *bool  `json:"featured,omitempty"`
}

type CreateOrderRequest struct {
	RequestID string                 `json:"request_id,omitempty"`
	Channel   string                 `json:"channel,omitempty"`
	Items     []store.OrderLineInput `json:"items"`
}

type TopProducts struct {
	From     string                `json:"from"`
	To       string                `json:"to"`
	Products []reports.ProductLine `json:"products"`
}

// Order actions as they appear in the URL.
const (
	ActionMarkPaid      = "mark-paid"
	ActionCancel        = "cancel"
	ActionMarkReady     = "mark-ready"
	ActionSendToDisplay = "send-to-display"
	ActionMarkDelivered = "mark-delivered"
)

func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"email": email, "password": password}
	_, err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out models.User
	_, err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out)
	return out, err
}

func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	return c.products(ctx, "/products")
}

func (c *Client) FeaturedProducts(ctx context.Context) ([]models.Product, error) {
	return c.products(ctx, "/products/featured")
}

func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return c.products(ctx, "/products/category/"+url.PathEscape(category))
}

// AllProducts includes unavailable products. Admin only.
func (c *Client) AllProducts(ctx context.Context) ([]models.Product, error) {
	return c.products(ctx, "/products/admin/all")
}

func (c *Client) products(ctx context.Context, path string) ([]models.Product, error) {
	var out []models.Product
	_, err := c.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out, err
}

func (c *Client) Product(ctx context.Context, productID string) (models.Product, error) {
	var out models.Product
	_, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(productID), nil, nil, &out)
	return out, err
}

func (c *Client) CreateProduct(ctx context.Context, req ProductRequest) (models.Product, error) {
	var out models.Product
	_, err := c.do(ctx, http.MethodPost, "/products", nil, req, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, productID string, req ProductRequest) (models.Product, error) {
	var out models.Product
	_, err := c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(productID), nil, req, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, productID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(productID), nil, nil, nil)
	return err
}

func (c *Client) ToggleAvailability(ctx context.Context, productID string) (models.Product, error) {
	var out models.Product
	_, err := c.do(ctx, http.MethodPatch, "/products/"+url.PathEscape(productID)+"/toggle-availability", nil, nil, &out)
	return out, err
}

func (c *Client) ToggleFeatured(ctx context.Context, productID string) (models.Product, error) {
	var out models.Product
	_, err := c.do(ctx, http.MethodPatch, "/products/"+url.PathEscape(productID)+"/toggle-featured", nil, nil, &out)
	return out, err
}

// CreateOrder submits an order. Resending the same RequestID returns the
// order created the first time.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (models.Order, error) {
	var out models.Order
	_, err := c.do(ctx, http.MethodPost, "/orders", nil, req, &out)
	return out, err
}

// Orders lists one business date; an empty date means today.
func (c *Client) Orders(ctx context.Context, date string) ([]models.Order, error) {
	query := url.Values{}
	if date != "" {
		query.Set("date", date)
	}
	return c.orders(ctx, "/orders", query)
}

func (c *Client) PendingPayment(ctx context.Context) ([]models.Order, error) {
	return c.orders(ctx, "/orders/pending-payment", nil)
}

func (c *Client) KitchenActive(ctx context.Context) ([]models.Order, error) {
	return c.orders(ctx, "/orders/kitchen/active", nil)
}

func (c *Client) KitchenView(ctx context.Context) ([]models.Order, error) {
	return c.orders(ctx, "/orders/kitchen-view", nil)
}

func (c *Client) orders(ctx context.Context, path string, query url.Values) ([]models.Order, error) {
	var out []models.Order
	_, err := c.do(ctx, http.MethodGet, path, query, nil, &out)
	return out, err
}

func (c *Client) Order(ctx context.Context, orderID string) (models.Order, error) {
	var out models.Order
	_, err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, nil, &out)
	return out, err
}

// CurrentDisplay returns the order on the turn monitor. found is false when
// nothing is on display.
func (c *Client) CurrentDisplay(ctx context.Context) (models.Order, bool, error) {
	var out models.Order
	status, err := c.do(ctx, http.MethodGet, "/orders/current-display", nil, nil, &out)
	if err != nil {
		return models.Order{}, false, err
	}
	return out, status != http.StatusNoContent, nil
}

// Advance applies one status action. requestID may be empty; when set, a
// retried call is answered with the stored result instead of a conflict.
func (c *Client) Advance(ctx context.Context, orderID, action, requestID string) (models.Order, error) {
	switch action {
	case ActionMarkPaid, ActionCancel, ActionMarkReady, ActionSendToDisplay, ActionMarkDelivered:
	default:
		return models.Order{}, fmt.Errorf("unknown order action %q", action)
	}
	var body interface{}
	if requestID != "" {
		body = map[string]string{"request_id": requestID}
	}
	var out models.Order
	_, err := c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(orderID)+"/"+action, nil, body, &out)
	return out, err
}

func (c *Client) MarkPaid(ctx context.Context, orderID string) (models.Order, error) {
	return c.Advance(ctx, orderID, ActionMarkPaid, "")
}

func (c *Client) Cancel(ctx context.Context, orderID string) (models.Order, error) {
	return c.Advance(ctx, orderID, ActionCancel, "")
}

func (c *Client) MarkReady(ctx context.Context, orderID string) (models.Order, error) {
	return c.Advance(ctx, orderID, ActionMarkReady, "")
}

func (c *Client) SendToDisplay(ctx context.Context, orderID string) (models.Order, error) {
	return c.Advance(ctx, orderID, ActionSendToDisplay, "")
}

func (c *Client) MarkDelivered(ctx context.Context, orderID string) (models.Order, error) {
	return c.Advance(ctx, orderID, ActionMarkDelivered, "")
}

func (c *Client) ReportToday(ctx context.Context) (reports.Summary, error) {
	var out reports.Summary
	_, err := c.do(ctx, http.MethodGet, "/reports/today", nil, nil, &out)
	return out, err
}

func (c *Client) ReportRange(ctx context.Context, from, to string) (reports.Summary, error) {
	var out reports.Summary
	_, err := c.do(ctx, http.MethodGet, "/reports/range", rangeQuery(from, to), nil, &out)
	return out, err
}

func (c *Client) TopProducts(ctx context.Context, from, to string, limit int) (TopProducts, error) {
	query := rangeQuery(from, to)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out TopProducts
	_, err := c.do(ctx, http.MethodGet, "/reports/top-products", query, nil, &out)
	return out, err
}

func (c *Client) Statistics(ctx context.Context) (reports.Statistics, error) {
	var out reports.Statistics
	_, err := c.do(ctx, http.MethodGet, "/reports/statistics", nil, nil, &out)
	return out, err
}

// ExportCSV streams the sales export for the range into w.
func (c *Client) ExportCSV(ctx context.Context, from, to string, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/reports/export", rangeQuery(from, to), nil)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func rangeQuery(from, to string) url.Values {
	query := url.Values{}
	if from != "" {
		query.Set("from", from)
	}
	if to != "" {
		query.Set("to", to)
	}
	return query
}
