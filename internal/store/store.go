package store

import (
	"context"
	"time"

	"kioskpos/internal/models"
)

type ProductFilter struct {
	Category      string
	OnlyAvailable bool
	OnlyFeatured  bool
}

type ProductInput struct {
	Name        string
	Description string
	Price       int64
	Category    string
	ImageURL    string
	Available   bool
	Featured    bool
}

type OrderLineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderInput struct {
	RequestID    string
	Channel      string
	Lines        []OrderLineInput
	BusinessDate string
	CreatedAt    time.Time
}

type OrderActionInput struct {
	RequestID  string
	OrderID    string
	Action     string
	OccurredAt time.Time
}

// OrderFilter selects orders by inclusive business-date range and status.
// Empty fields do not filter.
type OrderFilter struct {
	DateFrom string
	DateTo   string
	Statuses []string
}

type LoginInput struct {
	Email    string
	Password string
	TTL      time.Duration
}

type LoginResult struct {
	User    models.User
	Session models.Session
}

type EnsureUserInput struct {
	Name     string
	Email    string
	Role     string
	Password string
}

type ProductStore interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, productID string) (models.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (models.Product, error)
	UpdateProduct(ctx context.Context, productID string, input ProductInput) (models.Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	ToggleAvailability(ctx context.Context, productID string) (models.Product, error)
	ToggleFeatured(ctx context.Context, productID string) (models.Product, error)
}

type OrderStore interface {
	// CreateOrder prices the lines from the catalogue, allocates the day's
	// next turn number and stores the order as PENDING_PAYMENT. Replaying a
	// RequestID returns the stored order with created=false.
	CreateOrder(ctx context.Context, input CreateOrderInput) (models.Order, bool, error)
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// TransitionOrder applies one action from the transition table. applied
	// is false when RequestID was already processed.
	TransitionOrder(ctx context.Context, input OrderActionInput) (models.Order, bool, error)
	CurrentDisplay(ctx context.Context, businessDate string) (models.Order, bool, error)
}

type AuthStore interface {
	Login(ctx context.Context, input LoginInput) (LoginResult, error)
	GetSession(ctx context.Context, token string) (models.Session, models.User, error)
	EnsureUser(ctx context.Context, input EnsureUserInput) (models.User, bool, error)
}

type Store interface {
	ProductStore
	OrderStore
	AuthStore
}
