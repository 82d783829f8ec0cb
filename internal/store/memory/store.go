// Package memory is a single-process store kept in memory and optionally
// mirrored to a JSON snapshot file after every mutation.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"kioskpos/internal/models"
	"kioskpos/internal/store"
	"kioskpos/internal/turn"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type userRecord struct {
	User         models.User `json:"user"`
	PasswordHash string      `json:"password_hash"`
}

type actionRecord struct {
	Action  string `json:"action"`
	OrderID string `json:"order_id"`
}

// snapshot is the on-disk layout.
type snapshot struct {
	Products []models.Product        `json:"products"`
	Orders   []models.Order          `json:"orders"`
	Turn     turn.State              `json:"turn"`
	Users    []userRecord            `json:"users"`
	Sessions []models.Session        `json:"sessions"`
	Actions  map[string]actionRecord `json:"actions,omitempty"`
}

type Options struct {
	SnapshotPath string
	Now          func() time.Time
}

type Store struct {
	mu           sync.Mutex
	products     map[string]models.Product
	orders       []models.Order
	orderIndex   map[string]int
	requests     map[string]string
	actions      map[string]actionRecord
	counter      *turn.Counter
	users        map[string]userRecord
	sessions     map[string]models.Session
	snapshotPath string
	now          func() time.Time
}

func NewStore(options Options) (*Store, error) {
	s := &Store{
		products:     make(map[string]models.Product),
		orderIndex:   make(map[string]int),
		requests:     make(map[string]string),
		actions:      make(map[string]actionRecord),
		users:        make(map[string]userRecord),
		sessions:     make(map[string]models.Session),
		snapshotPath: options.SnapshotPath,
		now:          options.Now,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}

	loaded, err := readSnapshot(options.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	state := turn.State{}
	if loaded != nil {
		for _, product := range loaded.Products {
			s.products[product.ProductID] = product
		}
		for _, order := range loaded.Orders {
			s.appendOrder(order)
		}
		for _, user := range loaded.Users {
			s.users[strings.ToLower(user.User.Email)] = user
		}
		for _, session := range loaded.Sessions {
			s.sessions[session.Token] = session
		}
		for requestID, action := range loaded.Actions {
			s.actions[requestID] = action
		}
		state = loaded.Turn
	}
	s.counter = turn.NewCounter(state)
	return s, nil
}

func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var products []models.Product
	for _, product := range s.products {
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		if filter.OnlyAvailable && !product.Available {
			continue
		}
		if filter.OnlyFeatured && !product.Featured {
			continue
		}
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Category != products[j].Category {
			return categoryRank(products[i].Category) < categoryRank(products[j].Category)
		}
		return products[i].Name < products[j].Name
	})
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return models.Product{}, store.ErrProductNotFound
	}
	return product, nil
}

func (s *Store) CreateProduct(ctx context.Context, input store.ProductInput) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	product := models.Product{
		ProductID: uuid.NewString(),
		CreatedAt: now,
	}
	applyProductInput(&product, input, now)
	s.products[product.ProductID] = product
	if err := s.persistLocked(); err != nil {
		delete(s.products, product.ProductID)
		return models.Product{}, err
	}
	return product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, productID string, input store.ProductInput) (models.Product, error) {
	return s.mutateProduct(productID, func(product *models.Product, now time.Time) {
		applyProductInput(product, input, now)
	})
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return store.ErrProductNotFound
	}
	delete(s.products, productID)
	if err := s.persistLocked(); err != nil {
		s.products[productID] = product
		return err
	}
	return nil
}

func (s *Store) ToggleAvailability(ctx context.Context, productID string) (models.Product, error) {
	return s.mutateProduct(productID, func(product *models.Product, now time.Time) {
		product.Available = !product.Available
		product.UpdatedAt = now
	})
}

func (s *Store) ToggleFeatured(ctx context.Context, productID string) (models.Product, error) {
	return s.mutateProduct(productID, func(product *models.Product, now time.Time) {
		product.Featured = !product.Featured
		product.UpdatedAt = now
	})
}

func (s *Store) mutateProduct(productID string, mutate func(*models.Product, time.Time)) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return models.Product{}, store.ErrProductNotFound
	}
	previous := product
	mutate(&product, s.now())
	s.products[productID] = product
	if err := s.persistLocked(); err != nil {
		s.products[productID] = previous
		return models.Product{}, err
	}
	return product, nil
}

func (s *Store) CreateOrder(ctx context.Context, input store.CreateOrderInput) (models.Order, bool, error) {
	if len(input.Lines) == 0 {
		return models.Order{}, false, store.ErrEmptyOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if input.RequestID != "" {
		if orderID, ok := s.requests[input.RequestID]; ok {
			return cloneOrder(s.orders[s.orderIndex[orderID]]), false, nil
		}
	}

	items := make([]models.OrderItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.Quantity < 1 {
			return models.Order{}, false, store.ErrInvalidQuantity
		}
		product, ok := s.products[line.ProductID]
		if !ok {
			return models.Order{}, false, fmt.Errorf("%w: %s", store.ErrProductNotFound, line.ProductID)
		}
		if !product.Available {
			return models.Order{}, false, fmt.Errorf("%w: %s", store.ErrProductUnavailable, product.Name)
		}
		items = append(items, models.OrderItem{
			ProductID: product.ProductID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
			Subtotal:  product.Price * int64(line.Quantity),
		})
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	previousTurn := s.counter.State()
	number, _ := s.counter.Next(input.BusinessDate)

	order := models.Order{
		OrderID:      uuid.NewString(),
		RequestID:    input.RequestID,
		TurnNumber:   number,
		BusinessDate: input.BusinessDate,
		Channel:      input.Channel,
		Items:        items,
		Total:        models.ItemsTotal(items),
		Status:       models.StatusPendingPayment,
		CreatedAt:    createdAt,
	}
	s.appendOrder(order)
	if err := s.persistLocked(); err != nil {
		s.dropLastOrderLocked()
		s.counter = turn.NewCounter(previousTurn)
		return models.Order{}, false, err
	}
	return cloneOrder(order), true, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.orderIndex[orderID]
	if !ok {
		return models.Order{}, store.ErrOrderNotFound
	}
	return cloneOrder(s.orders[idx]), nil
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orders []models.Order
	for _, order := range s.orders {
		if filter.DateFrom != "" && order.BusinessDate < filter.DateFrom {
			continue
		}
		if filter.DateTo != "" && order.BusinessDate > filter.DateTo {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, order.Status) {
			continue
		}
		orders = append(orders, cloneOrder(order))
	}
	return orders, nil
}

func (s *Store) TransitionOrder(ctx context.Context, input store.OrderActionInput) (models.Order, bool, error) {
	transition, ok := store.LookupTransition(input.Action)
	if !ok {
		return models.Order{}, false, store.ErrUnknownAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if input.RequestID != "" {
		if previous, found := s.actions[input.RequestID]; found {
			if previous.Action != input.Action || previous.OrderID != input.OrderID {
				return models.Order{}, false, store.ErrRequestConflict
			}
			idx, ok := s.orderIndex[previous.OrderID]
			if !ok {
				return models.Order{}, false, store.ErrOrderNotFound
			}
			return cloneOrder(s.orders[idx]), false, nil
		}
	}

	idx, ok := s.orderIndex[input.OrderID]
	if !ok {
		return models.Order{}, false, store.ErrOrderNotFound
	}
	order := s.orders[idx]
	if !transition.Allows(order.Status) {
		return models.Order{}, false, store.ErrInvalidState
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	previous := s.orders[idx]
	transition.Apply(&order, occurredAt)
	s.orders[idx] = order
	if input.RequestID != "" {
		s.actions[input.RequestID] = actionRecord{Action: input.Action, OrderID: order.OrderID}
	}
	if err := s.persistLocked(); err != nil {
		s.orders[idx] = previous
		delete(s.actions, input.RequestID)
		return models.Order{}, false, err
	}
	return cloneOrder(order), true, nil
}

// CurrentDisplay returns the order most recently sent to the monitor on the
// given business date.
func (s *Store) CurrentDisplay(ctx context.Context, businessDate string) (models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *models.Order
	for i := range s.orders {
		order := &s.orders[i]
		if order.BusinessDate != businessDate || order.Status != models.StatusOnDisplay || order.DisplayedAt == nil {
			continue
		}
		if current == nil || order.DisplayedAt.After(*current.DisplayedAt) {
			current = order
		}
	}
	if current == nil {
		return models.Order{}, false, nil
	}
	return cloneOrder(*current), true, nil
}

func (s *Store) Login(ctx context.Context, input store.LoginInput) (store.LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.users[strings.ToLower(input.Email)]
	if !ok || !record.User.Active {
		return store.LoginResult{}, store.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(input.Password)); err != nil {
		return store.LoginResult{}, store.ErrInvalidCredentials
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	session := models.Session{
		Token:     uuid.NewString(),
		UserID:    record.User.UserID,
		ExpiresAt: s.now().Add(ttl),
	}
	s.sessions[session.Token] = session
	s.pruneSessionsLocked()
	if err := s.persistLocked(); err != nil {
		delete(s.sessions, session.Token)
		return store.LoginResult{}, err
	}
	return store.LoginResult{User: record.User, Session: session}, nil
}

func (s *Store) GetSession(ctx context.Context, token string) (models.Session, models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok || !session.ExpiresAt.After(s.now()) {
		return models.Session{}, models.User{}, store.ErrSessionNotFound
	}
	for _, record := range s.users {
		if record.User.UserID == session.UserID && record.User.Active {
			return session, record.User, nil
		}
	}
	return models.Session{}, models.User{}, store.ErrSessionNotFound
}

// EnsureUser creates the user when no account exists for the email. An
// existing account is returned untouched.
func (s *Store) EnsureUser(ctx context.Context, input store.EnsureUserInput) (models.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(input.Email)
	if record, ok := s.users[key]; ok {
		return record.User, false, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, false, err
	}
	user := models.User{
		UserID:    uuid.NewString(),
		Name:      input.Name,
		Email:     input.Email,
		Role:      input.Role,
		Active:    true,
		CreatedAt: s.now(),
	}
	s.users[key] = userRecord{User: user, PasswordHash: string(hash)}
	if err := s.persistLocked(); err != nil {
		delete(s.users, key)
		return models.User{}, false, err
	}
	return user, true, nil
}

func (s *Store) pruneSessionsLocked() {
	now := s.now()
	for token, session := range s.sessions {
		if !session.ExpiresAt.After(now) {
			delete(s.sessions, token)
		}
	}
}

func (s *Store) appendOrder(order models.Order) {
	s.orderIndex[order.OrderID] = len(s.orders)
	s.orders = append(s.orders, order)
	if order.RequestID != "" {
		s.requests[order.RequestID] = order.OrderID
	}
}

// dropLastOrderLocked undoes appendOrder.
func (s *Store) dropLastOrderLocked() {
	last := s.orders[len(s.orders)-1]
	delete(s.orderIndex, last.OrderID)
	if last.RequestID != "" {
		delete(s.requests, last.RequestID)
	}
	s.orders = s.orders[:len(s.orders)-1]
}

// persistLocked writes the snapshot. Callers undo their change when it fails,
// so memory never holds state the snapshot refused.
func (s *Store) persistLocked() error {
	if s.snapshotPath == "" {
		return nil
	}
	snap := snapshot{
		Turn:    s.counter.State(),
		Actions: s.actions,
	}
	for _, product := range s.products {
		snap.Products = append(snap.Products, product)
	}
	sort.Slice(snap.Products, func(i, j int) bool { return snap.Products[i].ProductID < snap.Products[j].ProductID })
	snap.Orders = s.orders
	for _, record := range s.users {
		snap.Users = append(snap.Users, record)
	}
	for _, session := range s.sessions {
		snap.Sessions = append(snap.Sessions, session)
	}
	if err := writeSnapshot(s.snapshotPath, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func applyProductInput(product *models.Product, input store.ProductInput, now time.Time) {
	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.Category = input.Category
	product.ImageURL = input.ImageURL
	product.Available = input.Available
	product.Featured = input.Featured
	product.UpdatedAt = now
}

func categoryRank(category string) int {
	for i, c := range models.Categories {
		if c == category {
			return i
		}
	}
	return len(models.Categories)
}

func containsStatus(statuses []string, status string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneOrder(order models.Order) models.Order {
	items := make([]models.OrderItem, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	return order
}

func readSnapshot(path string) (*snapshot, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func writeSnapshot(path string, snap snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	temp := path + ".tmp"
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(temp, path)
}
