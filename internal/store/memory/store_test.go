package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kioskpos/internal/models"
	"kioskpos/internal/store"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := NewStore(Options{SnapshotPath: path})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func seedProduct(t *testing.T, s *Store, name string, price int64) models.Product {
	t.Helper()
	product, err := s.CreateProduct(context.Background(), store.ProductInput{
		Name:      name,
		Price:     price,
		Category:  models.CategoryCombos,
		Available: true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func TestCreateOrderSnapshotsPricesAndAllocatesTurn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")
	a := seedProduct(t, s, "A", 10000)
	b := seedProduct(t, s, "B", 5000)

	order, created, err := s.CreateOrder(ctx, store.CreateOrderInput{
		RequestID:    "req-1",
		Channel:      "kiosk",
		BusinessDate: "2024-01-01",
		Lines: []store.OrderLineInput{
			{ProductID: a.ProductID, Quantity: 2},
			{ProductID: b.ProductID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if !created {
		t.Fatalf("expected created")
	}
	if order.Total != 25000 {
		t.Fatalf("expected total 25000, got %d", order.Total)
	}
	if order.TurnNumber != "001" {
		t.Fatalf("expected turn 001, got %s", order.TurnNumber)
	}
	if order.Status != models.StatusPendingPayment {
		t.Fatalf("expected PENDING_PAYMENT, got %s", order.Status)
	}
	if order.Items[0].Subtotal != 20000 || order.Items[0].Name != "A" {
		t.Fatalf("unexpected first item %+v", order.Items[0])
	}

	// A later price change must not reach the stored order.
	if _, err := s.UpdateProduct(ctx, a.ProductID, store.ProductInput{Name: "A", Price: 1, Category: a.Category, Available: true}); err != nil {
		t.Fatalf("update product: %v", err)
	}
	stored, err := s.GetOrder(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Items[0].UnitPrice != 10000 {
		t.Fatalf("expected snapshot price 10000, got %d", stored.Items[0].UnitPrice)
	}
}

func TestCreateOrderReplayReturnsStoredOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")
	a := seedProduct(t, s, "A", 100)

	input := store.CreateOrderInput{
		RequestID:    "req-1",
		BusinessDate: "2024-01-01",
		Lines:        []store.OrderLineInput{{ProductID: a.ProductID, Quantity: 1}},
	}
	first, _, err := s.CreateOrder(ctx, input)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	second, created, err := s.CreateOrder(ctx, input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if created {
		t.Fatalf("expected replay not to create")
	}
	if second.OrderID != first.OrderID || second.TurnNumber != "001" {
		t.Fatalf("expected same order, got %+v", second)
	}
}

func TestCreateOrderRejectsBadLines(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")
	a := seedProduct(t, s, "A", 100)
	off := seedProduct(t, s, "Off", 100)
	if _, err := s.ToggleAvailability(ctx, off.ProductID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	cases := []struct {
		name  string
		lines []store.OrderLineInput
		want  error
	}{
		{"empty", nil, store.ErrEmptyOrder},
		{"zero quantity", []store.OrderLineInput{{ProductID: a.ProductID, Quantity: 0}}, store.ErrInvalidQuantity},
		{"unknown product", []store.OrderLineInput{{ProductID: "missing", Quantity: 1}}, store.ErrProductNotFound},
		{"unavailable", []store.OrderLineInput{{ProductID: off.ProductID, Quantity: 1}}, store.ErrProductUnavailable},
	}
	for _, tc := range cases {
		_, _, err := s.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: tc.lines})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	// Rejected orders must not consume turn numbers.
	order, _, err := s.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: []store.OrderLineInput{{ProductID: a.ProductID, Quantity: 1}}})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.TurnNumber != "001" {
		t.Fatalf("expected 001, got %s", order.TurnNumber)
	}
}

func TestTurnResetsOnNewBusinessDate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")
	a := seedProduct(t, s, "A", 100)
	lines := []store.OrderLineInput{{ProductID: a.ProductID, Quantity: 1}}

	for i := 0; i < 3; i++ {
		if _, _, err := s.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: lines}); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}
	order, _, err := s.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-02", Lines: lines})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.TurnNumber != "001" {
		t.Fatalf("expected reset to 001, got %s", order.TurnNumber)
	}
}

func TestTransitionOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")
	a := seedProduct(t, s, "A", 100)
	order, _, err := s.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: []store.OrderLineInput{{ProductID: a.ProductID, Quantity: 1}}})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	steps := []struct {
		action string
		want   string
	}{
		{store.ActionMarkPaid, models.StatusInKitchen},
		{store.ActionMarkReady, models.StatusReady},
		{store.ActionSendToDisplay, models.StatusOnDisplay},
		{store.ActionMarkDelivered, models.StatusDelivered},
	}
	for _, step := range steps {
		updated, applied, err := s.TransitionOrder(ctx, store.OrderActionInput{OrderID: order.OrderID, Action: step.action})
		if err != nil {
			t.Fatalf("%s: %v", step.action, err)
		}
		if !applied || updated.Status != step.want {
			t.Fatalf("%s: expected %s, got %s", step.action, step.want, updated.Status)
		}
	}

	_, _, err = s.TransitionOrder(ctx, store.OrderActionInput{OrderID: order.OrderID, Action: store.ActionMarkPaid})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	stored, _ := s.GetOrder(ctx, order.OrderID)
	if stored.Status != models.StatusDelivered {
		t.Fatalf("expected status unchanged, got %s", stored.Status)
	}
	if stored.PaidAt == nil || stored.ReadyAt == nil || stored.DisplayedAt == nil || stored.DeliveredAt == nil {
		t.Fatalf("expected every transition timestamp set: %+v", stored)
	}
}

func TestTransitionOrderErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")

	if _, _, err := s.TransitionOrder(ctx, store.OrderActionInput{OrderID: "missing", Action: store.ActionMarkPaid}); !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
	if _, _, err := s.TransitionOrder(ctx, store.OrderActionInput{OrderID: "missing", Action: "refund"}); !errors.Is(err, store.ErrUnknownAction) {
		t.Fatalf("expected unknown action, got %v", err)
	}
}

func TestTransitionOrderReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")
	a := seedProduct(t, s, "A", 100)
	order, _, _ := s.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: []store.OrderLineInput{{ProductID: a.ProductID, Quantity: 1}}})

	input := store.OrderActionInput{RequestID: "act-1", OrderID: order.OrderID, Action: store.ActionMarkPaid}
	if _, applied, err := s.TransitionOrder(ctx, input); err != nil || !applied {
		t.Fatalf("first apply: applied=%v err=%v", applied, err)
	}
	replayed, applied, err := s.TransitionOrder(ctx, input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if applied {
		t.Fatalf("expected replay not to apply")
	}
	if replayed.Status != models.StatusInKitchen {
		t.Fatalf("expected IN_KITCHEN, got %s", replayed.Status)
	}
}

func TestCurrentDisplayPicksLatestOnDisplay(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, "")
	a := seedProduct(t, s, "A", 100)

	if _, found, _ := s.CurrentDisplay(ctx, "2024-01-01"); found {
		t.Fatalf("expected nothing on display")
	}

	var ids []string
	for i := 0; i < 2; i++ {
		order, _, _ := s.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: []store.OrderLineInput{{ProductID: a.ProductID, Quantity: 1}}})
		for j, action := range []string{store.ActionMarkPaid, store.ActionMarkReady, store.ActionSendToDisplay} {
			at := base.Add(time.Duration(i*10+j) * time.Minute)
			if _, _, err := s.TransitionOrder(ctx, store.OrderActionInput{OrderID: order.OrderID, Action: action, OccurredAt: at}); err != nil {
				t.Fatalf("%s: %v", action, err)
			}
		}
		ids = append(ids, order.OrderID)
	}

	current, found, err := s.CurrentDisplay(ctx, "2024-01-01")
	if err != nil || !found {
		t.Fatalf("expected current display, found=%v err=%v", found, err)
	}
	if current.OrderID != ids[1] || current.TurnNumber != "002" {
		t.Fatalf("expected latest displayed order, got %+v", current)
	}
	if _, found, _ := s.CurrentDisplay(ctx, "2024-01-02"); found {
		t.Fatalf("expected no display on another date")
	}
}

func TestListOrdersFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")
	a := seedProduct(t, s, "A", 100)
	lines := []store.OrderLineInput{{ProductID: a.ProductID, Quantity: 1}}

	for _, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		if _, _, err := s.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: date, Lines: lines}); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}
	orders, err := s.ListOrders(ctx, store.OrderFilter{DateFrom: "2024-01-02", DateTo: "2024-01-03"})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	orders, _ = s.ListOrders(ctx, store.OrderFilter{Statuses: []string{models.StatusInKitchen}})
	if len(orders) != 0 {
		t.Fatalf("expected no paid orders, got %d", len(orders))
	}
}

func TestListProductsFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")
	rice, _ := s.CreateProduct(ctx, store.ProductInput{Name: "Arroz", Price: 100, Category: models.CategoryArroces, Available: true, Featured: true})
	_, _ = s.CreateProduct(ctx, store.ProductInput{Name: "Cola", Price: 100, Category: models.CategoryBebidas, Available: false})

	all, _ := s.ListProducts(ctx, store.ProductFilter{})
	if len(all) != 2 || all[0].ProductID != rice.ProductID {
		t.Fatalf("expected both products in category order, got %+v", all)
	}
	available, _ := s.ListProducts(ctx, store.ProductFilter{OnlyAvailable: true})
	if len(available) != 1 {
		t.Fatalf("expected one available product, got %d", len(available))
	}
	featured, _ := s.ListProducts(ctx, store.ProductFilter{OnlyFeatured: true})
	if len(featured) != 1 || featured[0].Name != "Arroz" {
		t.Fatalf("unexpected featured %+v", featured)
	}
	drinks, _ := s.ListProducts(ctx, store.ProductFilter{Category: models.CategoryBebidas})
	if len(drinks) != 1 {
		t.Fatalf("expected one drink, got %d", len(drinks))
	}

	if err := s.DeleteProduct(ctx, rice.ProductID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetProduct(ctx, rice.ProductID); !errors.Is(err, store.ErrProductNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSnapshotRoundTripKeepsTurnCounter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "kiosk.json")

	s := newTestStore(t, path)
	a := seedProduct(t, s, "A", 100)
	lines := []store.OrderLineInput{{ProductID: a.ProductID, Quantity: 1}}
	if _, _, err := s.CreateOrder(ctx, store.CreateOrderInput{RequestID: "r1", BusinessDate: "2024-01-01", Lines: lines}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	reopened := newTestStore(t, path)
	order, created, err := reopened.CreateOrder(ctx, store.CreateOrderInput{RequestID: "r2", BusinessDate: "2024-01-01", Lines: lines})
	if err != nil {
		t.Fatalf("create after reopen: %v", err)
	}
	if !created || order.TurnNumber != "002" {
		t.Fatalf("expected 002 after reopen, got %s", order.TurnNumber)
	}
	replay, created, _ := reopened.CreateOrder(ctx, store.CreateOrderInput{RequestID: "r1", BusinessDate: "2024-01-01", Lines: lines})
	if created || replay.TurnNumber != "001" {
		t.Fatalf("expected r1 replay to return 001, got %s", replay.TurnNumber)
	}
}

func TestLoginAndSession(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	s, err := NewStore(Options{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	user, created, err := s.EnsureUser(ctx, store.EnsureUserInput{Name: "Ana", Email: "Ana@Kiosk.local", Role: models.RoleCashier, Password: "secret"})
	if err != nil || !created {
		t.Fatalf("ensure user: created=%v err=%v", created, err)
	}
	if _, created, _ := s.EnsureUser(ctx, store.EnsureUserInput{Email: "ana@kiosk.local", Password: "other"}); created {
		t.Fatalf("expected existing user to be kept")
	}

	if _, err := s.Login(ctx, store.LoginInput{Email: "ana@kiosk.local", Password: "wrong"}); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	result, err := s.Login(ctx, store.LoginInput{Email: "ana@kiosk.local", Password: "secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.User.UserID != user.UserID || result.Session.Token == "" {
		t.Fatalf("unexpected login result %+v", result)
	}

	_, sessionUser, err := s.GetSession(ctx, result.Session.Token)
	if err != nil || sessionUser.Role != models.RoleCashier {
		t.Fatalf("get session: user=%+v err=%v", sessionUser, err)
	}

	now = now.Add(2 * time.Hour)
	if _, _, err := s.GetSession(ctx, result.Session.Token); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

// breakSnapshot points the store at a path whose parent is a regular file, so
// every snapshot write fails.
func breakSnapshot(t *testing.T, s *Store) {
	t.Helper()
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	s.mu.Lock()
	s.snapshotPath = filepath.Join(blocker, "snapshot.json")
	s.mu.Unlock()
}

func TestFailedSnapshotLeavesOrdersUntouched(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, filepath.Join(t.TempDir(), "store.json"))
	a := seedProduct(t, s, "A", 100)
	lines := []store.OrderLineInput{{ProductID: a.ProductID, Quantity: 1}}

	first, _, err := s.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: lines})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	breakSnapshot(t, s)
	if _, _, err := s.CreateOrder(ctx, store.CreateOrderInput{RequestID: "req-lost", BusinessDate: "2024-01-01", Lines: lines}); err == nil {
		t.Fatalf("expected create to fail when the snapshot cannot be written")
	}
	orders, _ := s.ListOrders(ctx, store.OrderFilter{})
	if len(orders) != 1 {
		t.Fatalf("expected the failed order to be dropped, got %d orders", len(orders))
	}
	if got := s.counter.State().Count; got != 1 {
		t.Fatalf("expected the turn not to be burned, counter at %d", got)
	}

	if _, _, err := s.TransitionOrder(ctx, store.OrderActionInput{RequestID: "act-lost", OrderID: first.OrderID, Action: store.ActionMarkPaid}); err == nil {
		t.Fatalf("expected transition to fail when the snapshot cannot be written")
	}
	stored, _ := s.GetOrder(ctx, first.OrderID)
	if stored.Status != models.StatusPendingPayment || stored.PaidAt != nil {
		t.Fatalf("expected order unchanged, got %s paid_at=%v", stored.Status, stored.PaidAt)
	}
	if _, ok := s.actions["act-lost"]; ok {
		t.Fatalf("expected the action request not to be recorded")
	}

	s.mu.Lock()
	s.snapshotPath = filepath.Join(t.TempDir(), "store.json")
	s.mu.Unlock()
	second, created, err := s.CreateOrder(ctx, store.CreateOrderInput{RequestID: "req-lost", BusinessDate: "2024-01-01", Lines: lines})
	if err != nil || !created {
		t.Fatalf("expected retry to create the order, created=%v err=%v", created, err)
	}
	if second.TurnNumber != "002" {
		t.Fatalf("expected turn 002 on retry, got %s", second.TurnNumber)
	}
}

func TestFailedSnapshotLeavesProductsUntouched(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, filepath.Join(t.TempDir(), "store.json"))
	a := seedProduct(t, s, "A", 100)

	breakSnapshot(t, s)
	if _, err := s.ToggleAvailability(ctx, a.ProductID); err == nil {
		t.Fatalf("expected toggle to fail")
	}
	if err := s.DeleteProduct(ctx, a.ProductID); err == nil {
		t.Fatalf("expected delete to fail")
	}
	stored, err := s.GetProduct(ctx, a.ProductID)
	if err != nil || !stored.Available {
		t.Fatalf("expected product kept and available, got %+v err=%v", stored, err)
	}
	products, _ := s.ListProducts(ctx, store.ProductFilter{})
	if _, err := s.CreateProduct(ctx, store.ProductInput{Name: "B", Price: 1, Category: models.CategoryCombos}); err == nil {
		t.Fatalf("expected create to fail")
	}
	if after, _ := s.ListProducts(ctx, store.ProductFilter{}); len(after) != len(products) {
		t.Fatalf("expected no product added, got %d want %d", len(after), len(products))
	}
}

func TestTransitionRejectsReusedRequestID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")
	a := seedProduct(t, s, "A", 100)
	lines := []store.OrderLineInput{{ProductID: a.ProductID, Quantity: 1}}
	first, _, _ := s.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: lines})
	second, _, _ := s.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: lines})

	if _, _, err := s.TransitionOrder(ctx, store.OrderActionInput{RequestID: "act-1", OrderID: first.OrderID, Action: store.ActionMarkPaid}); err != nil {
		t.Fatalf("first: %v", err)
	}

	cases := []store.OrderActionInput{
		{RequestID: "act-1", OrderID: second.OrderID, Action: store.ActionMarkPaid},
		{RequestID: "act-1", OrderID: first.OrderID, Action: store.ActionMarkReady},
	}
	for _, input := range cases {
		if _, _, err := s.TransitionOrder(ctx, input); !errors.Is(err, store.ErrRequestConflict) {
			t.Fatalf("%+v: expected request conflict, got %v", input, err)
		}
	}
	stored, _ := s.GetOrder(ctx, second.OrderID)
	if stored.Status != models.StatusPendingPayment {
		t.Fatalf("expected second order untouched, got %s", stored.Status)
	}
}
