package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"kioskpos/internal/models"
	"kioskpos/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestCreateOrderConcurrentTurns(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	product := seedProduct(t, ctx, st, "Arroz", 12000)

	const devices = 8
	var wg sync.WaitGroup
	results := make(chan orderResult, devices)
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, _, err := st.CreateOrder(ctx, store.CreateOrderInput{
				RequestID:    uuid.NewString(),
				BusinessDate: "2024-01-01",
				Lines:        []store.OrderLineInput{{ProductID: product.ProductID, Quantity: 1}},
			})
			results <- orderResult{turn: order.TurnNumber, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var turns []string
	for result := range results {
		if result.err != nil {
			t.Fatalf("create order: %v", result.err)
		}
		turns = append(turns, result.turn)
	}
	sort.Strings(turns)
	for i, got := range turns {
		want := []string{"001", "002", "003", "004", "005", "006", "007", "008"}[i]
		if got != want {
			t.Fatalf("expected gapless turns, got %v", turns)
		}
	}
}

func TestCreateOrderIdempotencyAndTotals(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	a := seedProduct(t, ctx, st, "A", 10000)
	b := seedProduct(t, ctx, st, "B", 5000)

	input := store.CreateOrderInput{
		RequestID:    uuid.NewString(),
		BusinessDate: "2024-01-01",
		Lines: []store.OrderLineInput{
			{ProductID: a.ProductID, Quantity: 2},
			{ProductID: b.ProductID, Quantity: 1},
		},
	}
	first, created, err := st.CreateOrder(ctx, input)
	if err != nil || !created {
		t.Fatalf("create order: created=%v err=%v", created, err)
	}
	if first.Total != 25000 || first.TurnNumber != "001" {
		t.Fatalf("unexpected order %+v", first)
	}
	second, created, err := st.CreateOrder(ctx, input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if created || second.OrderID != first.OrderID {
		t.Fatalf("expected replay to return the first order")
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&count); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 order, got %d", count)
	}
}

func TestTurnCounterResetsOnNewDate(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	product := seedProduct(t, ctx, st, "Cola", 3000)
	lines := []store.OrderLineInput{{ProductID: product.ProductID, Quantity: 1}}
	for i := 0; i < 5; i++ {
		if _, _, err := st.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: lines}); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}
	order, _, err := st.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-02", Lines: lines})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.TurnNumber != "001" {
		t.Fatalf("expected 001 after date change, got %s", order.TurnNumber)
	}
}

func TestTransitionOrderConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	product := seedProduct(t, ctx, st, "Pollo", 20000)
	order, _, err := st.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: []store.OrderLineInput{{ProductID: product.ProductID, Quantity: 1}}})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	paid, applied, err := st.TransitionOrder(ctx, store.OrderActionInput{RequestID: uuid.NewString(), OrderID: order.OrderID, Action: store.ActionMarkPaid})
	if err != nil || !applied || paid.Status != models.StatusInKitchen || paid.PaidAt == nil {
		t.Fatalf("mark paid: applied=%v err=%v order=%+v", applied, err, paid)
	}

	_, _, err = st.TransitionOrder(ctx, store.OrderActionInput{OrderID: order.OrderID, Action: store.ActionMarkPaid})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	_, _, err = st.TransitionOrder(ctx, store.OrderActionInput{OrderID: uuid.NewString(), Action: store.ActionMarkPaid})
	if !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	at := time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)
	for _, action := range []string{store.ActionMarkReady, store.ActionSendToDisplay} {
		if _, _, err := st.TransitionOrder(ctx, store.OrderActionInput{OrderID: order.OrderID, Action: action, OccurredAt: at}); err != nil {
			t.Fatalf("%s: %v", action, err)
		}
	}
	current, found, err := st.CurrentDisplay(ctx, "2024-01-01")
	if err != nil || !found || current.OrderID != order.OrderID {
		t.Fatalf("current display: found=%v err=%v order=%+v", found, err, current)
	}
}

func TestTransitionReplayMatchesOrderAndAction(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	product := seedProduct(t, ctx, st, "Combo", 15000)
	lines := []store.OrderLineInput{{ProductID: product.ProductID, Quantity: 1}}
	first, _, err := st.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: lines})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, _, err := st.CreateOrder(ctx, store.CreateOrderInput{BusinessDate: "2024-01-01", Lines: lines})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	requestID := uuid.NewString()
	if _, _, err := st.TransitionOrder(ctx, store.OrderActionInput{RequestID: requestID, OrderID: first.OrderID, Action: store.ActionMarkPaid}); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	replayed, applied, err := st.TransitionOrder(ctx, store.OrderActionInput{RequestID: requestID, OrderID: strings.ToUpper(first.OrderID), Action: store.ActionMarkPaid})
	if err != nil || applied || replayed.OrderID != first.OrderID {
		t.Fatalf("replay: applied=%v err=%v order=%+v", applied, err, replayed)
	}

	_, _, err = st.TransitionOrder(ctx, store.OrderActionInput{RequestID: requestID, OrderID: second.OrderID, Action: store.ActionMarkPaid})
	if !errors.Is(err, store.ErrRequestConflict) {
		t.Fatalf("expected request conflict for another order, got %v", err)
	}
	_, _, err = st.TransitionOrder(ctx, store.OrderActionInput{RequestID: requestID, OrderID: first.OrderID, Action: store.ActionMarkReady})
	if !errors.Is(err, store.ErrRequestConflict) {
		t.Fatalf("expected request conflict for another action, got %v", err)
	}
	stored, err := st.GetOrder(ctx, second.OrderID)
	if err != nil || stored.Status != models.StatusPendingPayment {
		t.Fatalf("expected second order untouched, got %+v err=%v", stored, err)
	}
}

func TestLoginWithEnsuredUser(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	if _, created, err := st.EnsureUser(ctx, store.EnsureUserInput{Name: "Admin", Email: "Admin@Kiosk.local", Role: models.RoleAdmin, Password: "secret"}); err != nil || !created {
		t.Fatalf("ensure user: created=%v err=%v", created, err)
	}
	if _, created, err := st.EnsureUser(ctx, store.EnsureUserInput{Name: "Admin", Email: "admin@kiosk.local", Role: models.RoleAdmin, Password: "other"}); err != nil || created {
		t.Fatalf("expected existing user, created=%v err=%v", created, err)
	}

	result, err := st.Login(ctx, store.LoginInput{Email: "admin@kiosk.local", Password: "secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_, user, err := st.GetSession(ctx, result.Session.Token)
	if err != nil || user.Role != models.RoleAdmin {
		t.Fatalf("get session: user=%+v err=%v", user, err)
	}
	if _, err := st.Login(ctx, store.LoginInput{Email: "admin@kiosk.local", Password: "other"}); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

type orderResult struct {
	turn string
	err  error
}

func seedProduct(t *testing.T, ctx context.Context, st *Store, name string, price int64) models.Product {
	t.Helper()
	product, err := st.CreateProduct(ctx, store.ProductInput{Name: name, Price: price, Category: models.CategoryCombos, Available: true})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := execOnce(ctx, dsn, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		_ = execOnce(context.Background(), dsn, "DROP SCHEMA "+schema+" CASCADE")
	}
	return NewStore(pool, Options{}), pool, cleanup
}

func execOnce(ctx context.Context, dsn, statement string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, statement)
	return err
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
