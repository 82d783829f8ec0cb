package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"kioskpos/internal/models"
	"kioskpos/internal/store"
	"kioskpos/internal/turn"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = "order_id, request_id, turn_number, business_date, channel, items, total, status, created_at, paid_at, ready_at, displayed_at, delivered_at, cancelled_at"

func (s *Store) CreateOrder(ctx context.Context, input store.CreateOrderInput) (models.Order, bool, error) {
	if len(input.Lines) == 0 {
		return models.Order{}, false, store.ErrEmptyOrder
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if input.RequestID != "" {
		existing, found, findErr := findOrderByRequestID(ctx, tx, input.RequestID)
		if findErr != nil {
			err = findErr
			return models.Order{}, false, err
		}
		if found {
			if err = tx.Commit(ctx); err != nil {
				return models.Order{}, false, err
			}
			return existing, false, nil
		}
	}

	items, err := priceLines(ctx, tx, input.Lines)
	if err != nil {
		return models.Order{}, false, err
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return models.Order{}, false, err
	}

	count, err := nextTurnNumber(ctx, tx, input.BusinessDate)
	if err != nil {
		return models.Order{}, false, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	channel := input.Channel
	if channel == "" {
		channel = "kiosk"
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (order_id, request_id, turn_number, business_date, channel, items, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING `+orderColumns,
		uuid.NewString(), nullIfEmpty(input.RequestID), turn.Format(count), input.BusinessDate, channel,
		itemsJSON, models.ItemsTotal(items), models.StatusPendingPayment, createdAt)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A concurrent request with the same id committed first. Its
			// turn bump is kept, ours rolls back with the transaction.
			_ = tx.Rollback(ctx)
			err = nil
			replayed, replayErr := s.orderByRequestID(ctx, input.RequestID)
			return replayed, false, replayErr
		}
		return models.Order{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, false, err
	}
	return order, true, nil
}

func (s *Store) orderByRequestID(ctx context.Context, requestID string) (models.Order, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE request_id = $1", requestID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, store.ErrOrderNotFound
		}
		return models.Order{}, err
	}
	return order, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	if !validID(orderID) {
		return models.Order{}, store.ErrOrderNotFound
	}
	row := s.pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE order_id = $1", orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, store.ErrOrderNotFound
		}
		return models.Order{}, err
	}
	return order, nil
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE TRUE"
	args := []interface{}{}
	if filter.DateFrom != "" {
		args = append(args, filter.DateFrom)
		query += fmt.Sprintf(" AND business_date >= $%d", len(args))
	}
	if filter.DateTo != "" {
		args = append(args, filter.DateTo)
		query += fmt.Sprintf(" AND business_date <= $%d", len(args))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	query += " ORDER BY created_at ASC, turn_number ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) TransitionOrder(ctx context.Context, input store.OrderActionInput) (models.Order, bool, error) {
	transition, ok := store.LookupTransition(input.Action)
	if !ok {
		return models.Order{}, false, store.ErrUnknownAction
	}
	if !validID(input.OrderID) {
		return models.Order{}, false, store.ErrOrderNotFound
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if input.RequestID != "" {
		existing, found, findErr := findActionRequest(ctx, tx, input)
		if findErr != nil {
			err = findErr
			return models.Order{}, false, err
		}
		if found {
			if err = tx.Commit(ctx); err != nil {
				return models.Order{}, false, err
			}
			return existing, false, nil
		}
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE orders
		SET status = $1, %s = $2
		WHERE order_id = $3 AND status = ANY($4)
		RETURNING `+orderColumns, transition.Column),
		transition.To, occurredAt, input.OrderID, transition.From)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, stateErr := orderExists(ctx, tx, input.OrderID)
			if stateErr != nil {
				return models.Order{}, false, stateErr
			}
			if !exists {
				return models.Order{}, false, store.ErrOrderNotFound
			}
			return models.Order{}, false, store.ErrInvalidState
		}
		return models.Order{}, false, err
	}

	if input.RequestID != "" {
		if err = insertActionRequest(ctx, tx, input.Action, input.RequestID, order.OrderID); err != nil {
			return models.Order{}, false, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, false, err
	}
	return order, true, nil
}

func (s *Store) CurrentDisplay(ctx context.Context, businessDate string) (models.Order, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE business_date = $1 AND status = $2
		ORDER BY displayed_at DESC
		LIMIT 1
	`, businessDate, models.StatusOnDisplay)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, false, nil
		}
		return models.Order{}, false, err
	}
	return order, true, nil
}

// nextTurnNumber bumps the single counter row. Concurrent transactions queue
// on the row lock, so each gets a distinct value.
func nextTurnNumber(ctx context.Context, tx pgx.Tx, businessDate string) (int, error) {
	var count int
	row := tx.QueryRow(ctx, `
		INSERT INTO turn_counters (counter_id, business_date, count)
		VALUES (1, $1, 1)
		ON CONFLICT (counter_id)
		DO UPDATE SET
			count = CASE WHEN turn_counters.business_date = EXCLUDED.business_date THEN turn_counters.count + 1 ELSE 1 END,
			business_date = EXCLUDED.business_date
		RETURNING count
	`, businessDate)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func priceLines(ctx context.Context, tx pgx.Tx, lines []store.OrderLineInput) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidQuantity
		}
		if !validID(line.ProductID) {
			return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, line.ProductID)
		}
		var name string
		var price int64
		var available bool
		row := tx.QueryRow(ctx, `
			SELECT name, price, available
			FROM products
			WHERE product_id = $1
		`, line.ProductID)
		if err := row.Scan(&name, &price, &available); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, line.ProductID)
			}
			return nil, err
		}
		if !available {
			return nil, fmt.Errorf("%w: %s", store.ErrProductUnavailable, name)
		}
		items = append(items, models.OrderItem{
			ProductID: line.ProductID,
			Name:      name,
			UnitPrice: price,
			Quantity:  line.Quantity,
			Subtotal:  price * int64(line.Quantity),
		})
	}
	return items, nil
}

func findOrderByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Order, bool, error) {
	row := tx.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE request_id = $1", requestID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, false, nil
		}
		return models.Order{}, false, err
	}
	return order, true, nil
}

// findActionRequest returns the order a request id already changed. A request
// id recorded for another order or action is a conflict, not a replay.
func findActionRequest(ctx context.Context, tx pgx.Tx, input store.OrderActionInput) (models.Order, bool, error) {
	var action, orderID string
	err := tx.QueryRow(ctx, `
		SELECT action, order_id::text
		FROM order_action_requests
		WHERE request_id = $1
	`, input.RequestID).Scan(&action, &orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, false, nil
		}
		return models.Order{}, false, err
	}
	if action != input.Action || !strings.EqualFold(orderID, input.OrderID) {
		return models.Order{}, false, store.ErrRequestConflict
	}

	row := tx.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE order_id = $1", orderID)
	order, err := scanOrder(row)
	if err != nil {
		return models.Order{}, false, err
	}
	return order, true, nil
}

func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, orderID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_action_requests (request_id, action, order_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, action, orderID)
	return err
}

func orderExists(ctx context.Context, tx pgx.Tx, orderID string) (bool, error) {
	var exists bool
	row := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)", orderID)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanOrder(row pgx.Row) (models.Order, error) {
	var order models.Order
	var requestID sql.NullString
	var items []byte
	var paidAt, readyAt, displayedAt, deliveredAt, cancelledAt sql.NullTime
	if err := row.Scan(&order.OrderID, &requestID, &order.TurnNumber, &order.BusinessDate, &order.Channel, &items,
		&order.Total, &order.Status, &order.CreatedAt, &paidAt, &readyAt, &displayedAt, &deliveredAt, &cancelledAt); err != nil {
		return models.Order{}, err
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return models.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	if requestID.Valid {
		order.RequestID = requestID.String
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.PaidAt = nullTimePtr(paidAt)
	order.ReadyAt = nullTimePtr(readyAt)
	order.DisplayedAt = nullTimePtr(displayedAt)
	order.DeliveredAt = nullTimePtr(deliveredAt)
	order.CancelledAt = nullTimePtr(cancelledAt)
	return order, nil
}
