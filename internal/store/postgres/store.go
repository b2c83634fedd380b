package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos/internal/billing"
	"pos/internal/models"
	"pos/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderCodePad = 3

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) SubmitOrder(ctx context.Context, input store.SubmitOrderInput) (store.SubmitOrderResult, error) {
	if len(input.Items) == 0 {
		return store.SubmitOrderResult{}, store.ErrInvalidItems
	}
	for _, item := range input.Items {
		if item.Name == "" || item.UnitPrice < 0 || item.Quantity <= 0 {
			return store.SubmitOrderResult{}, store.ErrInvalidItems
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.SubmitOrderResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if input.RequestID != "" {
		existing, found, err2 := findOrderRequest(ctx, tx, input.RequestID)
		if err2 != nil {
			err = err2
			return store.SubmitOrderResult{}, err
		}
		if found {
			if err = tx.Commit(ctx); err != nil {
				return store.SubmitOrderResult{}, err
			}
			return existing, nil
		}
	}

	// The row lock serializes concurrent submissions to the same table; the
	// partial unique index on active orders is the backstop.
	var tableStatus string
	row := tx.QueryRow(ctx, `
		SELECT status
		FROM tables
		WHERE table_number = $1
		FOR UPDATE
	`, input.TableNumber)
	if err = row.Scan(&tableStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrTableNotFound
		}
		return store.SubmitOrderResult{}, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var result store.SubmitOrderResult
	var activeID, activeCode, activeWaiterID string
	row = tx.QueryRow(ctx, `
		SELECT order_id, code, waiter_id
		FROM orders
		WHERE table_number = $1 AND status = ANY($2)
	`, input.TableNumber, store.ActiveStatuses())
	err = row.Scan(&activeID, &activeCode, &activeWaiterID)
	switch {
	case err == nil:
		if activeWaiterID != input.WaiterID {
			err = store.ErrTableConflict
			return store.SubmitOrderResult{}, err
		}
		if err = appendItems(ctx, tx, activeID, input.Items, createdAt); err != nil {
			return store.SubmitOrderResult{}, err
		}
		result = store.SubmitOrderResult{OrderID: activeID, Code: activeCode, Created: false}
	case errors.Is(err, pgx.ErrNoRows):
		result, err = createOrder(ctx, tx, input, createdAt)
		if err != nil {
			return store.SubmitOrderResult{}, err
		}
	default:
		return store.SubmitOrderResult{}, err
	}

	if input.RequestID != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_requests (request_id, order_id, created)
			VALUES ($1, $2, $3)
			ON CONFLICT (request_id) DO NOTHING
		`, input.RequestID, result.OrderID, result.Created)
		if err != nil {
			return store.SubmitOrderResult{}, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return store.SubmitOrderResult{}, err
	}
	return result, nil
}

func createOrder(ctx context.Context, tx pgx.Tx, input store.SubmitOrderInput, createdAt time.Time) (store.SubmitOrderResult, error) {
	seq, err := nextOrderNumber(ctx, tx, createdAt)
	if err != nil {
		return store.SubmitOrderResult{}, err
	}
	code := fmt.Sprintf("ORD-%s-%0*d", createdAt.Format("20060102"), orderCodePad, seq)
	orderID := uuid.NewString()

	customerName := input.CustomerName
	if customerName == "" {
		customerName = "Guest"
	}
	totals := billing.ComputeTotals(input.Items)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			order_id, code, table_number, waiter_id, waiter_name,
			customer_name, customer_email, status,
			subtotal, tax, service_charge, total, payment_status,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
	`, orderID, code, input.TableNumber, input.WaiterID, input.WaiterName,
		customerName, input.CustomerEmail, models.OrderPending,
		totals.Subtotal, totals.Tax, totals.ServiceCharge, totals.Total,
		models.PaymentUnpaid, createdAt)
	if err != nil {
		return store.SubmitOrderResult{}, err
	}

	if err = insertItems(ctx, tx, orderID, input.Items, 0); err != nil {
		return store.SubmitOrderResult{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE tables
		SET status = $1, current_waiter_id = $2, updated_at = $3
		WHERE table_number = $4
	`, models.TableOccupied, input.WaiterID, createdAt, input.TableNumber)
	if err != nil {
		return store.SubmitOrderResult{}, err
	}

	return store.SubmitOrderResult{OrderID: orderID, Code: code, Created: true}, nil
}

func appendItems(ctx context.Context, tx pgx.Tx, orderID string, items []models.OrderItem, updatedAt time.Time) error {
	existing, err := loadItemsTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if err := insertItems(ctx, tx, orderID, items, len(existing)); err != nil {
		return err
	}

	totals := billing.ComputeTotals(append(existing, items...))
	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET subtotal = $1, tax = $2, service_charge = $3, total = $4, updated_at = $5
		WHERE order_id = $6
	`, totals.Subtotal, totals.Tax, totals.ServiceCharge, totals.Total, updatedAt, orderID)
	return err
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, items []models.OrderItem, offset int) error {
	for i, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, menu_item_id, name, unit_price, quantity, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, item.MenuItemID, item.Name, item.UnitPrice, item.Quantity, offset+i)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AdvanceStatus(ctx context.Context, ref, newStatus string) (models.Order, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Lock order: table row first, then order row, same as SubmitOrder.
	// Taking them the other way around deadlocks against a concurrent
	// append on the same table.
	var tableNumber int
	row := tx.QueryRow(ctx, `
		SELECT table_number
		FROM orders
		WHERE order_id::text = $1 OR code = $1
	`, ref)
	if err = row.Scan(&tableNumber); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrOrderNotFound
		}
		return models.Order{}, err
	}

	var lockedTable int
	row = tx.QueryRow(ctx, `
		SELECT table_number
		FROM tables
		WHERE table_number = $1
		FOR UPDATE
	`, tableNumber)
	if err = row.Scan(&lockedTable); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, err
	}
	err = nil

	var order models.Order
	row = tx.QueryRow(ctx, `
		SELECT order_id, code, table_number, waiter_id, waiter_name,
		       customer_name, customer_email, status,
		       subtotal, tax, service_charge, total, payment_status,
		       created_at, updated_at
		FROM orders
		WHERE order_id::text = $1 OR code = $1
		FOR UPDATE
	`, ref)
	if err = scanOrder(row, &order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrOrderNotFound
		}
		return models.Order{}, err
	}

	if !store.ValidTransition(order.Status, newStatus) {
		err = store.ErrInvalidTransition
		return models.Order{}, err
	}

	now := time.Now().UTC()
	paymentStatus := order.PaymentStatus
	if newStatus == models.OrderPaid {
		paymentStatus = models.PaymentPaid
	}
	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, payment_status = $2, updated_at = $3
		WHERE order_id = $4 AND status = $5
	`, newStatus, paymentStatus, now, order.OrderID, order.Status)
	if err != nil {
		return models.Order{}, err
	}

	// Settlement and cancellation both release the table, but only while the
	// lock still belongs to this order's waiter. A table since reassigned to
	// another waiter is left alone.
	if newStatus == models.OrderPaid || newStatus == models.OrderCancelled {
		_, err = tx.Exec(ctx, `
			UPDATE tables
			SET status = $1, current_waiter_id = NULL, updated_at = $2
			WHERE table_number = $3 AND current_waiter_id = $4
		`, models.TableAvailable, now, order.TableNumber, order.WaiterID)
		if err != nil {
			return models.Order{}, err
		}
	}

	order.Status = newStatus
	order.PaymentStatus = paymentStatus
	order.UpdatedAt = now

	order.Items, err = loadItemsTx(ctx, tx, order.OrderID)
	if err != nil {
		return models.Order{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (s *Store) GetOrder(ctx context.Context, ref string) (models.Order, error) {
	var order models.Order
	row := s.pool.QueryRow(ctx, `
		SELECT order_id, code, table_number, waiter_id, waiter_name,
		       customer_name, customer_email, status,
		       subtotal, tax, service_charge, total, payment_status,
		       created_at, updated_at
		FROM orders
		WHERE order_id::text = $1 OR code = $1
	`, ref)
	if err := scanOrder(row, &order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, store.ErrOrderNotFound
		}
		return models.Order{}, err
	}

	items, err := s.loadItems(ctx, order.OrderID)
	if err != nil {
		return models.Order{}, err
	}
	order.Items = items
	return order, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, code, table_number, waiter_id, waiter_name,
		       customer_name, customer_email, status,
		       subtotal, tax, service_charge, total, payment_status,
		       created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	index := make(map[string]int)
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, err
		}
		index[order.OrderID] = len(orders)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	itemRows, err := s.pool.Query(ctx, `
		SELECT order_id, menu_item_id, name, unit_price, quantity
		FROM order_items
		ORDER BY order_id, position
	`)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID string
		var item models.OrderItem
		if err := itemRows.Scan(&orderID, &item.MenuItemID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) loadItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT menu_item_id, name, unit_price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func loadItemsTx(ctx context.Context, tx pgx.Tx, orderID string) ([]models.OrderItem, error) {
	rows, err := tx.Query(ctx, `
		SELECT menu_item_id, name, unit_price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]models.OrderItem, error) {
	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.MenuItemID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanOrder(row pgx.Row, order *models.Order) error {
	return row.Scan(
		&order.OrderID, &order.Code, &order.TableNumber, &order.WaiterID, &order.WaiterName,
		&order.CustomerName, &order.CustomerEmail, &order.Status,
		&order.Subtotal, &order.Tax, &order.ServiceCharge, &order.Total, &order.PaymentStatus,
		&order.CreatedAt, &order.UpdatedAt,
	)
}

func nextOrderNumber(ctx context.Context, tx pgx.Tx, createdAt time.Time) (int64, error) {
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO order_sequences (day, next_number)
		VALUES ($1::date, 1)
		ON CONFLICT (day)
		DO UPDATE SET next_number = order_sequences.next_number + 1
		RETURNING next_number
	`, createdAt)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func findOrderRequest(ctx context.Context, tx pgx.Tx, requestID string) (store.SubmitOrderResult, bool, error) {
	var result store.SubmitOrderResult
	row := tx.QueryRow(ctx, `
		SELECT r.order_id, o.code, r.created
		FROM order_requests r
		JOIN orders o ON o.order_id = r.order_id
		WHERE r.request_id = $1
	`, requestID)
	if err := row.Scan(&result.OrderID, &result.Code, &result.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.SubmitOrderResult{}, false, nil
		}
		return store.SubmitOrderResult{}, false, err
	}
	return result, true, nil
}
