package postgres

import (
	"context"
	"errors"
	"time"

	"pos/internal/models"
	"pos/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
)

func (s *Store) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT table_number, name, seating_capacity, status, current_waiter_id, created_at, updated_at
		FROM tables
		ORDER BY table_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		var table models.Table
		err := rows.Scan(&table.TableNumber, &table.Name, &table.SeatingCapacity,
			&table.Status, &table.CurrentWaiterID, &table.CreatedAt, &table.UpdatedAt)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

func (s *Store) CreateTable(ctx context.Context, input store.CreateTableInput) (models.Table, error) {
	capacity := input.SeatingCapacity
	if capacity <= 0 {
		capacity = 4
	}
	table := models.Table{
		TableNumber:     input.TableNumber,
		Name:            input.Name,
		SeatingCapacity: capacity,
		Status:          models.TableAvailable,
		CreatedAt:       time.Now().UTC(),
	}
	table.UpdatedAt = table.CreatedAt
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tables (table_number, name, seating_capacity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, table.TableNumber, table.Name, table.SeatingCapacity, table.Status, table.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Table{}, store.ErrDuplicateTable
		}
		return models.Table{}, err
	}
	return table, nil
}

// DeleteTable refuses while an active order still references the table.
func (s *Store) DeleteTable(ctx context.Context, tableNumber int) error {
	var active bool
	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders WHERE table_number = $1 AND status = ANY($2)
		)
	`, tableNumber, store.ActiveStatuses())
	if err := row.Scan(&active); err != nil {
		return err
	}
	if active {
		return store.ErrTableActiveOrder
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM tables WHERE table_number = $1`, tableNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrTableNotFound
	}
	return nil
}

// OverrideTableStatus is the admin escape hatch. Marking a table available
// also drops its waiter lock.
func (s *Store) OverrideTableStatus(ctx context.Context, tableNumber int, status string) error {
	var tag pgconn.CommandTag
	var err error
	if status == models.TableAvailable {
		tag, err = s.pool.Exec(ctx, `
			UPDATE tables
			SET status = $1, current_waiter_id = NULL, updated_at = NOW()
			WHERE table_number = $2
		`, status, tableNumber)
	} else {
		tag, err = s.pool.Exec(ctx, `
			UPDATE tables
			SET status = $1, updated_at = NOW()
			WHERE table_number = $2
		`, status, tableNumber)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrTableNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
