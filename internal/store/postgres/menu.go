package postgres

import (
	"context"
	"time"

	"pos/internal/models"
	"pos/internal/store"

	"github.com/google/uuid"
)

// ListMenu returns available items only, ordered for display.
func (s *Store) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT menu_item_id, name, description, category, price, available, created_at, updated_at
		FROM menu_items
		WHERE available
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.MenuItem
	for rows.Next() {
		var item models.MenuItem
		err := rows.Scan(&item.MenuItemID, &item.Name, &item.Description, &item.Category,
			&item.Price, &item.Available, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) CreateMenuItem(ctx context.Context, input store.CreateMenuItemInput) (models.MenuItem, error) {
	item := models.MenuItem{
		MenuItemID:  uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Price:       input.Price,
		Available:   true,
		CreatedAt:   time.Now().UTC(),
	}
	item.UpdatedAt = item.CreatedAt
	_, err := s.pool.Exec(ctx, `
		INSERT INTO menu_items (menu_item_id, name, description, category, price, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, item.MenuItemID, item.Name, item.Description, item.Category, item.Price, item.Available, item.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.MenuItem{}, store.ErrDuplicateMenuItem
		}
		return models.MenuItem{}, err
	}
	return item, nil
}

func (s *Store) DeleteMenuItem(ctx context.Context, menuItemID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM menu_items WHERE menu_item_id::text = $1`, menuItemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrMenuItemNotFound
	}
	return nil
}
