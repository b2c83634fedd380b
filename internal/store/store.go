package store

import (
	"context"
	"time"

	"pos/internal/models"
)

type SubmitOrderInput struct {
	// RequestID is an optional client idempotency token. A replayed token
	// returns the original order without appending items twice.
	RequestID     string
	TableNumber   int
	WaiterID      string
	WaiterName    string
	CustomerName  string
	CustomerEmail string
	Items         []models.OrderItem
	CreatedAt     time.Time
}

type SubmitOrderResult struct {
	OrderID string `json:"order_id"`
	Code    string `json:"code"`
	Created bool   `json:"created"`
}

type CreateTableInput struct {
	Name            string
	TableNumber     int
	SeatingCapacity int
}

type CreateMenuItemInput struct {
	Name        string
	Description string
	Category    string
	Price       float64
}

type CreateUserInput struct {
	Name  string
	PIN   string
	Role  string
	Email string
}

// Store is the persistence contract for the whole service. The postgres
// implementation owns every multi-step invariant (active-order check plus
// creation, status transition plus table unlock) inside single transactions.
type Store interface {
	SubmitOrder(ctx context.Context, input SubmitOrderInput) (SubmitOrderResult, error)
	GetOrder(ctx context.Context, ref string) (models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	AdvanceStatus(ctx context.Context, ref, newStatus string) (models.Order, error)

	ListMenu(ctx context.Context) ([]models.MenuItem, error)
	CreateMenuItem(ctx context.Context, input CreateMenuItemInput) (models.MenuItem, error)
	DeleteMenuItem(ctx context.Context, menuItemID string) error

	ListTables(ctx context.Context) ([]models.Table, error)
	CreateTable(ctx context.Context, input CreateTableInput) (models.Table, error)
	DeleteTable(ctx context.Context, tableNumber int) error
	OverrideTableStatus(ctx context.Context, tableNumber int, status string) error

	Login(ctx context.Context, name, pin string) (models.Session, models.User, error)
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	CreateUser(ctx context.Context, input CreateUserInput) (models.User, error)
	ListStaff(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, userID string) error

	CreatePayment(ctx context.Context, orderRef string) (models.Payment, error)
}
