package models

import "time"

const (
	OrderPending   = "pending"
	OrderPreparing = "preparing"
	OrderServed    = "served"
	OrderPaid      = "paid"
	OrderCancelled = "cancelled"
)

const (
	TableAvailable = "available"
	TableOccupied  = "occupied"
	TableReserved  = "reserved"
)

const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

const (
	RoleWaiter     = "waiter"
	RoleChef       = "chef"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// OrderItem is a snapshot of a menu item at the moment it was ordered.
// Renaming or repricing the menu item later does not touch existing orders.
type OrderItem struct {
	MenuItemID string  `json:"menu_item_id"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
}

type Order struct {
	OrderID       string      `json:"order_id"`
	Code          string      `json:"code"`
	TableNumber   int         `json:"table_number"`
	WaiterID      string      `json:"waiter_id"`
	WaiterName    string      `json:"waiter_name"`
	CustomerName  string      `json:"customer_name,omitempty"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Items         []OrderItem `json:"items"`
	Status        string      `json:"status"`
	Subtotal      float64     `json:"subtotal"`
	Tax           float64     `json:"tax"`
	ServiceCharge float64     `json:"service_charge"`
	Total         float64     `json:"total"`
	PaymentStatus string      `json:"payment_status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// MenuItem is the catalog entry; orders copy its name and price at submit
// time, so edits here never touch existing orders.
type MenuItem struct {
	MenuItemID  string    `json:"menu_item_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Table struct {
	TableNumber     int       `json:"table_number"`
	Name            string    `json:"name"`
	SeatingCapacity int       `json:"seating_capacity"`
	Status          string    `json:"status"`
	CurrentWaiterID *string   `json:"current_waiter_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type User struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserRole  string    `json:"user_role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Payment struct {
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
