package store

import "errors"

var (
	ErrInvalidItems       = errors.New("order items are invalid")
	ErrTableNotFound      = errors.New("table not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrTableConflict      = errors.New("table occupied by another waiter")
	ErrTableActiveOrder   = errors.New("table has an active order")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDuplicateTable     = errors.New("table number already exists")
	ErrDuplicateUser      = errors.New("user name already exists")
	ErrMenuItemNotFound   = errors.New("menu item not found")
	ErrDuplicateMenuItem  = errors.New("menu item name already exists")
)
