package reservation

import "errors"

// Engine errors are user-facing and recoverable; the HTTP layer maps each to
// a status code.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateActive   = errors.New("an active reservation already exists")
	ErrNoActiveOrder     = errors.New("no active reservation")
	ErrAlreadyCompleted  = errors.New("order already completed")
	ErrMethodLocked      = errors.New("payment method is locked")
	ErrNotOwner          = errors.New("order belongs to another buyer")
	ErrOrderActive       = errors.New("selection is frozen while a reservation is active")
	ErrItemNotFound      = errors.New("item not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrUnknownMethod     = errors.New("unknown payment method")
)
