package types

import "errors"

// Error kinds surfaced by the order core
var (
	// ErrValidation is returned when required reference fields are missing
	// or a value is out of range. Nothing is written.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when an order or lookup record doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrStorage is returned when a transaction fails. The transaction is
	// rolled back in full.
	ErrStorage = errors.New("storage error")
	// ErrConflict is returned when an update carries a stale version or an
	// order number cannot be allocated
	ErrConflict = errors.New("conflict")
	// ErrTimeout is returned when an operation exceeds its deadline
	ErrTimeout = errors.New("timeout")
	// ErrInvalidCredentials is returned by authentication
	ErrInvalidCredentials = errors.New("invalid credentials")
)
