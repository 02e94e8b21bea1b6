package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrUnknownOrder    = errors.New("unknown_order")
	ErrAlreadyTerminal = errors.New("already_terminal")
	ErrProductNotFound = errors.New("product_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
