package domain

import "errors"

// Caller-input errors. All are reported synchronously and never leave a book
// partially mutated.
var (
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidSide      = errors.New("invalid side")
	ErrInvalidOrderType = errors.New("invalid order type")
	ErrOrderNotFound    = errors.New("order not found")
)
