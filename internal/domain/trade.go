package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the immutable record of a single match. Price is always the
// resting order's price.
type Trade struct {
	ID          string
	Symbol      string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	BuyOrderID  string
	SellOrderID string
	BuyUserID   string
	SellUserID  string
	Timestamp   time.Time
}
