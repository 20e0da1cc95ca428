package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string
type OrderType string
type OrderStatus string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"

	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
	Stop   OrderType = "STOP"

	Pending         OrderStatus = "PENDING"
	PartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	Filled          OrderStatus = "FILLED"
	Cancelled       OrderStatus = "CANCELLED"
)

type Order struct {
	ID             string
	UserID         string
	Symbol         string
	Side           Side
	Type           OrderType
	Price          decimal.Decimal
	Quantity       decimal.Decimal
	FilledQuantity decimal.Decimal
	Remaining      decimal.Decimal
	AveragePrice   decimal.Decimal
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Fill applies a partial or full execution at the given price, keeping
// AveragePrice volume-weighted and Status derived from the filled amount.
func (o *Order) Fill(qty, price decimal.Decimal, at time.Time) {
	prevFilled := o.FilledQuantity
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	o.Remaining = o.Quantity.Sub(o.FilledQuantity)
	o.AveragePrice = prevFilled.Mul(o.AveragePrice).Add(qty.Mul(price)).Div(o.FilledQuantity)
	if o.Remaining.IsZero() {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
	o.UpdatedAt = at
}

func (o *Order) IsFilled() bool {
	return o.Remaining.IsZero()
}

// Terminal reports whether the order can no longer rest in a book.
func (o *Order) Terminal() bool {
	return o.Status == Filled || o.Status == Cancelled
}
