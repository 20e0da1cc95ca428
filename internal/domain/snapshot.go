package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookSnapshot is a depth-truncated, read-only copy of one side-pair of a book.
type BookSnapshot struct {
	Symbol     string
	Bids       []Order
	Asks       []Order
	Spread     decimal.Decimal
	Volume24h  decimal.Decimal
	Trades24h  int64
	LastUpdate time.Time
}

// MarketData is derived per symbol and replaced wholesale on each update.
type MarketData struct {
	Symbol          string
	Bid             decimal.Decimal
	Ask             decimal.Decimal
	Spread          decimal.Decimal
	LastPrice       decimal.Decimal
	Volume24h       decimal.Decimal
	Trades24h       int64
	PriceChange24h  decimal.Decimal
	VolumeChange24h decimal.Decimal
	Timestamp       time.Time
}

// BestBidAsk is the top of book. Bid/Ask are zero when the side is empty.
type BestBidAsk struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	HasBid bool
	HasAsk bool
}

func (s *BookSnapshot) DeepCopy() *BookSnapshot {
	cp := *s
	cp.Bids = append([]Order(nil), s.Bids...)
	cp.Asks = append([]Order(nil), s.Asks...)
	return &cp
}
