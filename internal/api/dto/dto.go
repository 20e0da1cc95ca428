package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubmitOrderRequest struct {
	UserID   string          `json:"user_id" binding:"required"`
	Symbol   string          `json:"symbol" binding:"required"`
	Side     string          `json:"side" binding:"required"`
	Type     string          `json:"type" binding:"required"`
	Price    decimal.Decimal `json:"price,omitempty"` // limit orders only
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
}

type SubmitOrderResponse struct {
	Order  Order   `json:"order"`
	Trades []Trade `json:"trades"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

type CancelOrderResponse struct {
	Order     Order `json:"order"`
	Cancelled bool  `json:"cancelled"`
}

type GetOrderResponse struct {
	Order Order `json:"order"`
}

type GetTradesResponse struct {
	Trades []Trade `json:"trades"`
}

type OrderBookResponse struct {
	Symbol     string          `json:"symbol"`
	Bids       []Order         `json:"bids"`
	Asks       []Order         `json:"asks"`
	Spread     decimal.Decimal `json:"spread"`
	Volume24h  decimal.Decimal `json:"volume_24h"`
	Trades24h  int64           `json:"trades_24h"`
	LastUpdate time.Time       `json:"last_update"`
}

type BestBidAskResponse struct {
	Symbol string          `json:"symbol"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
	HasBid bool            `json:"has_bid"`
	HasAsk bool            `json:"has_ask"`
}

type MarketDataResponse struct {
	Symbol          string          `json:"symbol"`
	Bid             decimal.Decimal `json:"bid"`
	Ask             decimal.Decimal `json:"ask"`
	Spread          decimal.Decimal `json:"spread"`
	LastPrice       decimal.Decimal `json:"last_price"`
	Volume24h       decimal.Decimal `json:"volume_24h"`
	Trades24h       int64           `json:"trades_24h"`
	PriceChange24h  decimal.Decimal `json:"price_change_24h"`
	VolumeChange24h decimal.Decimal `json:"volume_change_24h"`
	Timestamp       time.Time       `json:"timestamp"`
}

type HealthResponse struct {
	Status   string         `json:"status"`
	Symbols  []string       `json:"symbols"`
	Breakers map[string]any `json:"breakers"`
}

type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Type           string          `json:"type"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	Remaining      decimal.Decimal `json:"remaining"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Trade struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	BuyOrderID  string          `json:"buy_order_id"`
	SellOrderID string          `json:"sell_order_id"`
	Timestamp   time.Time       `json:"timestamp"`
}
