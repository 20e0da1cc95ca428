package core

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finchex/trading-core/internal/domain"
)

// OrderBook holds the resting orders of one symbol. It is not safe for
// concurrent use; the engine serializes access per symbol.
type OrderBook struct {
	Symbol string

	bids []*domain.Order // price desc, FIFO within a level
	asks []*domain.Order // price asc, FIFO within a level

	volume24h  decimal.Decimal
	trades24h  int64
	lastPrice  decimal.Decimal
	lastUpdate time.Time
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{Symbol: symbol}
}

// Insert places the order at its price-time position. Orders at an equal
// price go behind the ones already resting there.
func (ob *OrderBook) Insert(o *domain.Order) {
	if o.Side == domain.Buy {
		i := sort.Search(len(ob.bids), func(i int) bool {
			return ob.bids[i].Price.LessThan(o.Price)
		})
		ob.bids = append(ob.bids, nil)
		copy(ob.bids[i+1:], ob.bids[i:])
		ob.bids[i] = o
	} else {
		i := sort.Search(len(ob.asks), func(i int) bool {
			return ob.asks[i].Price.GreaterThan(o.Price)
		})
		ob.asks = append(ob.asks, nil)
		copy(ob.asks[i+1:], ob.asks[i:])
		ob.asks[i] = o
	}
	ob.lastUpdate = o.UpdatedAt
}

// Remove deletes the order with the given id from its side.
func (ob *OrderBook) Remove(orderID string) bool {
	for i, o := range ob.bids {
		if o.ID == orderID {
			ob.bids = append(ob.bids[:i], ob.bids[i+1:]...)
			return true
		}
	}
	for i, o := range ob.asks {
		if o.ID == orderID {
			ob.asks = append(ob.asks[:i], ob.asks[i+1:]...)
			return true
		}
	}
	return false
}

// Match executes the aggressor against the opposite side until it is filled
// or no crossable liquidity remains. Fills happen at the resting order's
// price; fully filled resting orders leave the book. The aggressor is not
// inserted here.
func (ob *OrderBook) Match(aggressor *domain.Order) []*domain.Trade {
	var trades []*domain.Trade

	for aggressor.Remaining.GreaterThan(decimal.Zero) {
		best := ob.bestOpposite(aggressor.Side)
		if best == nil {
			break
		}
		if aggressor.Type != domain.Market && !crosses(aggressor, best) {
			break
		}

		qty := decimal.Min(aggressor.Remaining, best.Remaining)
		price := best.Price
		now := time.Now()

		aggressor.Fill(qty, price, now)
		best.Fill(qty, price, now)

		trade := &domain.Trade{
			ID:        uuid.NewString(),
			Symbol:    ob.Symbol,
			Price:     price,
			Quantity:  qty,
			Timestamp: now,
		}
		if aggressor.Side == domain.Buy {
			trade.BuyOrderID, trade.BuyUserID = aggressor.ID, aggressor.UserID
			trade.SellOrderID, trade.SellUserID = best.ID, best.UserID
		} else {
			trade.BuyOrderID, trade.BuyUserID = best.ID, best.UserID
			trade.SellOrderID, trade.SellUserID = aggressor.ID, aggressor.UserID
		}
		trades = append(trades, trade)

		ob.volume24h = ob.volume24h.Add(qty.Mul(price))
		ob.trades24h++
		ob.lastPrice = price
		ob.lastUpdate = now

		if best.IsFilled() {
			ob.Remove(best.ID)
		}
	}
	return trades
}

func (ob *OrderBook) bestOpposite(side domain.Side) *domain.Order {
	if side == domain.Buy {
		if len(ob.asks) == 0 {
			return nil
		}
		return ob.asks[0]
	}
	if len(ob.bids) == 0 {
		return nil
	}
	return ob.bids[0]
}

func crosses(aggressor, resting *domain.Order) bool {
	if aggressor.Side == domain.Buy {
		return aggressor.Price.GreaterThanOrEqual(resting.Price)
	}
	return aggressor.Price.LessThanOrEqual(resting.Price)
}

func (ob *OrderBook) BestBid() *domain.Order {
	if len(ob.bids) == 0 {
		return nil
	}
	return ob.bids[0]
}

func (ob *OrderBook) BestAsk() *domain.Order {
	if len(ob.asks) == 0 {
		return nil
	}
	return ob.asks[0]
}

// Spread returns best ask minus best bid; meaningful only when both sides
// are non-empty.
func (ob *OrderBook) Spread() decimal.Decimal {
	if len(ob.bids) == 0 || len(ob.asks) == 0 {
		return decimal.Zero
	}
	return ob.asks[0].Price.Sub(ob.bids[0].Price)
}

// Snapshot copies up to depth orders per side. depth <= 0 means full depth.
func (ob *OrderBook) Snapshot(depth int) *domain.BookSnapshot {
	nb, na := len(ob.bids), len(ob.asks)
	if depth > 0 {
		if nb > depth {
			nb = depth
		}
		if na > depth {
			na = depth
		}
	}
	snap := &domain.BookSnapshot{
		Symbol:     ob.Symbol,
		Bids:       make([]domain.Order, nb),
		Asks:       make([]domain.Order, na),
		Spread:     ob.Spread(),
		Volume24h:  ob.volume24h,
		Trades24h:  ob.trades24h,
		LastUpdate: ob.lastUpdate,
	}
	for i := 0; i < nb; i++ {
		snap.Bids[i] = *ob.bids[i]
	}
	for i := 0; i < na; i++ {
		snap.Asks[i] = *ob.asks[i]
	}
	return snap
}

func (ob *OrderBook) LastPrice() decimal.Decimal { return ob.lastPrice }
func (ob *OrderBook) Volume24h() decimal.Decimal { return ob.volume24h }
func (ob *OrderBook) Trades24h() int64           { return ob.trades24h }

// ResetDailyStats zeroes the rolling counters and returns the closed window's
// volume. An external scheduler decides when the window rolls.
func (ob *OrderBook) ResetDailyStats() decimal.Decimal {
	prev := ob.volume24h
	ob.volume24h = decimal.Zero
	ob.trades24h = 0
	return prev
}
