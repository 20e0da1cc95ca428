package in_memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/finchex/trading-core/internal/domain"
	"github.com/finchex/trading-core/internal/port"
)

var _ port.Repository = (*MemoryRepo)(nil)

// MemoryRepo is the default history store when no database is configured;
// tests use it as well.
type MemoryRepo struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	byOrder  map[string][]*domain.Trade
	bySymbol map[string][]*domain.Trade
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		orders:   make(map[string]*domain.Order),
		byOrder:  make(map[string][]*domain.Trade),
		bySymbol: make(map[string][]*domain.Trade),
	}
}

func (r *MemoryRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *MemoryRepo) SaveTrade(ctx context.Context, t *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOrder[t.BuyOrderID] = append(r.byOrder[t.BuyOrderID], t)
	r.byOrder[t.SellOrderID] = append(r.byOrder[t.SellOrderID], t)
	r.bySymbol[t.Symbol] = append(r.bySymbol[t.Symbol], t)
	return nil
}

func (r *MemoryRepo) LoadOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	cp := *o
	return &cp, nil
}

func (r *MemoryRepo) LoadTradesForOrder(ctx context.Context, orderID string) ([]*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Trade(nil), r.byOrder[orderID]...), nil
}

func (r *MemoryRepo) LoadTradesForSymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trades := r.bySymbol[symbol]
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	return append([]*domain.Trade(nil), trades...), nil
}
