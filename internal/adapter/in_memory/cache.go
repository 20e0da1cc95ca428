package in_memory

import (
	"context"
	"sync"

	"github.com/finchex/trading-core/internal/domain"
	"github.com/finchex/trading-core/internal/port"
)

var _ port.Cache = (*Cache)(nil)

type Cache struct {
	mu    sync.Mutex
	books map[string]*domain.BookSnapshot
	md    map[string]*domain.MarketData
}

func NewCache() *Cache {
	return &Cache{
		books: make(map[string]*domain.BookSnapshot),
		md:    make(map[string]*domain.MarketData),
	}
}

func (c *Cache) SetBook(ctx context.Context, symbol string, snap *domain.BookSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books[symbol] = snap.DeepCopy()
	return nil
}

func (c *Cache) GetBook(ctx context.Context, symbol string) (*domain.BookSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.books[symbol]
	if !ok {
		return nil, nil
	}
	return snap.DeepCopy(), nil
}

func (c *Cache) SetMarketData(ctx context.Context, md *domain.MarketData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *md
	c.md[md.Symbol] = &cp
	return nil
}

func (c *Cache) GetMarketData(ctx context.Context, symbol string) (*domain.MarketData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	md, ok := c.md[symbol]
	if !ok {
		return nil, nil
	}
	cp := *md
	return &cp, nil
}
