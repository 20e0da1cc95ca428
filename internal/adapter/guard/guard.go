// Package guard wraps the persistence ports in circuit breakers so that a
// failing history store or cache cannot cascade into the matching path.
package guard

import (
	"context"

	"github.com/finchex/trading-core/internal/domain"
	"github.com/finchex/trading-core/internal/port"
	"github.com/finchex/trading-core/internal/resilience"
)

const (
	BreakerRepository = "history-store"
	BreakerCache      = "market-cache"
)

var (
	_ port.Repository = (*Repository)(nil)
	_ port.Cache      = (*Cache)(nil)
)

// Repository decorates a port.Repository with a named breaker from the
// registry. Failures are recorded before they surface to the caller.
type Repository struct {
	inner port.Repository
	cb    *resilience.CircuitBreaker
}

func NewRepository(inner port.Repository, reg *resilience.Registry, cfg ...resilience.Config) *Repository {
	return &Repository{inner: inner, cb: reg.GetBreaker(BreakerRepository, cfg...)}
}

func (r *Repository) SaveOrder(ctx context.Context, o *domain.Order) error {
	return r.cb.Execute(ctx, func(ctx context.Context) error {
		return r.inner.SaveOrder(ctx, o)
	})
}

func (r *Repository) SaveTrade(ctx context.Context, t *domain.Trade) error {
	return r.cb.Execute(ctx, func(ctx context.Context) error {
		return r.inner.SaveTrade(ctx, t)
	})
}

func (r *Repository) LoadOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var out *domain.Order
	err := r.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.LoadOrder(ctx, orderID)
		return err
	})
	return out, err
}

func (r *Repository) LoadTradesForOrder(ctx context.Context, orderID string) ([]*domain.Trade, error) {
	var out []*domain.Trade
	err := r.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.LoadTradesForOrder(ctx, orderID)
		return err
	})
	return out, err
}

func (r *Repository) LoadTradesForSymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	var out []*domain.Trade
	err := r.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.LoadTradesForSymbol(ctx, symbol, limit)
		return err
	})
	return out, err
}

// Cache decorates a port.Cache the same way. Reads fall back to a cache miss
// when the breaker is open, so consumers degrade instead of erroring.
type Cache struct {
	inner port.Cache
	cb    *resilience.CircuitBreaker
}

func NewCache(inner port.Cache, reg *resilience.Registry, cfg ...resilience.Config) *Cache {
	return &Cache{inner: inner, cb: reg.GetBreaker(BreakerCache, cfg...)}
}

func (c *Cache) SetBook(ctx context.Context, symbol string, snap *domain.BookSnapshot) error {
	return c.cb.Execute(ctx, func(ctx context.Context) error {
		return c.inner.SetBook(ctx, symbol, snap)
	})
}

func (c *Cache) GetBook(ctx context.Context, symbol string) (*domain.BookSnapshot, error) {
	var out *domain.BookSnapshot
	err := c.cb.ExecuteWithFallback(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.inner.GetBook(ctx, symbol)
		return err
	}, func(ctx context.Context, err error) error {
		if resilience.IsCircuitOpen(err) {
			out = nil
			return nil
		}
		return err
	})
	return out, err
}

func (c *Cache) SetMarketData(ctx context.Context, md *domain.MarketData) error {
	return c.cb.Execute(ctx, func(ctx context.Context) error {
		return c.inner.SetMarketData(ctx, md)
	})
}

func (c *Cache) GetMarketData(ctx context.Context, symbol string) (*domain.MarketData, error) {
	var out *domain.MarketData
	err := c.cb.ExecuteWithFallback(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.inner.GetMarketData(ctx, symbol)
		return err
	}, func(ctx context.Context, err error) error {
		if resilience.IsCircuitOpen(err) {
			out = nil
			return nil
		}
		return err
	})
	return out, err
}
