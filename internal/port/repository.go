package port

import (
	"context"

	"github.com/finchex/trading-core/internal/domain"
)

// Repository is the terminal-record history store. The engine treats it as
// best-effort: a failed write never rolls back a matching pass.
type Repository interface {
	SaveOrder(ctx context.Context, o *domain.Order) error
	SaveTrade(ctx context.Context, t *domain.Trade) error
	LoadOrder(ctx context.Context, orderID string) (*domain.Order, error)
	LoadTradesForOrder(ctx context.Context, orderID string) ([]*domain.Trade, error)
	LoadTradesForSymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
}
