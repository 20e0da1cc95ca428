package port

import (
	"context"

	"github.com/finchex/trading-core/internal/domain"
)

// Cache publishes book and market-data snapshots for out-of-process readers.
type Cache interface {
	SetBook(ctx context.Context, symbol string, snap *domain.BookSnapshot) error
	GetBook(ctx context.Context, symbol string) (*domain.BookSnapshot, error)
	SetMarketData(ctx context.Context, md *domain.MarketData) error
	GetMarketData(ctx context.Context, symbol string) (*domain.MarketData, error)
}
