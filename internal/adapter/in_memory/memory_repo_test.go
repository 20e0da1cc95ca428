package in_memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finchex/trading-core/internal/domain"
)

func TestMemoryRepoOrderRoundTrip(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	order := &domain.Order{ID: "o1", Symbol: "BTC/USD", Status: domain.Pending}
	require.NoError(t, repo.SaveOrder(ctx, order))

	// The stored record is a copy, not an alias.
	order.Status = domain.Filled
	got, err := repo.LoadOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.Pending, got.Status)

	_, err = repo.LoadOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestMemoryRepoTradeIndexes(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, repo.SaveTrade(ctx, &domain.Trade{
			ID:          id,
			Symbol:      "BTC/USD",
			BuyOrderID:  "buy-1",
			SellOrderID: "sell-" + id,
			Quantity:    decimal.NewFromInt(1),
		}))
	}

	byOrder, err := repo.LoadTradesForOrder(ctx, "buy-1")
	require.NoError(t, err)
	assert.Len(t, byOrder, 3)

	bySell, err := repo.LoadTradesForOrder(ctx, "sell-t2")
	require.NoError(t, err)
	require.Len(t, bySell, 1)
	assert.Equal(t, "t2", bySell[0].ID)

	limited, err := repo.LoadTradesForSymbol(ctx, "BTC/USD", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "t2", limited[0].ID)
	assert.Equal(t, "t3", limited[1].ID)
}

func TestMemoryCacheMissesReturnNil(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	snap, err := c.GetBook(ctx, "BTC/USD")
	assert.NoError(t, err)
	assert.Nil(t, snap)

	md, err := c.GetMarketData(ctx, "BTC/USD")
	assert.NoError(t, err)
	assert.Nil(t, md)
}

func TestMemoryCacheStoresCopies(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	snap := &domain.BookSnapshot{Symbol: "BTC/USD", Trades24h: 1}
	require.NoError(t, c.SetBook(ctx, "BTC/USD", snap))
	snap.Trades24h = 99

	got, err := c.GetBook(ctx, "BTC/USD")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.Trades24h)

	md := &domain.MarketData{Symbol: "BTC/USD", Trades24h: 5}
	require.NoError(t, c.SetMarketData(ctx, md))
	gotMD, err := c.GetMarketData(ctx, "BTC/USD")
	require.NoError(t, err)
	require.NotNil(t, gotMD)
	assert.Equal(t, int64(5), gotMD.Trades24h)
}
