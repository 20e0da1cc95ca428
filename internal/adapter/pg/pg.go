package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finchex/trading-core/internal/domain"
	"github.com/finchex/trading-core/internal/port"
)

var _ port.Repository = (*PgRepo)(nil)

// PgRepo persists terminal order records and trades. It is a history store:
// the in-memory books remain authoritative for matching.
type PgRepo struct {
	pool *pgxpool.Pool
}

// NewPgRepo opens a pool against dsn. Call Close when finished.
func NewPgRepo(ctx context.Context, dsn string) (*PgRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	return &PgRepo{pool: pool}, nil
}

func (p *PgRepo) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PgRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO orders(id, user_id, symbol, side, type, price, quantity, filled_quantity, remaining, average_price, status, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  filled_quantity = EXCLUDED.filled_quantity,
  remaining = EXCLUDED.remaining,
  average_price = EXCLUDED.average_price,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at
`, o.ID, o.UserID, o.Symbol, string(o.Side), string(o.Type),
		o.Price, o.Quantity, o.FilledQuantity, o.Remaining, o.AveragePrice,
		string(o.Status), o.CreatedAt, o.UpdatedAt)
	return err
}

func (p *PgRepo) SaveTrade(ctx context.Context, t *domain.Trade) error {
	if t == nil {
		return errors.New("nil trade")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO trades(id, symbol, price, quantity, buy_order_id, sell_order_id, buy_user_id, sell_user_id, executed_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO NOTHING
`, t.ID, t.Symbol, t.Price, t.Quantity, t.BuyOrderID, t.SellOrderID, t.BuyUserID, t.SellUserID, t.Timestamp)
	return err
}

func (p *PgRepo) LoadOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row := p.pool.QueryRow(ctx, `
SELECT id, user_id, symbol, side, type, price, quantity, filled_quantity, remaining, average_price, status, created_at, updated_at
FROM orders WHERE id = $1
`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return o, err
}

func (p *PgRepo) LoadTradesForOrder(ctx context.Context, orderID string) ([]*domain.Trade, error) {
	return p.loadTrades(ctx, `
SELECT id, symbol, price, quantity, buy_order_id, sell_order_id, buy_user_id, sell_user_id, executed_at
FROM trades WHERE buy_order_id = $1 OR sell_order_id = $1
ORDER BY executed_at ASC
`, orderID)
}

func (p *PgRepo) LoadTradesForSymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	return p.loadTrades(ctx, `
SELECT id, symbol, price, quantity, buy_order_id, sell_order_id, buy_user_id, sell_user_id, executed_at
FROM trades WHERE symbol = $1
ORDER BY executed_at DESC
LIMIT $2
`, symbol, limit)
}

func (p *PgRepo) loadTrades(ctx context.Context, query string, args ...any) ([]*domain.Trade, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Price, &t.Quantity,
			&t.BuyOrderID, &t.SellOrderID, &t.BuyUserID, &t.SellUserID, &t.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, &t)
	}
	return res, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var side, typ, status string
	if err := row.Scan(&o.ID, &o.UserID, &o.Symbol, &side, &typ,
		&o.Price, &o.Quantity, &o.FilledQuantity, &o.Remaining, &o.AveragePrice,
		&status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Side = domain.Side(side)
	o.Type = domain.OrderType(typ)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}
