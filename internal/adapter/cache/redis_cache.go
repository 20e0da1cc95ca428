package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finchex/trading-core/internal/domain"
	"github.com/finchex/trading-core/internal/port"
)

var _ port.Cache = (*RedisCache)(nil)

// RedisCache publishes book and market-data snapshots for out-of-process
// readers (market feeds, dashboards). Entries expire after ttl.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: rdb, ttl: ttl}
}

func (c *RedisCache) Close() error { return c.client.Close() }

func bookKey(symbol string) string { return "book:" + symbol }
func mdKey(symbol string) string   { return "md:" + symbol }

func (c *RedisCache) SetBook(ctx context.Context, symbol string, snap *domain.BookSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, bookKey(symbol), b, c.ttl).Err()
}

func (c *RedisCache) GetBook(ctx context.Context, symbol string) (*domain.BookSnapshot, error) {
	b, err := c.client.Get(ctx, bookKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.BookSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *RedisCache) SetMarketData(ctx context.Context, md *domain.MarketData) error {
	b, err := json.Marshal(md)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, mdKey(md.Symbol), b, c.ttl).Err()
}

func (c *RedisCache) GetMarketData(ctx context.Context, symbol string) (*domain.MarketData, error) {
	b, err := c.client.Get(ctx, mdKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var md domain.MarketData
	if err := json.Unmarshal(b, &md); err != nil {
		return nil, err
	}
	return &md, nil
}
