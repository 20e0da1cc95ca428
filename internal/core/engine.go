package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finchex/trading-core/internal/domain"
	"github.com/finchex/trading-core/internal/events"
	"github.com/finchex/trading-core/internal/port"
)

// SymbolConfig carries the trading rules of one registered symbol.
type SymbolConfig struct {
	Symbol       string
	TickSize     decimal.Decimal
	MinOrderSize decimal.Decimal
	MaxOrderSize decimal.Decimal
}

// SubmitRequest is the inbound order payload after transport decoding.
type SubmitRequest struct {
	Symbol   string
	Side     domain.Side
	Type     domain.OrderType
	Price    decimal.Decimal
	Quantity decimal.Decimal
	UserID   string
}

type bookEntry struct {
	mu   sync.Mutex
	book *OrderBook
	cfg  SymbolConfig

	// 24h window anchors, rolled by ResetDailyStats.
	open24h       decimal.Decimal
	prevVolume24h decimal.Decimal

	md *domain.MarketData
}

// Engine owns the per-symbol order books and the active-order index.
// Mutation of a single book (insert + match + trade execution) is a critical
// section under that book's mutex; different symbols proceed in parallel.
type Engine struct {
	mu    sync.RWMutex
	books map[string]*bookEntry

	idxMu  sync.RWMutex
	active map[string]*domain.Order

	repo  port.Repository
	cache port.Cache
	bus   *events.Bus
	log   *zap.Logger
}

func NewEngine(repo port.Repository, cache port.Cache, bus *events.Bus, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &Engine{
		books:  make(map[string]*bookEntry),
		active: make(map[string]*domain.Order),
		repo:   repo,
		cache:  cache,
		bus:    bus,
		log:    log,
	}
}

// RegisterSymbol creates the book for a symbol. Submissions for unregistered
// symbols are rejected; there is no implicit book creation.
func (e *Engine) RegisterSymbol(cfg SymbolConfig) error {
	if cfg.Symbol == "" {
		return fmt.Errorf("%w: empty", domain.ErrUnknownSymbol)
	}
	if !cfg.TickSize.IsPositive() {
		return fmt.Errorf("%w: tick size must be positive", domain.ErrInvalidPrice)
	}
	if !cfg.MinOrderSize.IsPositive() || cfg.MaxOrderSize.LessThan(cfg.MinOrderSize) {
		return fmt.Errorf("%w: min/max order size misconfigured", domain.ErrInvalidQuantity)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.books[cfg.Symbol]; exists {
		return fmt.Errorf("symbol %s already registered", cfg.Symbol)
	}
	e.books[cfg.Symbol] = &bookEntry{book: NewOrderBook(cfg.Symbol), cfg: cfg}
	e.log.Info("symbol registered",
		zap.String("symbol", cfg.Symbol),
		zap.String("tick_size", cfg.TickSize.String()))
	return nil
}

func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.books))
	for s := range e.books {
		out = append(out, s)
	}
	return out
}

func (e *Engine) entry(symbol string) *bookEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.books[symbol]
}

// SubmitOrder validates the request, inserts the order into its book and
// matches it against the opposite side. Validation failures mutate nothing;
// once validation passes, insertion and matching are one atomic unit under
// the symbol lock. Market orders execute immediate-or-cancel and never rest.
func (e *Engine) SubmitOrder(ctx context.Context, req SubmitRequest) (*domain.Order, []*domain.Trade, error) {
	ent := e.entry(req.Symbol)
	if ent == nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, req.Symbol)
	}
	if err := validate(req, ent.cfg); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	order := &domain.Order{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Remaining: req.Quantity,
		Status:    domain.Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	e.trackOrder(order)

	ent.mu.Lock()
	trades := ent.book.Match(order)
	switch {
	case order.IsFilled():
		e.untrackOrder(order.ID)
	case order.Type == domain.Market:
		// IOC: the unfilled remainder of a market order is cancelled.
		order.Status = domain.Cancelled
		order.UpdatedAt = time.Now()
		e.untrackOrder(order.ID)
	default:
		ent.book.Insert(order)
	}
	var resting []*domain.Order
	for _, t := range trades {
		restingID := t.SellOrderID
		if order.Side == domain.Sell {
			restingID = t.BuyOrderID
		}
		if r := e.lookupOrder(restingID); r != nil {
			cp := *r
			resting = append(resting, &cp)
			if r.IsFilled() {
				e.untrackOrder(restingID)
			}
		}
	}
	md := ent.deriveMarketData()
	snap := ent.book.Snapshot(0)
	result := *order
	ent.mu.Unlock()

	e.persistPass(ctx, &result, resting, trades)
	e.syncCache(ctx, result.Symbol, snap, md)
	e.publishPass(&result, trades, snap, md)

	return &result, trades, nil
}

func validate(req SubmitRequest, cfg SymbolConfig) error {
	switch req.Side {
	case domain.Buy, domain.Sell:
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidSide, req.Side)
	}
	switch req.Type {
	case domain.Limit, domain.Market:
	case domain.Stop:
		return fmt.Errorf("%w: stop orders are not supported", domain.ErrInvalidOrderType)
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidOrderType, req.Type)
	}
	if req.Quantity.LessThan(cfg.MinOrderSize) || req.Quantity.GreaterThan(cfg.MaxOrderSize) {
		return fmt.Errorf("%w: %s outside [%s, %s]",
			domain.ErrInvalidQuantity, req.Quantity, cfg.MinOrderSize, cfg.MaxOrderSize)
	}
	if req.Type == domain.Limit {
		if !req.Price.IsPositive() {
			return fmt.Errorf("%w: %s", domain.ErrInvalidPrice, req.Price)
		}
		if !req.Price.Mod(cfg.TickSize).IsZero() {
			return fmt.Errorf("%w: %s is not a multiple of tick size %s",
				domain.ErrInvalidPrice, req.Price, cfg.TickSize)
		}
	}
	return nil
}

// CancelOrder removes a resting order from its book. Terminal or unknown
// orders report ErrOrderNotFound.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order := e.lookupOrder(orderID)
	if order == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	ent := e.entry(order.Symbol)
	if ent == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, order.Symbol)
	}

	ent.mu.Lock()
	if order.Terminal() || !ent.book.Remove(orderID) {
		ent.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	order.Status = domain.Cancelled
	order.UpdatedAt = time.Now()
	e.untrackOrder(orderID)
	md := ent.deriveMarketData()
	snap := ent.book.Snapshot(0)
	result := *order
	ent.mu.Unlock()

	if e.repo != nil {
		if err := e.repo.SaveOrder(ctx, &result); err != nil {
			e.log.Warn("persist cancelled order", zap.String("order_id", result.ID), zap.Error(err))
		}
	}
	e.syncCache(ctx, result.Symbol, snap, md)

	e.bus.Publish(events.TopicOrderCancelled, &result)
	e.bus.Publish(events.TopicOrderBookUpdate, snap)
	e.bus.Publish(events.TopicMarketData, md)

	return &result, nil
}

// GetOrder reads the active index first and falls back to the history store.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if o := e.lookupOrder(orderID); o != nil {
		// Copy under the symbol lock; resting orders mutate during matching.
		if ent := e.entry(o.Symbol); ent != nil {
			ent.mu.Lock()
			cp := *o
			ent.mu.Unlock()
			return &cp, nil
		}
	}
	if e.repo != nil {
		if o, err := e.repo.LoadOrder(ctx, orderID); err == nil && o != nil {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
}

func (e *Engine) GetTradesForOrder(ctx context.Context, orderID string) ([]*domain.Trade, error) {
	if e.repo == nil {
		return nil, nil
	}
	return e.repo.LoadTradesForOrder(ctx, orderID)
}

// GetOrderBook returns a depth-truncated snapshot. Two calls with no
// intervening mutation return equal results.
func (e *Engine) GetOrderBook(ctx context.Context, symbol string, depth int) (*domain.BookSnapshot, error) {
	ent := e.entry(symbol)
	if ent == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.book.Snapshot(depth), nil
}

// GetBestBidAsk returns nil when the symbol is not registered.
func (e *Engine) GetBestBidAsk(symbol string) *domain.BestBidAsk {
	ent := e.entry(symbol)
	if ent == nil {
		return nil
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	best := &domain.BestBidAsk{Symbol: symbol}
	if bid := ent.book.BestBid(); bid != nil {
		best.Bid, best.HasBid = bid.Price, true
	}
	if ask := ent.book.BestAsk(); ask != nil {
		best.Ask, best.HasAsk = ask.Price, true
	}
	return best
}

// GetMarketData returns the latest derived snapshot, or nil when the symbol
// is unknown or nothing has been derived yet.
func (e *Engine) GetMarketData(symbol string) *domain.MarketData {
	ent := e.entry(symbol)
	if ent == nil {
		return nil
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	if ent.md == nil {
		return nil
	}
	cp := *ent.md
	return &cp
}

// ResetDailyStats rolls the 24h window of a symbol. Meant to be driven by an
// external scheduler; the engine itself never decays the counters.
func (e *Engine) ResetDailyStats(symbol string) error {
	ent := e.entry(symbol)
	if ent == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}
	ent.mu.Lock()
	ent.prevVolume24h = ent.book.ResetDailyStats()
	ent.open24h = ent.book.LastPrice()
	md := ent.deriveMarketData()
	ent.mu.Unlock()

	e.bus.Publish(events.TopicMarketData, md)
	return nil
}

func (ent *bookEntry) deriveMarketData() *domain.MarketData {
	book := ent.book
	md := &domain.MarketData{
		Symbol:    book.Symbol,
		Spread:    book.Spread(),
		LastPrice: book.LastPrice(),
		Volume24h: book.Volume24h(),
		Trades24h: book.Trades24h(),
		Timestamp: time.Now(),
	}
	if bid := book.BestBid(); bid != nil {
		md.Bid = bid.Price
	}
	if ask := book.BestAsk(); ask != nil {
		md.Ask = ask.Price
	}
	if ent.open24h.IsPositive() {
		md.PriceChange24h = md.LastPrice.Sub(ent.open24h).Div(ent.open24h).Mul(decimal.NewFromInt(100))
	}
	if ent.prevVolume24h.IsPositive() {
		md.VolumeChange24h = md.Volume24h.Sub(ent.prevVolume24h).Div(ent.prevVolume24h).Mul(decimal.NewFromInt(100))
	}
	cp := *md
	ent.md = &cp
	return md
}

func (e *Engine) persistPass(ctx context.Context, order *domain.Order, resting []*domain.Order, trades []*domain.Trade) {
	if e.repo == nil {
		return
	}
	if err := e.repo.SaveOrder(ctx, order); err != nil {
		e.log.Warn("persist order", zap.String("order_id", order.ID), zap.Error(err))
	}
	for _, r := range resting {
		if err := e.repo.SaveOrder(ctx, r); err != nil {
			e.log.Warn("persist counterparty order", zap.String("order_id", r.ID), zap.Error(err))
		}
	}
	for _, t := range trades {
		if err := e.repo.SaveTrade(ctx, t); err != nil {
			e.log.Warn("persist trade", zap.String("trade_id", t.ID), zap.Error(err))
		}
	}
}

func (e *Engine) publishPass(order *domain.Order, trades []*domain.Trade, snap *domain.BookSnapshot, md *domain.MarketData) {
	e.bus.Publish(events.TopicOrderAdded, order)
	for _, t := range trades {
		e.bus.Publish(events.TopicTradeExecuted, t)
	}
	e.bus.Publish(events.TopicOrderBookUpdate, snap)
	e.bus.Publish(events.TopicMarketData, md)

	e.log.Debug("matching pass complete",
		zap.String("symbol", order.Symbol),
		zap.String("order_id", order.ID),
		zap.Int("trades", len(trades)),
		zap.String("remaining", order.Remaining.String()))
}

func (e *Engine) syncCache(ctx context.Context, symbol string, snap *domain.BookSnapshot, md *domain.MarketData) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetBook(ctx, symbol, snap); err != nil {
		e.log.Warn("cache book snapshot", zap.String("symbol", symbol), zap.Error(err))
	}
	if err := e.cache.SetMarketData(ctx, md); err != nil {
		e.log.Warn("cache market data", zap.String("symbol", symbol), zap.Error(err))
	}
}

func (e *Engine) trackOrder(o *domain.Order) {
	e.idxMu.Lock()
	e.active[o.ID] = o
	e.idxMu.Unlock()
}

func (e *Engine) untrackOrder(id string) {
	e.idxMu.Lock()
	delete(e.active, id)
	e.idxMu.Unlock()
}

func (e *Engine) lookupOrder(id string) *domain.Order {
	e.idxMu.RLock()
	defer e.idxMu.RUnlock()
	return e.active[id]
}
