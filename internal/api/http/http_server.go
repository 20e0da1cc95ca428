package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finchex/trading-core/internal/api/dto"
	"github.com/finchex/trading-core/internal/core"
	"github.com/finchex/trading-core/internal/domain"
	"github.com/finchex/trading-core/internal/middleware"
	"github.com/finchex/trading-core/internal/port"
	"github.com/finchex/trading-core/internal/resilience"
)

type HTTPServer struct {
	Eng      *core.Engine
	Repo     port.Repository
	Registry *resilience.Registry
	Metrics  http.Handler
	Log      *zap.Logger

	RateLimit time.Duration
}

func NewHTTPServer(eng *core.Engine, repo port.Repository, reg *resilience.Registry, metrics http.Handler, log *zap.Logger) *HTTPServer {
	return &HTTPServer{
		Eng:       eng,
		Repo:      repo,
		Registry:  reg,
		Metrics:   metrics,
		Log:       log,
		RateLimit: time.Millisecond * 100,
	}
}

// Handler builds the gin engine; Run wraps it for callers that do not need
// graceful shutdown.
func (s *HTTPServer) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(s.Log))

	if s.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.Metrics))
	}
	r.GET("/health", s.health)

	api := r.Group("/")
	if s.RateLimit > 0 {
		rl := middleware.NewRateLimiter(s.RateLimit)
		api.Use(rl.Middleware())
	}

	api.POST("/orders", s.submitOrder)
	api.POST("/orders/cancel", s.cancelOrder)
	api.GET("/orders/:id", s.getOrder)
	api.GET("/orders/:id/trades", s.getOrderTrades)
	api.GET("/orderbook", s.getOrderBook)
	api.GET("/best-bid-ask", s.getBestBidAsk)
	api.GET("/market-data", s.getMarketData)
	api.GET("/trades", s.getSymbolTrades)
	api.POST("/market-data/reset", s.resetDailyStats)

	return r
}

func (s *HTTPServer) Run(addr string) error {
	return s.Handler().Run(addr)
}

func (s *HTTPServer) submitOrder(c *gin.Context) {
	var req dto.SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, trades, err := s.Eng.SubmitOrder(c.Request.Context(), core.SubmitRequest{
		Symbol:   req.Symbol,
		Side:     domain.Side(req.Side),
		Type:     domain.OrderType(req.Type),
		Price:    req.Price,
		Quantity: req.Quantity,
		UserID:   req.UserID,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.SubmitOrderResponse{
		Order:  convertOrder(order),
		Trades: convertTrades(trades),
	})
}

func (s *HTTPServer) cancelOrder(c *gin.Context) {
	var req dto.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.Eng.CancelOrder(c.Request.Context(), req.OrderID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CancelOrderResponse{
		Order:     convertOrder(order),
		Cancelled: true,
	})
}

func (s *HTTPServer) getOrder(c *gin.Context) {
	order, err := s.Eng.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GetOrderResponse{Order: convertOrder(order)})
}

func (s *HTTPServer) getOrderTrades(c *gin.Context) {
	trades, err := s.Eng.GetTradesForOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GetTradesResponse{Trades: convertTrades(trades)})
}

func (s *HTTPServer) getOrderBook(c *gin.Context) {
	symbol := c.Query("symbol")
	depth := 0
	if d := c.Query("depth"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be an integer"})
			return
		}
		depth = n
	}

	snap, err := s.Eng.GetOrderBook(c.Request.Context(), symbol, depth)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OrderBookResponse{
		Symbol:     snap.Symbol,
		Bids:       convertOrders(snap.Bids),
		Asks:       convertOrders(snap.Asks),
		Spread:     snap.Spread,
		Volume24h:  snap.Volume24h,
		Trades24h:  snap.Trades24h,
		LastUpdate: snap.LastUpdate,
	})
}

func (s *HTTPServer) getBestBidAsk(c *gin.Context) {
	bba := s.Eng.GetBestBidAsk(c.Query("symbol"))
	if bba == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}
	c.JSON(http.StatusOK, dto.BestBidAskResponse{
		Symbol: bba.Symbol,
		Bid:    bba.Bid,
		Ask:    bba.Ask,
		HasBid: bba.HasBid,
		HasAsk: bba.HasAsk,
	})
}

func (s *HTTPServer) getMarketData(c *gin.Context) {
	md := s.Eng.GetMarketData(c.Query("symbol"))
	if md == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}
	c.JSON(http.StatusOK, dto.MarketDataResponse{
		Symbol:          md.Symbol,
		Bid:             md.Bid,
		Ask:             md.Ask,
		Spread:          md.Spread,
		LastPrice:       md.LastPrice,
		Volume24h:       md.Volume24h,
		Trades24h:       md.Trades24h,
		PriceChange24h:  md.PriceChange24h,
		VolumeChange24h: md.VolumeChange24h,
		Timestamp:       md.Timestamp,
	})
}

func (s *HTTPServer) getSymbolTrades(c *gin.Context) {
	limit := 100
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}
	trades, err := s.Repo.LoadTradesForSymbol(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GetTradesResponse{Trades: convertTrades(trades)})
}

func (s *HTTPServer) resetDailyStats(c *gin.Context) {
	symbol := c.Query("symbol")
	if err := s.Eng.ResetDailyStats(symbol); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "reset": true})
}

func (s *HTTPServer) health(c *gin.Context) {
	health := s.Registry.Health()
	status := "ok"
	code := http.StatusOK
	if !health.Healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	breakers := make(map[string]any, len(health.Breakers))
	for name, m := range health.Breakers {
		breakers[name] = m
	}
	c.JSON(code, dto.HealthResponse{
		Status:   status,
		Symbols:  s.Eng.Symbols(),
		Breakers: breakers,
	})
}

func (s *HTTPServer) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownSymbol),
		errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidSide),
		errors.Is(err, domain.ErrInvalidOrderType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case resilience.IsCircuitOpen(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.Log.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func convertOrder(o *domain.Order) dto.Order {
	return dto.Order{
		ID:             o.ID,
		UserID:         o.UserID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		Type:           string(o.Type),
		Price:          o.Price,
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		Remaining:      o.Remaining,
		AveragePrice:   o.AveragePrice,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func convertOrders(orders []domain.Order) []dto.Order {
	res := make([]dto.Order, len(orders))
	for i := range orders {
		res[i] = convertOrder(&orders[i])
	}
	return res
}

func convertTrades(trades []*domain.Trade) []dto.Trade {
	res := make([]dto.Trade, len(trades))
	for i, t := range trades {
		res[i] = dto.Trade{
			ID:          t.ID,
			Symbol:      t.Symbol,
			Price:       t.Price,
			Quantity:    t.Quantity,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			Timestamp:   t.Timestamp,
		}
	}
	return res
}
