package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/finchex/trading-core/internal/adapter/in_memory"
	"github.com/finchex/trading-core/internal/api/dto"
	"github.com/finchex/trading-core/internal/core"
	"github.com/finchex/trading-core/internal/events"
	"github.com/finchex/trading-core/internal/resilience"
)

func newTestServer(t *testing.T) (*HTTPServer, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	bus := events.NewBus()
	reg := resilience.NewRegistry(resilience.DefaultConfig(), bus, log)
	repo := in_memory.NewMemoryRepo()

	eng := core.NewEngine(repo, in_memory.NewCache(), bus, log)
	require.NoError(t, eng.RegisterSymbol(core.SymbolConfig{
		Symbol:       "BTC/USD",
		TickSize:     decimal.RequireFromString("0.01"),
		MinOrderSize: decimal.RequireFromString("0.0001"),
		MaxOrderSize: decimal.RequireFromString("100"),
	}))

	srv := NewHTTPServer(eng, repo, reg, nil, log)
	srv.RateLimit = 0
	return srv, srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func submit(t *testing.T, h http.Handler, side, typ, price, qty string) dto.SubmitOrderResponse {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/orders", dto.SubmitOrderRequest{
		UserID:   "user-1",
		Symbol:   "BTC/USD",
		Side:     side,
		Type:     typ,
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp dto.SubmitOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSubmitAndMatchOverHTTP(t *testing.T) {
	_, h := newTestServer(t)

	buy := submit(t, h, "BUY", "LIMIT", "45000", "1.0")
	assert.Equal(t, "PENDING", buy.Order.Status)
	assert.Empty(t, buy.Trades)

	sell := submit(t, h, "SELL", "LIMIT", "44000", "0.4")
	require.Len(t, sell.Trades, 1)
	assert.Equal(t, "45000", sell.Trades[0].Price.String())
	assert.Equal(t, "FILLED", sell.Order.Status)

	w := doJSON(t, h, http.MethodGet, "/orders/"+buy.Order.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got dto.GetOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "PARTIALLY_FILLED", got.Order.Status)
	assert.Equal(t, "0.6", got.Order.Remaining.String())

	w = doJSON(t, h, http.MethodGet, "/orders/"+buy.Order.ID+"/trades", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trades dto.GetTradesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trades))
	assert.Len(t, trades.Trades, 1)
}

func TestSubmitValidationFailuresMapTo400(t *testing.T) {
	_, h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/orders", dto.SubmitOrderRequest{
		UserID:   "user-1",
		Symbol:   "BTC/USD",
		Side:     "HOLD",
		Type:     "LIMIT",
		Price:    decimal.RequireFromString("100"),
		Quantity: decimal.RequireFromString("1"),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing binding-required fields are rejected before the engine runs.
	w = doJSON(t, h, http.MethodPost, "/orders", map[string]any{"symbol": "BTC/USD"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownSymbolMapsTo404(t *testing.T) {
	_, h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/orders", dto.SubmitOrderRequest{
		UserID:   "user-1",
		Symbol:   "XRP/USD",
		Side:     "BUY",
		Type:     "LIMIT",
		Price:    decimal.RequireFromString("1"),
		Quantity: decimal.RequireFromString("1"),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodGet, "/orderbook?symbol=XRP/USD", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelOverHTTP(t *testing.T) {
	_, h := newTestServer(t)

	buy := submit(t, h, "BUY", "LIMIT", "100", "1")

	w := doJSON(t, h, http.MethodPost, "/orders/cancel", dto.CancelOrderRequest{OrderID: buy.Order.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.CancelOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cancelled)
	assert.Equal(t, "CANCELLED", resp.Order.Status)

	w = doJSON(t, h, http.MethodPost, "/orders/cancel", dto.CancelOrderRequest{OrderID: buy.Order.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderBookDepthAndMarketData(t *testing.T) {
	_, h := newTestServer(t)

	submit(t, h, "BUY", "LIMIT", "99", "1")
	submit(t, h, "BUY", "LIMIT", "98", "1")
	submit(t, h, "BUY", "LIMIT", "97", "1")
	submit(t, h, "SELL", "LIMIT", "101", "1")

	w := doJSON(t, h, http.MethodGet, "/orderbook?symbol=BTC/USD&depth=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var book dto.OrderBookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))
	require.Len(t, book.Bids, 2)
	assert.Equal(t, "99", book.Bids[0].Price.String())
	assert.Len(t, book.Asks, 1)
	assert.Equal(t, "2", book.Spread.String())

	w = doJSON(t, h, http.MethodGet, "/best-bid-ask?symbol=BTC/USD", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var best dto.BestBidAskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &best))
	assert.True(t, best.HasBid)
	assert.Equal(t, "99", best.Bid.String())

	w = doJSON(t, h, http.MethodGet, "/market-data?symbol=BTC/USD", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var md dto.MarketDataResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &md))
	assert.Equal(t, "BTC/USD", md.Symbol)
}

func TestHealthEndpoint(t *testing.T) {
	_, h := newTestServer(t)

	w := doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Contains(t, resp.Symbols, "BTC/USD")
}

func TestRateLimiterRequiresClientID(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.RateLimit = 100 * time.Millisecond
	h := srv.Handler()

	// No client id.
	w := doJSON(t, h, http.MethodGet, "/orderbook?symbol=BTC/USD", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/orderbook?symbol=BTC/USD", nil)
	req.Header.Set("X-Client-ID", "c1")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Second request inside the window is throttled.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Health stays reachable without a client id.
	w = doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
