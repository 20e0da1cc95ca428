package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	redisadapter "github.com/finchex/trading-core/internal/adapter/cache"
	"github.com/finchex/trading-core/internal/adapter/guard"
	"github.com/finchex/trading-core/internal/adapter/in_memory"
	"github.com/finchex/trading-core/internal/adapter/pg"
	httpapi "github.com/finchex/trading-core/internal/api/http"
	"github.com/finchex/trading-core/internal/config"
	"github.com/finchex/trading-core/internal/core"
	"github.com/finchex/trading-core/internal/events"
	"github.com/finchex/trading-core/internal/metrics"
	"github.com/finchex/trading-core/internal/port"
	"github.com/finchex/trading-core/internal/resilience"
)

func main() {
	cfg, err := config.Load(os.Getenv("TRADING_CONFIG_DIR"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()

	registry := resilience.NewRegistry(resilience.Config{
		Timeout:          cfg.Breaker.Timeout,
		ErrorThreshold:   cfg.Breaker.ErrorThreshold,
		VolumeThreshold:  cfg.Breaker.VolumeThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		HalfOpenMaxCalls: cfg.Breaker.HalfOpenMaxCalls,
	}, bus, logger)

	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)
	collector.Observe(bus)

	var repo port.Repository
	if cfg.Pg.DSN != "" {
		pgRepo, err := pg.NewPgRepo(ctx, cfg.Pg.DSN)
		if err != nil {
			return fmt.Errorf("history store: %w", err)
		}
		defer pgRepo.Close()
		repo = pgRepo
		logger.Info("history store: postgres")
	} else {
		repo = in_memory.NewMemoryRepo()
		logger.Info("history store: in-memory")
	}

	var bookCache port.Cache
	if cfg.Redis.Addr != "" {
		rc := redisadapter.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		defer rc.Close()
		bookCache = rc
		logger.Info("snapshot cache: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		bookCache = in_memory.NewCache()
		logger.Info("snapshot cache: in-memory")
	}

	guardedRepo := guard.NewRepository(repo, registry)
	guardedCache := guard.NewCache(bookCache, registry)

	engine := core.NewEngine(guardedRepo, guardedCache, bus, logger)
	for _, sym := range cfg.Symbols {
		rules, err := parseSymbol(sym)
		if err != nil {
			return fmt.Errorf("symbol %s: %w", sym.Symbol, err)
		}
		if err := engine.RegisterSymbol(rules); err != nil {
			return fmt.Errorf("register %s: %w", sym.Symbol, err)
		}
		logger.Info("symbol registered", zap.String("symbol", sym.Symbol))
	}

	api := httpapi.NewHTTPServer(engine, guardedRepo, registry,
		promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}), logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func parseSymbol(sym config.SymbolConfig) (core.SymbolConfig, error) {
	tick, err := decimal.NewFromString(sym.TickSize)
	if err != nil {
		return core.SymbolConfig{}, fmt.Errorf("tick_size: %w", err)
	}
	minSize, err := decimal.NewFromString(sym.MinOrderSize)
	if err != nil {
		return core.SymbolConfig{}, fmt.Errorf("min_order_size: %w", err)
	}
	maxSize, err := decimal.NewFromString(sym.MaxOrderSize)
	if err != nil {
		return core.SymbolConfig{}, fmt.Errorf("max_order_size: %w", err)
	}
	return core.SymbolConfig{
		Symbol:       sym.Symbol,
		TickSize:     tick,
		MinOrderSize: minSize,
		MaxOrderSize: maxSize,
	}, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
