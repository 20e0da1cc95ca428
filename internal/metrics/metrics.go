// Package metrics exposes Prometheus collectors fed from the event bus, so
// the engine and breakers stay free of monitoring concerns.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/finchex/trading-core/internal/domain"
	"github.com/finchex/trading-core/internal/events"
	"github.com/finchex/trading-core/internal/resilience"
)

type Collector struct {
	OrdersSubmitted *prometheus.CounterVec
	OrdersCancelled *prometheus.CounterVec
	TradesExecuted  *prometheus.CounterVec
	TradeVolume     *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec
	BreakerRejected *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_orders_submitted_total",
			Help: "Orders accepted by the matching engine.",
		}, []string{"symbol"}),
		OrdersCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_orders_cancelled_total",
			Help: "Orders removed from a book by cancellation.",
		}, []string{"symbol"}),
		TradesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_trades_executed_total",
			Help: "Trades produced by matching passes.",
		}, []string{"symbol"}),
		TradeVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_trade_volume_total",
			Help: "Accumulated quote volume of executed trades.",
		}, []string{"symbol"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trading_circuit_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
		BreakerRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_circuit_breaker_rejected_total",
			Help: "Calls rejected without invoking the protected operation.",
		}, []string{"name"}),
	}
	reg.MustRegister(c.OrdersSubmitted, c.OrdersCancelled, c.TradesExecuted,
		c.TradeVolume, c.BreakerState, c.BreakerRejected)
	return c
}

// Observe subscribes the collector to the engine and breaker topics.
func (c *Collector) Observe(bus *events.Bus) {
	bus.Subscribe(events.TopicOrderAdded, func(ev events.Event) {
		if o, ok := ev.Payload.(*domain.Order); ok {
			c.OrdersSubmitted.WithLabelValues(o.Symbol).Inc()
		}
	})
	bus.Subscribe(events.TopicOrderCancelled, func(ev events.Event) {
		if o, ok := ev.Payload.(*domain.Order); ok {
			c.OrdersCancelled.WithLabelValues(o.Symbol).Inc()
		}
	})
	bus.Subscribe(events.TopicTradeExecuted, func(ev events.Event) {
		if t, ok := ev.Payload.(*domain.Trade); ok {
			c.TradesExecuted.WithLabelValues(t.Symbol).Inc()
			vol, _ := t.Quantity.Mul(t.Price).Float64()
			c.TradeVolume.WithLabelValues(t.Symbol).Add(vol)
		}
	})

	breakerTopics := []string{
		events.TopicBreakerOpened,
		events.TopicBreakerClosed,
		events.TopicBreakerHalfOpen,
		events.TopicBreakerReset,
	}
	for _, topic := range breakerTopics {
		bus.Subscribe(topic, func(ev events.Event) {
			if m, ok := ev.Payload.(resilience.Metrics); ok {
				c.BreakerState.WithLabelValues(m.Name).Set(stateValue(m.State))
			}
		})
	}
	bus.Subscribe(events.TopicBreakerRejected, func(ev events.Event) {
		if m, ok := ev.Payload.(resilience.Metrics); ok {
			c.BreakerRejected.WithLabelValues(m.Name).Inc()
		}
	})
}

func stateValue(state string) float64 {
	switch state {
	case resilience.StateOpen.String():
		return 1
	case resilience.StateHalfOpen.String():
		return 2
	default:
		return 0
	}
}
