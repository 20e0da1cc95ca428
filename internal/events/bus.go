package events

import (
	"sync"
	"time"
)

// Topics published by the matching engine.
const (
	TopicOrderAdded      = "order.added"
	TopicTradeExecuted   = "trade.executed"
	TopicOrderCancelled  = "order.cancelled"
	TopicOrderBookUpdate = "orderbook.update"
	TopicMarketData      = "marketdata.update"
)

// Topics published by circuit breakers.
const (
	TopicBreakerOpened   = "breaker.opened"
	TopicBreakerClosed   = "breaker.closed"
	TopicBreakerHalfOpen = "breaker.half_open"
	TopicBreakerSuccess  = "breaker.success"
	TopicBreakerFailure  = "breaker.failure"
	TopicBreakerRejected = "breaker.rejected"
	TopicBreakerReset    = "breaker.reset"
)

type Event struct {
	Topic     string
	Timestamp time.Time
	Payload   any
}

type Handler func(Event)

// Bus delivers events to in-process subscribers. Dispatch is synchronous, so
// delivery is at-least-once as long as the handler returns; handlers must not
// call back into the publisher while holding its locks.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	all      []Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for one topic.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// SubscribeAll registers a handler for every topic.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

func (b *Bus) Publish(topic string, payload any) {
	ev := Event{Topic: topic, Timestamp: time.Now(), Payload: payload}

	b.mu.RLock()
	subs := b.handlers[topic]
	all := b.all
	b.mu.RUnlock()

	for _, h := range subs {
		h(ev)
	}
	for _, h := range all {
		h(ev)
	}
}
