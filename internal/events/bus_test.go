package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesOnlyItsTopic(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(TopicTradeExecuted, func(ev Event) {
		got = append(got, ev)
	})

	bus.Publish(TopicOrderAdded, "order")
	bus.Publish(TopicTradeExecuted, "trade")

	require.Len(t, got, 1)
	assert.Equal(t, TopicTradeExecuted, got[0].Topic)
	assert.Equal(t, "trade", got[0].Payload)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus()

	var topics []string
	bus.SubscribeAll(func(ev Event) {
		topics = append(topics, ev.Topic)
	})

	bus.Publish(TopicOrderAdded, nil)
	bus.Publish(TopicBreakerOpened, nil)

	assert.Equal(t, []string{TopicOrderAdded, TopicBreakerOpened}, topics)
}

func TestMultipleHandlersAllInvoked(t *testing.T) {
	bus := NewBus()

	count := 0
	for i := 0; i < 3; i++ {
		bus.Subscribe(TopicMarketData, func(Event) { count++ })
	}
	bus.Publish(TopicMarketData, nil)
	assert.Equal(t, 3, count)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Publish(TopicOrderCancelled, nil)
	})
}
