package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/finchex/trading-core/internal/events"
)

var errBoom = errors.New("boom")

func failOp(ctx context.Context) error    { return errBoom }
func successOp(ctx context.Context) error { return nil }

func newTestBreaker(t *testing.T, cfg Config) (*CircuitBreaker, *time.Time) {
	t.Helper()
	cb := NewCircuitBreaker("test", cfg, events.NewBus(), zaptest.NewLogger(t))
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return clock }
	return cb, &clock
}

func TestClosedBelowVolumeThresholdStaysClosed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	cb, _ := newTestBreaker(t, cfg)

	// 100% failure rate, but not enough samples to judge.
	for i := int64(0); i < cfg.VolumeThreshold-1; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), failOp), errBoom)
	}
	assert.Equal(t, StateClosed, cb.State())

	// One more failure reaches the volume threshold and trips it.
	assert.ErrorIs(t, cb.Execute(context.Background(), failOp), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestSuccessForgivesOneFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	cb, _ := newTestBreaker(t, cfg)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.Error(t, cb.Execute(ctx, failOp))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Execute(ctx, successOp))
	}

	m := cb.Metrics()
	assert.Equal(t, int64(7), m.RequestCount)
	assert.Equal(t, int64(1), m.FailureCount)
	assert.Equal(t, StateClosed, cb.State())

	// Keep failing until the decayed rate crosses the threshold again.
	invoked := 0
	var lastErr error
	for i := 0; i < 6; i++ {
		lastErr = cb.Execute(ctx, func(ctx context.Context) error {
			invoked++
			return errBoom
		})
	}
	assert.Equal(t, StateOpen, cb.State())
	// The open breaker rejects without invoking the operation.
	assert.Less(t, invoked, 6)
	assert.True(t, IsCircuitOpen(lastErr))
}

func TestOpenRejectsUntilResetTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	cfg.VolumeThreshold = 2
	cb, clock := newTestBreaker(t, cfg)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failOp))
	require.Error(t, cb.Execute(ctx, failOp))
	require.Equal(t, StateOpen, cb.State())

	invoked := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	assert.True(t, IsCircuitOpen(err))
	assert.False(t, invoked)

	// After the cooldown the next call goes through as a half-open trial.
	*clock = clock.Add(cfg.ResetTimeout)
	assert.NoError(t, cb.Execute(ctx, successOp))
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestHalfOpenSuccessesCloseAndZeroCounters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	cfg.VolumeThreshold = 2
	cfg.HalfOpenMaxCalls = 3
	cb, clock := newTestBreaker(t, cfg)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failOp))
	require.Error(t, cb.Execute(ctx, failOp))
	require.Equal(t, StateOpen, cb.State())

	*clock = clock.Add(cfg.ResetTimeout)
	for i := int64(0); i < cfg.HalfOpenMaxCalls; i++ {
		require.NoError(t, cb.Execute(ctx, successOp))
	}

	assert.Equal(t, StateClosed, cb.State())
	m := cb.Metrics()
	assert.Equal(t, int64(0), m.RequestCount)
	assert.Equal(t, int64(0), m.FailureCount)
	assert.Equal(t, int64(0), m.SuccessCount)
}

func TestHalfOpenFailureReopensWithFreshCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	cfg.VolumeThreshold = 2
	cb, clock := newTestBreaker(t, cfg)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failOp))
	require.Error(t, cb.Execute(ctx, failOp))
	firstAttempt := cb.Metrics().NextAttemptTime

	*clock = clock.Add(cfg.ResetTimeout)
	require.Error(t, cb.Execute(ctx, failOp))

	assert.Equal(t, StateOpen, cb.State())
	assert.True(t, cb.Metrics().NextAttemptTime.After(firstAttempt))

	// Still cooling down from the new failure.
	err := cb.Execute(ctx, successOp)
	assert.True(t, IsCircuitOpen(err))
}

func TestHalfOpenEnforcesTrialBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	cfg.VolumeThreshold = 2
	cfg.HalfOpenMaxCalls = 2
	cb, clock := newTestBreaker(t, cfg)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failOp))
	require.Error(t, cb.Execute(ctx, failOp))
	*clock = clock.Add(cfg.ResetTimeout)

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, cb.Execute(ctx, func(ctx context.Context) error {
				entered <- struct{}{}
				<-release
				return nil
			}))
		}()
	}
	<-entered
	<-entered

	// Budget exhausted while both trials are in flight.
	err := cb.Execute(ctx, successOp)
	assert.True(t, IsCircuitOpen(err))

	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, cb.State())
}

func TestTimeoutCountsAsFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Millisecond
	cb := NewCircuitBreaker("slow", cfg, events.NewBus(), zaptest.NewLogger(t))

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	var te *CircuitTimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, int64(1), cb.Metrics().FailureCount)
}

func TestExecuteWithFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	cfg.VolumeThreshold = 1
	cb, _ := newTestBreaker(t, cfg)
	ctx := context.Background()

	// Operation errors are routed to the fallback.
	err := cb.ExecuteWithFallback(ctx, failOp, func(ctx context.Context, err error) error {
		assert.ErrorIs(t, err, errBoom)
		return nil
	})
	assert.NoError(t, err)
	require.Equal(t, StateOpen, cb.State())

	// Rejections are routed too, and counters still move.
	fallbackCalled := false
	err = cb.ExecuteWithFallback(ctx, successOp, func(ctx context.Context, err error) error {
		fallbackCalled = true
		assert.True(t, IsCircuitOpen(err))
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, fallbackCalled)
}

func TestResetClosesAndZeroes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	cfg.VolumeThreshold = 2
	cb, _ := newTestBreaker(t, cfg)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failOp))
	require.Error(t, cb.Execute(ctx, failOp))
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	m := cb.Metrics()
	assert.Equal(t, int64(0), m.RequestCount)
	assert.Equal(t, int64(0), m.FailureCount)

	assert.NoError(t, cb.Execute(ctx, successOp))
}

func TestTransitionEventsPublished(t *testing.T) {
	bus := events.NewBus()
	var mu sync.Mutex
	var topics []string
	bus.SubscribeAll(func(ev events.Event) {
		mu.Lock()
		topics = append(topics, ev.Topic)
		mu.Unlock()
	})

	cfg := DefaultConfig()
	cfg.Timeout = 0
	cfg.VolumeThreshold = 2
	cfg.HalfOpenMaxCalls = 1
	cb := NewCircuitBreaker("evt", cfg, bus, zaptest.NewLogger(t))
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return clock }
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failOp))
	require.Error(t, cb.Execute(ctx, failOp))
	clock = clock.Add(cfg.ResetTimeout)
	require.NoError(t, cb.Execute(ctx, successOp))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, topics, events.TopicBreakerOpened)
	assert.Contains(t, topics, events.TopicBreakerHalfOpen)
	assert.Contains(t, topics, events.TopicBreakerClosed)
	assert.Contains(t, topics, events.TopicBreakerFailure)
	assert.Contains(t, topics, events.TopicBreakerSuccess)
}
