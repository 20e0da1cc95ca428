// Package resilience implements the circuit breaker guarding calls the
// trading core makes to downstream collaborators (history store, cache,
// settlement). Breakers are independent of the matching engine.
package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/finchex/trading-core/internal/events"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config is immutable per breaker instance.
type Config struct {
	Timeout          time.Duration // per-call deadline; 0 disables it
	ErrorThreshold   float64       // percent of failed requests that opens the breaker
	VolumeThreshold  int64         // minimum sample size before the rate is evaluated
	ResetTimeout     time.Duration // open -> half-open cooldown
	HalfOpenMaxCalls int64         // trial call budget while half-open
}

func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		ErrorThreshold:   50,
		VolumeThreshold:  10,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitOpenError reports a call rejected without invoking the operation.
type CircuitOpenError struct {
	Name   string
	Reason string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %s is open: %s", e.Name, e.Reason)
}

// CircuitTimeoutError reports an operation that exceeded the per-call
// deadline. It counts as a failure in the breaker's statistics.
type CircuitTimeoutError struct {
	Name  string
	After time.Duration
}

func (e *CircuitTimeoutError) Error() string {
	return fmt.Sprintf("circuit breaker %s: operation timed out after %s", e.Name, e.After)
}

func IsCircuitOpen(err error) bool {
	_, ok := err.(*CircuitOpenError)
	return ok
}

// Metrics is a point-in-time copy of one breaker's counters.
type Metrics struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	RequestCount    int64     `json:"request_count"`
	FailureCount    int64     `json:"failure_count"`
	SuccessCount    int64     `json:"success_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
	NextAttemptTime time.Time `json:"next_attempt_time"`
}

// CircuitBreaker is a CLOSED/OPEN/HALF_OPEN state machine around one named
// operation. A single mutex guards counters and transitions; the half-open
// trial budget is claimed under that mutex, so two concurrent trial calls
// cannot both take the last slot. Events are published outside the mutex.
type CircuitBreaker struct {
	name string
	cfg  Config

	mu              sync.Mutex
	state           State
	requestCount    int64
	failureCount    int64
	successCount    int64
	halfOpenCalls   int64
	lastFailureTime time.Time
	nextAttemptTime time.Time

	log *zap.Logger
	bus *events.Bus
	now func() time.Time
}

func NewCircuitBreaker(name string, cfg Config, bus *events.Bus, log *zap.Logger) *CircuitBreaker {
	if log == nil {
		log = zap.NewNop()
	}
	return &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
		log:   log,
		bus:   bus,
		now:   time.Now,
	}
}

func (cb *CircuitBreaker) Name() string   { return cb.name }
func (cb *CircuitBreaker) Config() Config { return cb.cfg }

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs op under the breaker's gating with the configured per-call
// deadline. A timeout is a failure whose error is CircuitTimeoutError.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	transitions, err := cb.acquire()
	cb.flush(transitions)
	if err != nil {
		cb.emit(events.TopicBreakerRejected)
		return err
	}

	opErr := cb.run(ctx, op)
	if opErr != nil {
		cb.flush(cb.onFailure())
		cb.emit(events.TopicBreakerFailure)
		return opErr
	}
	cb.flush(cb.onSuccess())
	cb.emit(events.TopicBreakerSuccess)
	return nil
}

// ExecuteWithFallback routes rejections and failures to fallback. The
// underlying outcome is recorded in the counters either way, so the failure
// rate stays accurate even when the fallback masks the error.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, op func(context.Context) error, fallback func(context.Context, error) error) error {
	err := cb.Execute(ctx, op)
	if err != nil && fallback != nil {
		return fallback(ctx, err)
	}
	return err
}

func (cb *CircuitBreaker) run(ctx context.Context, op func(context.Context) error) error {
	if cb.cfg.Timeout <= 0 {
		return op(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, cb.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(cctx) }()

	select {
	case err := <-done:
		return err
	case <-cctx.Done():
		return &CircuitTimeoutError{Name: cb.name, After: cb.cfg.Timeout}
	}
}

type transitionEvent struct {
	topic string
	m     Metrics
}

func (cb *CircuitBreaker) acquire() ([]transitionEvent, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil, nil

	case StateOpen:
		if cb.now().Before(cb.nextAttemptTime) {
			return nil, &CircuitOpenError{Name: cb.name, Reason: "cooling down"}
		}
		ev := cb.transition(StateHalfOpen)
		cb.halfOpenCalls++
		return ev, nil

	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.cfg.HalfOpenMaxCalls {
			return nil, &CircuitOpenError{Name: cb.name, Reason: "half-open call limit reached"}
		}
		cb.halfOpenCalls++
		return nil, nil

	default:
		return nil, &CircuitOpenError{Name: cb.name, Reason: "unknown state"}
	}
}

func (cb *CircuitBreaker) onSuccess() []transitionEvent {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.requestCount++
		// A success forgives at most one prior failure.
		if cb.failureCount > 0 {
			cb.failureCount--
		}
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.cfg.HalfOpenMaxCalls {
			return cb.transition(StateClosed)
		}
	}
	return nil
}

func (cb *CircuitBreaker) onFailure() []transitionEvent {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		cb.requestCount++
		cb.failureCount++
		if cb.requestCount >= cb.cfg.VolumeThreshold &&
			float64(cb.failureCount)*100 >= cb.cfg.ErrorThreshold*float64(cb.requestCount) {
			cb.nextAttemptTime = cb.now().Add(cb.cfg.ResetTimeout)
			return cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.nextAttemptTime = cb.now().Add(cb.cfg.ResetTimeout)
		return cb.transition(StateOpen)
	}
	return nil
}

// Reset returns the breaker to closed with zeroed counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	ev := cb.transition(StateClosed)
	cb.mu.Unlock()

	cb.flush(ev)
	cb.emit(events.TopicBreakerReset)
	cb.log.Info("circuit breaker reset", zap.String("name", cb.name))
}

// transition changes state, resets the counters the new state starts from
// and returns the event to publish once the mutex is released. Callers hold
// cb.mu.
func (cb *CircuitBreaker) transition(to State) []transitionEvent {
	from := cb.state
	cb.state = to

	switch to {
	case StateClosed:
		cb.requestCount = 0
		cb.failureCount = 0
		cb.successCount = 0
		cb.halfOpenCalls = 0
	case StateHalfOpen:
		cb.successCount = 0
		cb.halfOpenCalls = 0
	}

	if from == to {
		return nil
	}

	cb.log.Info("circuit breaker state changed",
		zap.String("name", cb.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()))

	var topic string
	switch to {
	case StateOpen:
		topic = events.TopicBreakerOpened
	case StateHalfOpen:
		topic = events.TopicBreakerHalfOpen
	case StateClosed:
		topic = events.TopicBreakerClosed
	}
	return []transitionEvent{{topic: topic, m: cb.metricsLocked()}}
}

func (cb *CircuitBreaker) flush(evs []transitionEvent) {
	if cb.bus == nil {
		return
	}
	for _, ev := range evs {
		cb.bus.Publish(ev.topic, ev.m)
	}
}

// Metrics returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.metricsLocked()
}

func (cb *CircuitBreaker) metricsLocked() Metrics {
	return Metrics{
		Name:            cb.name,
		State:           cb.state.String(),
		RequestCount:    cb.requestCount,
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		LastFailureTime: cb.lastFailureTime,
		NextAttemptTime: cb.nextAttemptTime,
	}
}

func (cb *CircuitBreaker) emit(topic string) {
	if cb.bus == nil {
		return
	}
	cb.bus.Publish(topic, cb.Metrics())
}
