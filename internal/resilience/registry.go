package resilience

import (
	"sync"

	"go.uber.org/zap"

	"github.com/finchex/trading-core/internal/events"
)

// Health aggregates the state of every breaker in a registry. Healthy means
// no breaker is open.
type Health struct {
	Healthy  bool               `json:"healthy"`
	Breakers map[string]Metrics `json:"breakers"`
}

// Registry owns named circuit breakers, creating them lazily on first use.
// Configuration is first-write-wins: a later GetBreaker call with a different
// config does not reconfigure an existing instance.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	defaults Config

	bus *events.Bus
	log *zap.Logger
}

func NewRegistry(defaults Config, bus *events.Bus, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		defaults: defaults,
		bus:      bus,
		log:      log,
	}
}

// GetBreaker returns the breaker registered under name, creating it with the
// given config (or the registry defaults) on first use.
func (r *Registry) GetBreaker(name string, cfg ...Config) *CircuitBreaker {
	r.mu.RLock()
	if cb, ok := r.breakers[name]; ok {
		r.mu.RUnlock()
		return cb
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock.
	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	c := r.defaults
	if len(cfg) > 0 {
		c = cfg[0]
	}
	cb := NewCircuitBreaker(name, c, r.bus, r.log)
	r.breakers[name] = cb

	r.log.Info("circuit breaker created",
		zap.String("name", name),
		zap.Float64("error_threshold", c.ErrorThreshold),
		zap.Int64("volume_threshold", c.VolumeThreshold),
		zap.Duration("reset_timeout", c.ResetTimeout))
	return cb
}

// Get returns an existing breaker without creating one.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.breakers[name]
	return cb, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}

// Health reports per-breaker metrics plus the aggregate verdict.
func (r *Registry) Health() Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := Health{Healthy: true, Breakers: make(map[string]Metrics, len(r.breakers))}
	for name, cb := range r.breakers {
		m := cb.Metrics()
		h.Breakers[name] = m
		if cb.State() == StateOpen {
			h.Healthy = false
		}
	}
	return h
}

// ResetAll returns every breaker to closed.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.RUnlock()

	for _, cb := range breakers {
		cb.Reset()
	}
}
