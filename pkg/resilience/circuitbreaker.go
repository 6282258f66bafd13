// Package resilience provides fault-tolerance primitives: a circuit breaker,
// exponential-backoff retry, and a context-based timeout wrapper.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while a breaker is suspending calls to a
// failing upstream.
var ErrCircuitOpen = errors.New("upstream suspended after repeated failures")

// State is the phase of a circuit breaker.
type State int

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

// CircuitBreakerConfig controls when a breaker opens and how it recovers.
// Zero values take defaults: 5 failures, 30s cool-down, 1 trial call.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// OnStateChange runs under the breaker's lock and must not call back
	// into it.
	OnStateChange func(name string, to State)
}

// Snapshot is a point-in-time view of a breaker for health reporting.
type Snapshot struct {
	Name      string
	State     State
	Failures  int
	RetryAt   time.Time
	Threshold int
}

// CircuitBreaker suspends calls after FailureThreshold consecutive failures.
// Once ResetTimeout has passed it lets HalfOpenMaxRequests trial calls
// through; a trial success closes it and a trial failure reopens it.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trials   int
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "circuit-breaker", "breaker", name),
	}
}

// Execute runs fn unless calls are suspended, and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// GetState returns the breaker's current state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns the breaker's state, failure streak and, when open, the
// earliest time a trial call is allowed.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := Snapshot{Name: cb.name, State: cb.state, Failures: cb.failures, Threshold: cb.cfg.FailureThreshold}
	if cb.state == StateOpen {
		s.RetryAt = cb.openedAt.Add(cb.cfg.ResetTimeout)
	}
	return s
}

// Reset closes the breaker and clears its failure streak.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
	cb.trials = 0
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		wait := cb.openedAt.Add(cb.cfg.ResetTimeout).Sub(cb.now())
		if wait > 0 {
			return fmt.Errorf("%w: %s, next attempt in %s", ErrCircuitOpen, cb.name, wait.Round(time.Second))
		}
		cb.transition(StateHalfOpen)
		cb.trials = 1
		cb.logger.Info("allowing trial call after cool-down", "cool_down", cb.cfg.ResetTimeout)
	case StateHalfOpen:
		if cb.trials >= cb.cfg.HalfOpenMaxRequests {
			return fmt.Errorf("%w: %s, trial call in flight", ErrCircuitOpen, cb.name)
		}
		cb.trials++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		if cb.state == StateHalfOpen {
			cb.logger.Info("upstream recovered, resuming calls")
		}
		cb.transition(StateClosed)
		cb.failures = 0
		cb.trials = 0
		return
	}

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		cb.open()
		cb.logger.Warn("trial call failed, suspending again", "error", err)
	case cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.open()
		cb.logger.Warn("suspending calls after consecutive failures",
			"failures", cb.failures,
			"cool_down", cb.cfg.ResetTimeout,
			"error", err,
		)
	}
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.now()
	cb.trials = 0
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, to)
	}
}
