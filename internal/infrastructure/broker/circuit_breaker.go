package broker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the publisher is failing fast.
var ErrCircuitOpen = errors.New("broker circuit breaker is open")

// BreakerState represents the state of the circuit breaker
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // Normal operation
	BreakerOpen                         // Publishes fail fast
	BreakerHalfOpen                     // One probe publish allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker stops publish attempts against a broker that keeps failing,
// so an unreachable broker cannot add connect timeouts to every request.
type CircuitBreaker struct {
	maxFailures    int
	cooldownPeriod time.Duration
	now            func() time.Time

	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	probing         bool
	lastStateChange time.Time
}

// NewCircuitBreaker creates a breaker that opens after maxFailures consecutive failures.
func NewCircuitBreaker(maxFailures int, cooldownPeriod time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldownPeriod <= 0 {
		cooldownPeriod = 30 * time.Second
	}

	return &CircuitBreaker{
		maxFailures:    maxFailures,
		cooldownPeriod: cooldownPeriod,
		now:            time.Now,
		state:          BreakerClosed,
	}
}

// Execute runs fn unless the circuit is open. A context error returned by fn
// is not counted as a broker failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasProbe := cb.state == BreakerHalfOpen
	if wasProbe {
		cb.probing = false
	}

	switch {
	case err == nil:
		cb.failureCount = 0
		if cb.state != BreakerClosed {
			cb.transition(BreakerClosed)
		}
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// Caller gave up; says nothing about the broker.
	default:
		cb.failureCount++
		if wasProbe || cb.failureCount >= cb.maxFailures {
			cb.transition(BreakerOpen)
		}
	}

	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		if cb.now().Sub(cb.lastStateChange) < cb.cooldownPeriod {
			return ErrCircuitOpen
		}
		cb.transition(BreakerHalfOpen)
		cb.probing = true
		return nil
	case BreakerHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) transition(state BreakerState) {
	cb.state = state
	cb.lastStateChange = cb.now()
}

// State returns the current circuit breaker state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	cb.probing = false
	cb.transition(BreakerClosed)
}
