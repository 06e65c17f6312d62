package retry

import (
	"fmt"
	"sync"
	"time"

	ircerr "ircsess/internal/errors"
)

// ── Circuit breaker state ────────────────────────────────────────────

// State is the breaker's position.
type State int

const (
	// StateClosed lets every connection attempt through.
	StateClosed State = iota
	// StateOpen rejects attempts until the cool-down has passed.
	StateOpen
	// StateHalfOpen lets probe attempts through after a cool-down.
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// OpenError is returned for attempts rejected by an open circuit. It
// matches errors.ErrCircuitOpen.
type OpenError struct {
	Failures int
	RetryIn  time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%v: %d connection failures in a row, next try in %s",
		ircerr.ErrCircuitOpen, e.Failures, e.RetryIn.Round(time.Second))
}

func (e *OpenError) Unwrap() error { return ircerr.ErrCircuitOpen }

// ── Configuration ────────────────────────────────────────────────────

// CircuitBreakerConfig configures a [CircuitBreaker]. Zero fields take
// the defaults.
type CircuitBreakerConfig struct {
	// MaxFailures is how many failed connections in a row open the
	// circuit (default 5).
	MaxFailures int
	// ResetTimeout is the cool-down before probing again (default 30s).
	ResetTimeout time.Duration
	// HalfOpenMax is how many probes must succeed to close the circuit
	// again (default 2).
	HalfOpenMax int
	// OnStateChange is told about every transition. It runs under the
	// breaker's lock.
	OnStateChange func(from, to State)
	// Now replaces time.Now in tests.
	Now func() time.Time
}

// DefaultCircuitBreakerConfig returns the defaults.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
		HalfOpenMax:  2,
	}
}

// ── CircuitBreaker ───────────────────────────────────────────────────

// CircuitBreaker stops reconnecting to a server that keeps failing,
// for example one that closes every connection before registration.
// After the cool-down it lets probes through again.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	probes    int
	trips     int
	openUntil time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) *CircuitBreaker {
	c := *DefaultCircuitBreakerConfig()
	if cfg != nil {
		if cfg.MaxFailures > 0 {
			c.MaxFailures = cfg.MaxFailures
		}
		if cfg.ResetTimeout > 0 {
			c.ResetTimeout = cfg.ResetTimeout
		}
		if cfg.HalfOpenMax > 0 {
			c.HalfOpenMax = cfg.HalfOpenMax
		}
		c.OnStateChange = cfg.OnStateChange
		c.Now = cfg.Now
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &CircuitBreaker{cfg: c}
}

// Execute runs fn unless the circuit is open, in which case it returns
// an *OpenError without calling fn. fn's result is recorded.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	cb.Record(err)
	return err
}

// Allow reports whether an attempt may go ahead. An open circuit whose
// cool-down has passed turns half-open and allows it.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	if wait := cb.openUntil.Sub(cb.cfg.Now()); wait > 0 {
		return &OpenError{Failures: cb.failures, RetryIn: wait}
	}
	cb.probes = 0
	cb.moveTo(StateHalfOpen)
	return nil
}

// Record feeds the outcome of an attempt into the breaker.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.probes = 0
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.MaxFailures {
			cb.trip()
		}
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.probes++
		if cb.probes >= cb.cfg.HalfOpenMax {
			cb.failures = 0
			cb.moveTo(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
	}
}

// CurrentState returns the breaker's state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current run of failed attempts.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Trips returns how many times the circuit has opened.
func (cb *CircuitBreaker) Trips() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.trips
}

// RetryIn returns the rest of an open circuit's cool-down, or zero.
func (cb *CircuitBreaker) RetryIn() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen {
		return 0
	}
	if d := cb.openUntil.Sub(cb.cfg.Now()); d > 0 {
		return d
	}
	return 0
}

// Reset closes the circuit and forgets past failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.probes = 0
	cb.openUntil = time.Time{}
	cb.moveTo(StateClosed)
}

func (cb *CircuitBreaker) trip() {
	cb.openUntil = cb.cfg.Now().Add(cb.cfg.ResetTimeout)
	if cb.state != StateOpen {
		cb.trips++
	}
	cb.moveTo(StateOpen)
}

func (cb *CircuitBreaker) moveTo(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
