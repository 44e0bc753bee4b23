// Package resilience provides a circuit breaker for the external model and
// index calls. Rate limiting lives with the client that needs it.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the externally visible breaker state.
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

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOpts configures a Breaker.
type BreakerOpts struct {
	// FailThreshold is the consecutive-failure count that trips the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// HalfOpenMax bounds concurrent probe calls while half-open.
	HalfOpenMax int
}

// DefaultBreakerOpts is the production tuning.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Breaker rejects calls after repeated failures and lets a bounded number of
// probes through once the open period has elapsed. State is derived from the
// trip timestamp rather than stored, so open flows into half-open without a
// timer goroutine.
type Breaker struct {
	mu    sync.Mutex
	opts  BreakerOpts
	clock func() time.Time

	failures int  // consecutive failures while closed
	tripped  bool // set on trip, cleared by a successful probe
	since    time.Time
	probes   int // in-flight probes while half-open
}

// NewBreaker creates a Breaker, filling unset options from defaults.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	return &Breaker{opts: opts, clock: time.Now}
}

// State reports the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state()
}

// state must be called with mu held.
func (b *Breaker) state() State {
	switch {
	case !b.tripped:
		return StateClosed
	case b.clock().Sub(b.since) < b.opts.Timeout:
		return StateOpen
	default:
		return StateHalfOpen
	}
}

// Call runs f through the breaker.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	b.mu.Lock()
	probe := false
	switch b.state() {
	case StateOpen:
		b.mu.Unlock()
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probes >= b.opts.HalfOpenMax {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probes++
		probe = true
	}
	b.mu.Unlock()

	err := f(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.tripped = false
		b.failures = 0
		b.probes = 0
		return nil
	}

	if probe {
		// Failed probe restarts the open period.
		b.since = b.clock()
		b.probes = 0
		return err
	}

	b.failures++
	if b.failures >= b.opts.FailThreshold {
		b.tripped = true
		b.since = b.clock()
		b.failures = 0
	}
	return err
}
