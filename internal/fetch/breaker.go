package fetch

import (
	"sync"
	"time"
)

// BreakerState is the circuit state for one upstream tag.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
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

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // consecutive half-open successes to close
	Timeout          time.Duration // open -> half-open probe delay
}

// DefaultBreakerConfig matches the documented defaults (5 failures, 2
// successes, 60 s probe delay).
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, Timeout: 60 * time.Second}
}

type breaker struct {
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// BreakerRegistry holds one circuit per upstream tag. All transitions run
// under the registry lock; the guarded call itself executes outside it.
type BreakerRegistry struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	breakers map[string]*breaker
}

// NewBreakerRegistry creates a registry. A nil clock uses time.Now.
func NewBreakerRegistry(cfg BreakerConfig, clock func() time.Time) *BreakerRegistry {
	if clock == nil {
		clock = time.Now
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &BreakerRegistry{cfg: cfg, now: clock, breakers: make(map[string]*breaker)}
}

func (r *BreakerRegistry) get(tag string) *breaker {
	b, ok := r.breakers[tag]
	if !ok {
		b = &breaker{}
		r.breakers[tag] = b
	}
	return b
}

// Allow reports whether a call for tag may proceed. An expired open
// circuit flips to half-open on this check.
func (r *BreakerRegistry) Allow(tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.get(tag)
	if b.state == BreakerOpen {
		if r.now().Sub(b.lastFailure) >= r.cfg.Timeout {
			b.state = BreakerHalfOpen
			b.successes = 0
			return true
		}
		return false
	}
	return true
}

// RecordSuccess feeds a successful call outcome into the circuit.
func (r *BreakerRegistry) RecordSuccess(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.get(tag)
	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= r.cfg.SuccessThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
		}
	default:
		b.failures = 0
	}
}

// RecordFailure feeds a failed call outcome into the circuit.
func (r *BreakerRegistry) RecordFailure(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.get(tag)
	b.lastFailure = r.now()
	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.failures = 0
		b.successes = 0
	default:
		b.failures++
		if b.failures >= r.cfg.FailureThreshold {
			b.state = BreakerOpen
		}
	}
}

// State returns the current state for a tag.
func (r *BreakerRegistry) State(tag string) BreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(tag).state
}
