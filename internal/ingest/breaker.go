package ingest

import (
	"sync"
	"time"
)

// Breaker is a consecutive-failure circuit breaker for one source.
// After Threshold failures in a row it rejects calls until Cooldown has
// elapsed, then lets one trial call through.
type Breaker struct {
	Name      string
	Threshold int
	Cooldown  time.Duration

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	now       func() time.Time
}

func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 300 * time.Second
	}
	return &Breaker{
		Name:      name,
		Threshold: threshold,
		Cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow returns a *CircuitOpenError while the breaker is open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.openUntil.IsZero() && b.now().Before(b.openUntil) {
		return &CircuitOpenError{Source: b.Name, Until: b.openUntil}
	}
	return nil
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
}

func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	// a failed trial call after cooldown re-opens immediately
	if b.failures >= b.Threshold {
		b.openUntil = b.now().Add(b.Cooldown)
	}
}

// Open reports whether calls are currently rejected.
func (b *Breaker) Open() bool {
	return b.Allow() != nil
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
