// Package circuit provides a two-state circuit breaker for operations with
// a defined fallback. Closed means the primary path is healthy; after N
// consecutive failures the circuit opens and callers should take the
// fallback until M consecutive successes close it again.
package circuit

import "sync"

// Breaker tracks consecutive failures for one named dependency.
type Breaker struct {
	mu               sync.Mutex
	name             string
	open             bool
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the consecutive failures that open the circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the consecutive successes that close the circuit.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// New creates a closed breaker with the given name for logging and metrics.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 3,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the breaker's name.
func (b *Breaker) Name() string {
	return b.name
}

// IsOpen reports whether callers should take the fallback path.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// RecordFailure notes a failed primary operation and reports whether the
// circuit transitioned to open on this call.
func (b *Breaker) RecordFailure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.successCount = 0

	if b.open {
		return false
	}
	if b.failureCount >= b.failureThreshold {
		b.open = true
		return true
	}
	return false
}

// RecordSuccess notes a successful primary operation and reports whether
// the circuit transitioned to closed on this call.
func (b *Breaker) RecordSuccess() (closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		b.failureCount = 0
		return false
	}

	b.successCount++
	if b.successCount >= b.successThreshold {
		b.open = false
		b.failureCount = 0
		b.successCount = 0
		return true
	}
	return false
}

// Reset forces the breaker closed with zeroed counts.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	b.failureCount = 0
	b.successCount = 0
}
