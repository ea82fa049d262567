package breakers

import (
	"time"

	cb "github.com/sony/gobreaker"
)

// Breaker wraps gobreaker with the trip policy shared by all outbound
// dependencies: three consecutive failures, or >5% failure rate once at
// least 20 calls have been observed in the interval.
type Breaker struct{ cb *cb.CircuitBreaker }

// New creates a named circuit breaker.
func New(name string) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) { return b.cb.Execute(fn) }

// State reports the breaker state string for health endpoints.
func (b *Breaker) State() string { return b.cb.State().String() }
