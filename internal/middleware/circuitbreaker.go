package middleware

import (
	"net/http"
	"sync"
	"time"
)

// Circuit breaker states
const (
	StateClosed   = iota // normal — requests flow through
	StateOpen            // tripped — all requests rejected
	StateHalfOpen        // testing — allow one request to check if the dispatcher recovered
)

// CircuitBreaker prevents hammering an already-failing pool by tracking
// dispatcher errors. If failures exceed the threshold, it "opens" and
// rejects requests until a timeout passes, then lets one request through
// to test recovery. Sits directly around the dispatcher, as the innermost
// pipeline stage, since
// per-backend failover is already handled inside the selection policy
// (SPEC_FULL §12) — this breaker trips only when the whole pool is down.
type CircuitBreaker struct {
	state        int
	failureCount int
	threshold    int           // failures before opening
	timeout      time.Duration // how long to stay open before trying again
	lastFailure  time.Time
	mu           sync.Mutex
}

// NewCircuitBreaker creates a circuit breaker.
// threshold = how many failures before opening (e.g., 5)
// timeout = how long to wait before trying again (e.g., 30s)
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:     StateClosed,
		threshold: threshold,
		timeout:   timeout,
	}
}

// Middleware returns the circuit breaker Middleware.
func (cb *CircuitBreaker) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cb.mu.Lock()

			switch cb.state {
			case StateOpen:
				if time.Since(cb.lastFailure) > cb.timeout {
					cb.state = StateHalfOpen
					cb.mu.Unlock()
				} else {
					cb.mu.Unlock()
					http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
					return
				}

			case StateHalfOpen:
				// A trial request is already in flight.
				cb.mu.Unlock()
				http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
				return

			case StateClosed:
				cb.mu.Unlock()
			}

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			cb.mu.Lock()
			if wrapped.statusCode >= 500 {
				cb.failureCount++
				cb.lastFailure = time.Now()

				if cb.state == StateHalfOpen {
					cb.state = StateOpen
				} else if cb.failureCount >= cb.threshold {
					cb.state = StateOpen
				}
			} else {
				cb.failureCount = 0
				cb.state = StateClosed
			}
			cb.mu.Unlock()
		})
	}
}
