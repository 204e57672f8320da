package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// clientBudget is one client's request allowance: it holds remaining tokens
// out of capacity and refills continuously at refillRate tokens/second,
// so a burst up to capacity is allowed but sustained traffic is capped —
// this runs ahead of the selection policy so one noisy client can't exhaust
// a small backend pool for everyone else.
type clientBudget struct {
	remaining  float64
	capacity   float64
	refillRate float64
	lastCharge time.Time
}

// spend replenishes the budget for elapsed time, then consumes one token if
// available.
func (cb *clientBudget) spend() bool {
	now := time.Now()
	cb.remaining += now.Sub(cb.lastCharge).Seconds() * cb.refillRate
	if cb.remaining > cb.capacity {
		cb.remaining = cb.capacity
	}
	cb.lastCharge = now

	if cb.remaining < 1 {
		return false
	}
	cb.remaining--
	return true
}

// RateLimiter throttles requests per client IP, independently of backend
// health — it trips before the dispatcher ever asks a policy for a
// backend.
type RateLimiter struct {
	mu         sync.Mutex
	budgets    map[string]*clientBudget
	capacity   float64
	refillRate float64
}

// NewRateLimiter creates a limiter allowing capacity requests in a burst per
// client IP, refilling at refillRate requests/second thereafter.
func NewRateLimiter(capacity, refillRate float64) *RateLimiter {
	return &RateLimiter{
		budgets:    make(map[string]*clientBudget),
		capacity:   capacity,
		refillRate: refillRate,
	}
}

// budgetFor returns the client's budget, creating a fresh one (seeded at
// full capacity) on first sight of that IP.
func (rl *RateLimiter) budgetFor(ip string) *clientBudget {
	if cb, ok := rl.budgets[ip]; ok {
		return cb
	}
	cb := &clientBudget{
		remaining:  rl.capacity,
		capacity:   rl.capacity,
		refillRate: rl.refillRate,
		lastCharge: time.Now(),
	}
	rl.budgets[ip] = cb
	return cb
}

// Middleware returns 429 once a client IP's budget is exhausted, otherwise
// passes the request through.
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, _ := net.SplitHostPort(r.RemoteAddr)

			rl.mu.Lock()
			allowed := rl.budgetFor(ip).spend()
			rl.mu.Unlock()

			if !allowed {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
