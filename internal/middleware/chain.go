// Package middleware holds the ambient HTTP middleware the gateway wraps
// around the dispatcher (SPEC_FULL §12): request correlation, metrics,
// logging, rate limiting, optional auth, and the circuit breaker. None of
// it belongs to the backend-pool state machine — it's what sits in front
// of it on the way to pool.SelectionPolicy.
package middleware

import "net/http"

// Middleware wraps a handler with behavior that runs before and/or after the
// handler it wraps — request tagging, metrics, auth, and so on.
type Middleware func(http.Handler) http.Handler

// Pipeline builds the gateway's request path by wrapping terminal (usually
// the dispatcher) with each stage in stages, outermost first: Pipeline(h, A,
// B) handles a request as A, then B, then h, unwinding back through B then A
// on the way out.
func Pipeline(terminal http.Handler, stages ...Middleware) http.Handler {
	handler := terminal
	for i := len(stages) - 1; i >= 0; i-- {
		handler = stages[i](handler)
	}
	return handler
}
