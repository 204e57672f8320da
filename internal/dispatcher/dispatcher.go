// Package dispatcher bridges incoming HTTP requests to a pool.SelectionPolicy.
// It is a thin shim, per SPEC_FULL §4.4: it never selects backends itself.
package dispatcher

import (
	"errors"
	"net"
	"net/http"

	"github.com/tanmay/gateway/internal/geopolicy"
	"github.com/tanmay/gateway/internal/logging"
	"github.com/tanmay/gateway/internal/pool"
)

const failureMessage = "Failed to send request to backend server"

// Dispatcher serves every inbound request by asking a policy for a backend
// and returning its response body, or a 500 with failureMessage on
// NoBackendAvailable/BackendUnreachable.
type Dispatcher struct {
	policy pool.SelectionPolicy
	log    *logging.Logger
}

// New creates a Dispatcher over the given policy.
func New(policy pool.SelectionPolicy, log *logging.Logger) *Dispatcher {
	return &Dispatcher{policy: policy, log: log}
}

// ServeHTTP implements http.Handler. Request headers, methods, and bodies
// are not propagated — only GET semantics are implemented (SPEC_FULL §4.4
// non-goal for the core).
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := d.sendRequest(r)
	if err != nil {
		d.logFailure(err, r.URL.Path)
		http.Error(w, failureMessage, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// logFailure records which of the two sentinel errors the policy returned
// and the pool size at the time (SPEC_FULL §7, §10.3): NoBackendAvailable
// vs. BackendUnreachable only matters for diagnostics — both still surface
// to the client as the same 500 with failureMessage.
func (d *Dispatcher) logFailure(err error, path string) {
	reason := "unknown"
	switch {
	case errors.Is(err, pool.ErrNoBackendAvailable):
		reason = "no_backend_available"
	case errors.Is(err, pool.ErrBackendUnreachable):
		reason = "backend_unreachable"
	}

	d.log.Warn("dispatch failed", map[string]interface{}{
		"error":     err.Error(),
		"reason":    reason,
		"path":      path,
		"pool_size": len(d.policy.Snapshot()),
	})
}

// sendRequest calls SendRequest on the policy, threading the client's IP
// through the context for policies that implement geopolicy.ContextualPolicy
// (SPEC_FULL §4.2.3) without widening pool.SelectionPolicy itself.
func (d *Dispatcher) sendRequest(r *http.Request) (string, error) {
	if cp, ok := d.policy.(geopolicy.ContextualPolicy); ok {
		ctx := geopolicy.WithClientIP(r.Context(), clientIP(r))
		return cp.SendRequestWithContext(ctx)
	}
	return d.policy.SendRequest()
}

func clientIP(r *http.Request) net.IP {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := net.ParseIP(fwd); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
