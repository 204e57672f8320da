package pool

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tanmay/gateway/internal/logging"
)

// defaultClientTimeout bounds every probe and forward. The original source's
// reqwest client has no timeout at all, which lets one hung backend wedge the
// health-check loop indefinitely; this is deliberately tighter than that.
const defaultClientTimeout = 5 * time.Second

// Backend is a single origin server the load balancer can route to. Address
// is immutable once constructed; health and response time are the only
// mutable fields, and they are serialized by mu so a probe in flight never
// races with the outcome of a concurrent forward.
type Backend struct {
	address string
	log     *logging.Logger

	mu             sync.RWMutex
	health         Health
	responseTimeMS float64

	client *http.Client
}

// NewBackend constructs a Backend for the given address. The address must be
// an absolute URL prefix ending in "/" (see Probe) — this is validated by the
// CLI at startup, not here, so the zero-value-friendly constructor stays
// simple. A backend starts Healthy, matching the source's optimistic default
// of assuming reachability until the first probe says otherwise. It logs
// nowhere; use NewBackendWithLogger to have Probe warn about a non-2xx
// health response.
func NewBackend(address string) *Backend {
	return &Backend{
		address: address,
		health:  Healthy,
		client:  &http.Client{Timeout: defaultClientTimeout},
	}
}

// NewBackendWithLogger is NewBackend plus a logger Probe uses to warn when
// a reachable backend's health endpoint answers with a non-2xx status
// (SPEC_FULL §4.1: still reachable, so still Healthy, but worth a log line
// the way the original's geo_backend.rs warns "does not support health
// checks").
func NewBackendWithLogger(address string, log *logging.Logger) *Backend {
	b := NewBackend(address)
	b.log = log
	return b
}

// Address returns the backend's immutable URL prefix.
func (b *Backend) Address() string {
	return b.address
}

// Health returns the backend's last observed reachability.
func (b *Backend) Health() Health {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.health
}

// ResponseTimeMS returns the backend's last observed round-trip time, in
// milliseconds, for either a probe or a forward. Zero before the first
// observation.
func (b *Backend) ResponseTimeMS() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.responseTimeMS
}

// Probe performs an HTTP GET against address+"health" and updates health and
// response time from the outcome. A transport failure marks the backend
// Unhealthy; any response at all — including a non-2xx status — marks it
// Healthy, since reachability, not application-level success, is what a
// probe measures (a backend without a dedicated health endpoint is still
// usable this way). A non-2xx status is still logged, outside the lock, as
// a backend that doesn't support health checks.
func (b *Backend) Probe() {
	start := time.Now()
	resp, err := b.client.Get(b.address + "health")
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		b.mu.Lock()
		b.responseTimeMS = elapsed
		b.health = Unhealthy
		b.mu.Unlock()
		return
	}

	status := resp.StatusCode
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	b.mu.Lock()
	b.responseTimeMS = elapsed
	b.health = Healthy
	b.mu.Unlock()

	if status < 200 || status >= 300 {
		b.warnNoHealthEndpoint(status)
	}
}

// warnNoHealthEndpoint logs that address answered its health probe with a
// non-2xx status. It is a no-op when no logger was configured.
func (b *Backend) warnNoHealthEndpoint(status int) {
	if b.log == nil {
		return
	}
	b.log.Warn("backend does not support health checks", map[string]interface{}{
		"address": b.address,
		"status":  status,
	})
}

// Forward performs an HTTP GET against address and returns the response body
// as a string on success. Response decoding never fails the call: a non-UTF-8
// body is still returned, its bytes kept unchanged by Go's native string
// conversion, rather than rejected. Health and response time are updated identically to
// Probe.
func (b *Backend) Forward() (string, error) {
	start := time.Now()
	resp, err := b.client.Get(b.address)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	b.mu.Lock()
	if err != nil {
		b.responseTimeMS = elapsed
		b.health = Unhealthy
		b.mu.Unlock()
		return "", err
	}
	b.responseTimeMS = elapsed
	b.health = Healthy
	b.mu.Unlock()

	defer resp.Body.Close()
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", readErr
	}
	return string(body), nil
}
