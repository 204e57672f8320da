package pool

import "errors"

// ErrNoBackendAvailable means the pool is empty, or every backend was tried
// this call and none was selectable.
var ErrNoBackendAvailable = errors.New("no backend server available")

// ErrBackendUnreachable means a backend was selected but its forward failed
// at the transport level, and no other backend could be tried (or every
// other one that was tried in the same call also failed).
var ErrBackendUnreachable = errors.New("failed to send request to backend server")

// SelectionPolicy is the abstract contract the dispatcher depends on. New
// policies (round-robin, least-response, geo-aware, ...) implement this
// without the dispatcher ever needing to change.
type SelectionPolicy interface {
	// SendRequest selects a backend, forwards to it, and on transport
	// failure re-selects until either a backend succeeds or every backend
	// has been tried once. Returns the response body on success.
	SendRequest() (string, error)

	// RefreshHealth probes every backend in the pool and updates pool
	// membership (for policies, like least-response, that partition
	// backends by health) accordingly.
	RefreshHealth()

	// Snapshot returns a read-only view of every backend's current state,
	// for the admin diagnostics endpoint (SPEC_FULL §13.3). It acquires
	// only the policy's reader lock.
	Snapshot() []BackendSnapshot
}

// BackendSnapshot is a read-only view of one backend's observable state.
type BackendSnapshot struct {
	Address        string
	Health         Health
	ResponseTimeMS float64
}
