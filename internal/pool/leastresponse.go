package pool

import "sync"

// LeastResponsePolicy selects the backend with the smallest observed
// response time. Healthy backends live in a min-heap keyed by
// response_time_ms; unhealthy backends live in a separate list. Every
// backend not currently held by an in-flight forward or probe is in exactly
// one of the two sets (SPEC_FULL invariant 3).
type LeastResponsePolicy struct {
	mu        sync.RWMutex
	healthy   *backendHeap
	unhealthy []*Backend
}

// NewLeastResponsePolicy seeds every backend into the healthy heap with
// priority 0 — first-selection order among them is unspecified until real
// samples arrive, matching the source.
func NewLeastResponsePolicy(backends []*Backend) *LeastResponsePolicy {
	h := newBackendHeap()
	for _, b := range backends {
		h.push(0, b)
	}
	return &LeastResponsePolicy{healthy: h}
}

// nextAvailableBackend peeks the top of the healthy heap without removing
// it.
func (p *LeastResponsePolicy) nextAvailableBackend() (*Backend, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.healthy.peek()
	if !ok {
		return nil, ErrNoBackendAvailable
	}
	return b, nil
}

// SendRequest implements SPEC_FULL §4.2.2: pop the backend with the
// smallest response time, forward to it, and either re-insert it (success)
// or move it to the unhealthy list and retry with the next-best backend
// (failure). The retry is an iterative loop bounded by the pool size, not
// recursion, so each backend is attempted at most once per call and the
// loop cannot grow the stack with pool size.
func (p *LeastResponsePolicy) SendRequest() (string, error) {
	attempts := p.poolSize()
	if attempts == 0 {
		return "", ErrNoBackendAvailable
	}
	for i := 0; i < attempts; i++ {
		b, ok := p.popHealthy()
		if !ok {
			return "", ErrNoBackendAvailable
		}

		body, err := b.Forward()
		if err == nil {
			p.pushHealthy(b.ResponseTimeMS(), b)
			return body, nil
		}

		p.markUnhealthy(b)
	}
	return "", ErrBackendUnreachable
}

func (p *LeastResponsePolicy) poolSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy.Len() + len(p.unhealthy)
}

func (p *LeastResponsePolicy) popHealthy() (*Backend, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy.pop()
}

func (p *LeastResponsePolicy) pushHealthy(priority float64, b *Backend) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy.push(priority, b)
}

func (p *LeastResponsePolicy) markUnhealthy(b *Backend) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unhealthy = append(p.unhealthy, b)
}

// RefreshHealth drains both sets into scratch structures, probes every
// backend exactly once, and partitions them by the fresh health result —
// rebuilding rather than repairing in place, so the two sets can never
// desynchronize.
func (p *LeastResponsePolicy) RefreshHealth() {
	p.mu.Lock()
	var drained []*Backend
	for {
		b, ok := p.healthy.pop()
		if !ok {
			break
		}
		drained = append(drained, b)
	}
	drained = append(drained, p.unhealthy...)
	p.unhealthy = nil
	p.mu.Unlock()

	newHealthy := newBackendHeap()
	var newUnhealthy []*Backend
	for _, b := range drained {
		b.Probe()
		if b.Health() == Healthy {
			newHealthy.push(b.ResponseTimeMS(), b)
		} else {
			newUnhealthy = append(newUnhealthy, b)
		}
	}

	p.mu.Lock()
	// Keep any backend a concurrent SendRequest returned to either set while
	// the probes ran; it was not among the drained backends.
	for {
		b, ok := p.healthy.pop()
		if !ok {
			break
		}
		newHealthy.push(b.ResponseTimeMS(), b)
	}
	newUnhealthy = append(newUnhealthy, p.unhealthy...)
	p.healthy = newHealthy
	p.unhealthy = newUnhealthy
	p.mu.Unlock()
}

// Snapshot returns the current state of every backend, healthy first.
func (p *LeastResponsePolicy) Snapshot() []BackendSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]BackendSnapshot, 0, p.healthy.Len()+len(p.unhealthy))
	for _, item := range *p.healthy {
		out = append(out, BackendSnapshot{
			Address:        item.backend.Address(),
			Health:         item.backend.Health(),
			ResponseTimeMS: item.backend.ResponseTimeMS(),
		})
	}
	for _, b := range p.unhealthy {
		out = append(out, BackendSnapshot{Address: b.Address(), Health: b.Health(), ResponseTimeMS: b.ResponseTimeMS()})
	}
	return out
}
