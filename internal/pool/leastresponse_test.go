package pool

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newDelayedServer(t *testing.T, body string, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLeastResponseSelectsMinimum(t *testing.T) {
	srvA := newDelayedServer(t, "A", 0)
	srvB := newDelayedServer(t, "B", 0)

	a := NewBackend(srvA.URL + "/")
	b := NewBackend(srvB.URL + "/")

	p := &LeastResponsePolicy{healthy: newBackendHeap()}
	p.healthy.push(50, a)
	p.healthy.push(10, b)

	got, err := p.nextAvailableBackend()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != b {
		t.Fatalf("expected backend with min response time (b), got %s", got.Address())
	}
}

func TestLeastResponseReselectsAfterSuccess(t *testing.T) {
	srv := newBodyServer(t, "B")
	b := NewBackend(srv.URL + "/")
	a := NewBackend(newBodyServer(t, "A").URL + "/")

	p := &LeastResponsePolicy{healthy: newBackendHeap()}
	p.healthy.push(50, a)
	p.healthy.push(10, b)

	body, err := p.SendRequest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "B" {
		t.Fatalf("expected B, got %s", body)
	}

	// b's response time remains small, so it should be picked again.
	body, err = p.SendRequest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "B" {
		t.Fatalf("expected B again (still fastest), got %s", body)
	}
}

func TestLeastResponseFailoverWithinOneRequest(t *testing.T) {
	srvB := newBodyServer(t, "B")
	a := NewBackend("http://127.0.0.1:1/") // unreachable
	b := NewBackend(srvB.URL + "/")

	p := &LeastResponsePolicy{healthy: newBackendHeap()}
	p.healthy.push(10, a)
	p.healthy.push(50, b)

	body, err := p.SendRequest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "B" {
		t.Fatalf("expected failover to B, got %s", body)
	}

	if p.healthy.Len() != 1 {
		t.Fatalf("expected 1 backend left in the healthy heap, got %d", p.healthy.Len())
	}
	if len(p.unhealthy) != 1 || p.unhealthy[0] != a {
		t.Fatalf("expected a to have moved to the unhealthy list")
	}
}

func TestLeastResponseAllUnhealthy(t *testing.T) {
	p := &LeastResponsePolicy{healthy: newBackendHeap()}
	p.healthy.push(0, NewBackend("http://127.0.0.1:1/"))
	p.healthy.push(0, NewBackend("http://127.0.0.1:2/"))

	_, err := p.SendRequest()
	if err != ErrBackendUnreachable {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
	if p.healthy.Len() != 0 {
		t.Fatalf("expected empty healthy heap, got %d", p.healthy.Len())
	}
	if len(p.unhealthy) != 2 {
		t.Fatalf("expected both backends in unhealthy list, got %d", len(p.unhealthy))
	}
}

func TestLeastResponseEmptyPool(t *testing.T) {
	p := NewLeastResponsePolicy(nil)
	_, err := p.SendRequest()
	if err != ErrNoBackendAvailable {
		t.Fatalf("expected ErrNoBackendAvailable, got %v", err)
	}
}

func TestLeastResponseRefreshHealthPartitionsBackends(t *testing.T) {
	srv := newBodyServer(t, "ok")
	healthyBackend := NewBackend(srv.URL + "/")
	unhealthyBackend := NewBackend("http://127.0.0.1:1/")

	p := NewLeastResponsePolicy([]*Backend{healthyBackend, unhealthyBackend})
	p.RefreshHealth()

	if p.healthy.Len() != 1 {
		t.Fatalf("expected 1 healthy backend after refresh, got %d", p.healthy.Len())
	}
	if len(p.unhealthy) != 1 {
		t.Fatalf("expected 1 unhealthy backend after refresh, got %d", len(p.unhealthy))
	}

	// Idempotence: a second refresh with no network change leaves membership identical.
	p.RefreshHealth()
	if p.healthy.Len() != 1 || len(p.unhealthy) != 1 {
		t.Fatalf("membership changed on a repeat refresh with no network change")
	}
}

func TestLeastResponseHealthRecovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := NewBackend(srv.URL + "/")
	p := &LeastResponsePolicy{unhealthy: []*Backend{b}}
	p.healthy = newBackendHeap()

	p.RefreshHealth()

	if p.healthy.Len() != 1 {
		t.Fatalf("expected recovered backend back in the healthy heap, got %d", p.healthy.Len())
	}
	if len(p.unhealthy) != 0 {
		t.Fatalf("expected unhealthy list empty after recovery, got %d", len(p.unhealthy))
	}
}

func TestLeastResponseSnapshotCoversBothSets(t *testing.T) {
	healthy := NewBackend(newBodyServer(t, "h").URL + "/")
	unhealthy := NewBackend("http://127.0.0.1:1/")

	p := NewLeastResponsePolicy([]*Backend{healthy, unhealthy})
	p.RefreshHealth()

	snap := p.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected snapshot of 2 backends, got %d", len(snap))
	}
}
