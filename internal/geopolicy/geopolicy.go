package geopolicy

import (
	"context"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"github.com/tanmay/gateway/internal/pool"
)

// clientIPKey is the context key the HTTP acceptor uses to thread the
// client's IP address down to SendRequestWithContext (SPEC_FULL §4.2.3:
// the SelectionPolicy interface itself is never widened for this).
type clientIPKey struct{}

// WithClientIP attaches a client IP address to ctx for a geo-aware policy
// to read back out.
func WithClientIP(ctx context.Context, ip net.IP) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIPFrom(ctx context.Context) (net.IP, bool) {
	ip, ok := ctx.Value(clientIPKey{}).(net.IP)
	return ip, ok && ip != nil
}

// ContextualPolicy is implemented by policies that need per-request
// information — here, the client's IP address — beyond what
// pool.SelectionPolicy's SendRequest can carry. The dispatcher type-asserts
// for this rather than widening the core interface.
type ContextualPolicy interface {
	SendRequestWithContext(ctx context.Context) (string, error)
}

// GeoPolicy is a least-response policy partitioned by continent: one
// least-response pool per continent the configured backends fall into,
// plus a global pool used as a fallback and for any backend whose
// continent could not be classified. With no GeoIP database configured it
// degenerates to exactly the global pool — i.e. plain least-response.
type GeoPolicy struct {
	db *geoip2.Reader

	mu          sync.RWMutex
	byContinent map[Continent]*pool.LeastResponsePolicy
	global      *pool.LeastResponsePolicy
}

// New builds a GeoPolicy. db may be nil, in which case every backend lands
// in the global pool and classification is skipped entirely.
func New(backends []*pool.Backend, db *geoip2.Reader) *GeoPolicy {
	g := &GeoPolicy{
		db:          db,
		byContinent: make(map[Continent]*pool.LeastResponsePolicy),
	}

	if db == nil {
		g.global = pool.NewLeastResponsePolicy(backends)
		return g
	}

	byContinent := make(map[Continent][]*pool.Backend)
	var unclassified []*pool.Backend
	for _, b := range backends {
		c := g.classify(b.Address())
		if c == Unknown {
			unclassified = append(unclassified, b)
			continue
		}
		byContinent[c] = append(byContinent[c], b)
	}

	for c, bs := range byContinent {
		g.byContinent[c] = pool.NewLeastResponsePolicy(bs)
	}
	g.global = pool.NewLeastResponsePolicy(unclassified)
	return g
}

// classify resolves a backend's address hostname to an IP and looks up its
// continent. Unresolvable hosts, or any GeoIP lookup failure, return
// Unknown — the backend then lives only in the global pool.
func (g *GeoPolicy) classify(address string) Continent {
	host := hostOf(address)
	if host == "" {
		return Unknown
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return Unknown
	}
	record, err := g.db.Country(ips[0])
	if err != nil {
		return Unknown
	}
	return ContinentFromISOCode(record.Continent.Code)
}

// hostOf extracts the hostname from a "scheme://host[:port]/..." address
// without pulling in net/url for what is a single split.
func hostOf(address string) string {
	rest := address
	if i := indexAfterScheme(rest); i >= 0 {
		rest = rest[i:]
	}
	for i, r := range rest {
		if r == '/' || r == ':' {
			return rest[:i]
		}
	}
	return rest
}

func indexAfterScheme(s string) int {
	for i := 0; i+2 < len(s); i++ {
		if s[i] == ':' && s[i+1] == '/' && s[i+2] == '/' {
			return i + 3
		}
	}
	return -1
}

// SendRequest implements pool.SelectionPolicy without a client IP, always
// falling back to the global pool — used when a caller has no request
// context to supply (e.g. the probe scheduler never sends requests, only
// refreshes health).
func (g *GeoPolicy) SendRequest() (string, error) {
	return g.SendRequestWithContext(context.Background())
}

// SendRequestWithContext prefers the client's own continent pool; if that
// pool has no healthy backend (empty or all unhealthy), it falls back to
// the global pool, matching SPEC_FULL §4.2.3.
func (g *GeoPolicy) SendRequestWithContext(ctx context.Context) (string, error) {
	p := g.poolForContext(ctx)
	if p == nil {
		return g.global.SendRequest()
	}

	body, err := p.SendRequest()
	if err == nil {
		return body, nil
	}
	return g.global.SendRequest()
}

func (g *GeoPolicy) poolForContext(ctx context.Context) *pool.LeastResponsePolicy {
	ip, ok := clientIPFrom(ctx)
	if !ok || g.db == nil {
		return nil
	}
	record, err := g.db.Country(ip)
	if err != nil {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.byContinent[ContinentFromISOCode(record.Continent.Code)]
}

// RefreshHealth refreshes every continent pool plus the global pool.
func (g *GeoPolicy) RefreshHealth() {
	g.mu.RLock()
	pools := make([]*pool.LeastResponsePolicy, 0, len(g.byContinent)+1)
	for _, p := range g.byContinent {
		pools = append(pools, p)
	}
	pools = append(pools, g.global)
	g.mu.RUnlock()

	for _, p := range pools {
		p.RefreshHealth()
	}
}

// Snapshot aggregates the snapshot of every continent pool and the global
// pool.
func (g *GeoPolicy) Snapshot() []pool.BackendSnapshot {
	g.mu.RLock()
	pools := make([]*pool.LeastResponsePolicy, 0, len(g.byContinent)+1)
	for _, p := range g.byContinent {
		pools = append(pools, p)
	}
	pools = append(pools, g.global)
	g.mu.RUnlock()

	var out []pool.BackendSnapshot
	for _, p := range pools {
		out = append(out, p.Snapshot()...)
	}
	return out
}
