package federation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Resolver maps a peer id to the base URL of its HTTP API.
type Resolver interface {
	Resolve(ctx context.Context, peer string) (string, error)
}

type lookupSRVFunc func(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)

type cachedAddress struct {
	url      string
	resolved time.Time
}

// SRVResolver resolves "{peer}.{namespace}" with a DNS SRV query and uses
// the first record. Results are cached; a ttl of 0 keeps them for the
// lifetime of the resolver.
type SRVResolver struct {
	namespace string
	ttl       time.Duration
	lookup    lookupSRVFunc
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]cachedAddress
}

// NewSRVResolver creates a resolver using the system DNS resolver.
func NewSRVResolver(namespace string, ttl time.Duration) *SRVResolver {
	return &SRVResolver{
		namespace: namespace,
		ttl:       ttl,
		lookup:    net.DefaultResolver.LookupSRV,
		now:       time.Now,
		cache:     make(map[string]cachedAddress),
	}
}

// DiscoveryName returns the DNS name queried for peer.
func (r *SRVResolver) DiscoveryName(peer string) string {
	if r.namespace == "" {
		return peer
	}
	return peer + "." + r.namespace
}

// Resolve implements Resolver.
func (r *SRVResolver) Resolve(ctx context.Context, peer string) (string, error) {
	r.mu.Lock()
	c, ok := r.cache[peer]
	r.mu.Unlock()
	if ok && (r.ttl <= 0 || r.now().Sub(c.resolved) < r.ttl) {
		return c.url, nil
	}

	name := r.DiscoveryName(peer)
	_, records, err := r.lookup(ctx, "", "", name)
	if err != nil {
		return "", fmt.Errorf("SRV lookup %s: %w", name, err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("SRV lookup %s: no records", name)
	}
	target := strings.TrimSuffix(records[0].Target, ".")
	url := "http://" + net.JoinHostPort(target, strconv.Itoa(int(records[0].Port)))

	r.mu.Lock()
	r.cache[peer] = cachedAddress{url: url, resolved: r.now()}
	r.mu.Unlock()
	return url, nil
}

// StaticResolver maps peer ids to fixed addresses ("host:port" or a URL).
type StaticResolver map[string]string

// Resolve implements Resolver.
func (s StaticResolver) Resolve(_ context.Context, peer string) (string, error) {
	addr, ok := s[peer]
	if !ok || addr == "" {
		return "", errors.New("unknown peer " + peer)
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimSuffix(addr, "/"), nil
}
