package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
)

// StaticResolver serves endpoints from a fixed table, typically filled
// from the experiment configuration.
type StaticResolver struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

// NewStaticResolver creates a StaticResolver with the given endpoints.
func NewStaticResolver(endpoints ...Endpoint) *StaticResolver {
	r := &StaticResolver{endpoints: make(map[string]Endpoint, len(endpoints))}
	for _, ep := range endpoints {
		r.endpoints[ep.Name] = ep
	}
	return r
}

// Set adds or replaces an endpoint. An endpoint without IP is reported as
// not ready until replaced.
func (r *StaticResolver) Set(ep Endpoint) {
	r.mu.Lock()
	r.endpoints[ep.Name] = ep
	r.mu.Unlock()
}

// Lookup implements Resolver.
func (r *StaticResolver) Lookup(_ context.Context, name string) (Endpoint, error) {
	r.mu.RLock()
	ep, ok := r.endpoints[name]
	r.mu.RUnlock()
	if !ok {
		return Endpoint{}, fmt.Errorf("unknown endpoint '%s'", name)
	}
	if !ep.IP.IsValid() {
		return Endpoint{}, ErrNotReady
	}
	ep.MAC = append(net.HardwareAddr(nil), ep.MAC...)
	return ep, nil
}

// DNSResolver resolves endpoint names as hostnames. It never knows MAC
// addresses, so Await applies the configured fallback.
type DNSResolver struct {
	Resolver *net.Resolver
}

// Lookup implements Resolver. Only IPv4 answers are considered.
func (r *DNSResolver) Lookup(ctx context.Context, name string) (Endpoint, error) {
	if addr, err := netip.ParseAddr(name); err == nil {
		return Endpoint{Name: name, IP: addr.Unmap()}, nil
	}
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	addrs, err := res.LookupNetIP(ctx, "ip4", name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsNotFound) {
			return Endpoint{}, fmt.Errorf("%w: %v", ErrNotReady, err)
		}
		return Endpoint{}, fmt.Errorf("resolving '%s': %w", name, err)
	}
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return Endpoint{Name: name, IP: a.Unmap()}, nil
		}
	}
	return Endpoint{}, ErrNotReady
}
