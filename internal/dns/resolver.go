package dns

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// retryLimit is the number of retries beyond the first lookup attempt when
// the underlying lookup reports a transient failure.
const retryLimit = 5

// retryBackoff is how long a calling goroutine sleeps between retries.
const retryBackoff = 250 * time.Millisecond

// ResolvedAddress associates a resolved IP with the hostname that was asked
// for. Host is always the (possibly remapped) input string, never the
// canonical trailing-dot form returned by the lookup machinery.
type ResolvedAddress struct {
	Host string
	IP   net.IP
}

// Resolver resolves hostnames to addresses, preferring IPv4 and falling back
// to IPv6, with positive and negative caching and bounded retries on
// transient lookup failures. Safe for concurrent use.
type Resolver struct {
	lookup  HostLookup
	cache   *cache
	remap   *Remapper
	backoff time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLookup replaces the default system lookup.
func WithLookup(lookup HostLookup) Option {
	return func(r *Resolver) {
		r.lookup = lookup
	}
}

// WithPositiveTTL sets the initial TTL for cached successful resolutions.
func WithPositiveTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache.positiveTTL = ttl
	}
}

// WithNegativeTTL sets the initial TTL for cached "not found" outcomes.
func WithNegativeTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache.negativeTTL = ttl
	}
}

// NewResolver creates a resolver. Unless WithLookup is given, lookups go to
// the nameservers in the system resolver configuration.
func NewResolver(opts ...Option) (*Resolver, error) {
	r := &Resolver{
		cache:   newCache(DefaultPositiveTTL, DefaultNegativeTTL),
		remap:   NewRemapper(),
		backoff: retryBackoff,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.lookup == nil {
		lookup, err := newSystemLookup()
		if err != nil {
			return nil, err
		}
		r.lookup = lookup
	}

	return r, nil
}

// Resolve resolves a hostname to zero or more addresses. "Not found" is a
// normal outcome reported as an empty result, never as an error.
func (r *Resolver) Resolve(host string) []ResolvedAddress {
	host = r.remap.Apply(host)

	// IP literals skip the lookup path entirely. IPv6 literals carrying a
	// zone identifier ("fe80::1%eth0") are not recognized here and fall
	// through to the lookup path, which will not resolve them.
	if ip := net.ParseIP(host); ip != nil {
		return []ResolvedAddress{{Host: host, IP: ip}}
	}

	// The connection layer always uses the first returned address, so once
	// IPv4 addresses are found there is no point looking for IPv6 ones.
	addrs := r.resolveByType(host, TypeA)
	if len(addrs) > 0 {
		return addrs
	}
	return r.resolveByType(host, TypeAAAA)
}

func (r *Resolver) resolveByType(host string, qtype RecordType) []ResolvedAddress {
	if e, ok := r.cache.get(host, qtype); ok {
		if e.negative {
			return nil
		}
		return rebind(host, e.addrs)
	}

	records, status := r.lookup.LookupHost(host, qtype)
	for retries := 0; status == StatusTryAgain && retries < retryLimit; retries++ {
		time.Sleep(r.backoff)
		records, status = r.lookup.LookupHost(host, qtype)
	}

	switch status {
	case StatusNotFound:
		r.cache.putNegative(host, qtype)
		return nil
	case StatusTryAgain:
		// Retries exhausted. The outcome is transient, so it is not
		// cached as negative; the next call starts fresh.
		logrus.Debugf("Giving up on %s lookup for %s after %d attempts", qtype, host, retryLimit+1)
		return nil
	}

	addrs := make([]net.IP, 0, len(records))
	for _, rec := range records {
		ip := net.IP(rec.Addr)
		if ip.To16() == nil {
			logrus.Warnf("Lookup returned an invalid %s record for host %s: %v", qtype, host, rec.Addr)
			continue
		}
		addrs = append(addrs, ip)
	}
	if len(addrs) == 0 {
		return nil
	}

	r.cache.putPositive(host, qtype, addrs)
	return rebind(host, addrs)
}

// rebind tags each address with the hostname the caller supplied, discarding
// whatever canonical name the lookup produced.
func rebind(host string, addrs []net.IP) []ResolvedAddress {
	resolved := make([]ResolvedAddress, 0, len(addrs))
	for _, ip := range addrs {
		resolved = append(resolved, ResolvedAddress{Host: host, IP: ip})
	}
	return resolved
}

// ClearCache unconditionally discards all cached entries, positive and
// negative, independent of their TTLs.
func (r *Resolver) ClearCache() {
	r.cache.clear()
}

// SetPositiveCacheTimeout sets the TTL applied to future successful cache
// insertions. Entries already cached keep the TTL they were inserted with.
func (r *Resolver) SetPositiveCacheTimeout(ttl time.Duration) {
	r.cache.setPositiveTTL(ttl)
}

// SetNegativeCacheTimeout sets the TTL applied to future "not found" cache
// insertions. Entries already cached keep the TTL they were inserted with.
func (r *Resolver) SetNegativeCacheTimeout(ttl time.Duration) {
	r.cache.setNegativeTTL(ttl)
}

// SetRemapping makes future resolutions of from resolve to instead.
func (r *Resolver) SetRemapping(from, to string) {
	r.remap.Set(from, to)
}

// RemoveRemapping removes a remapping previously set for from.
func (r *Resolver) RemoveRemapping(from string) {
	r.remap.Remove(from)
}

// ClearRemappings removes all hostname remappings.
func (r *Resolver) ClearRemappings() {
	r.remap.Clear()
}
