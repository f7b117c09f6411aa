// Caching hostname resolution for the proxy's connection layer
package dns

import (
	"net"
	"sync"
	"time"
)

// Default TTLs applied to cache insertions until changed via the setters.
const (
	DefaultPositiveTTL = 5 * time.Minute
	DefaultNegativeTTL = 10 * time.Second
)

// RecordType identifies the DNS record family a lookup targets.
type RecordType int

const (
	TypeA RecordType = iota
	TypeAAAA
)

func (t RecordType) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeAAAA:
		return "AAAA"
	default:
		return "unknown"
	}
}

// entry is a single cached lookup outcome. A negative entry records that the
// host had no records of the given type when it was inserted.
type entry struct {
	addrs    []net.IP
	negative bool
	expires  time.Time
}

// cache stores positive and negative lookup outcomes keyed by host and record
// type. Each entry's expiry is fixed at insertion time from the TTLs in
// effect then; changing a TTL never touches entries already stored.
type cache struct {
	mu          sync.RWMutex
	entries     map[string]entry
	positiveTTL time.Duration
	negativeTTL time.Duration
}

func newCache(positiveTTL, negativeTTL time.Duration) *cache {
	return &cache{
		entries:     make(map[string]entry),
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
	}
}

// get returns the non-expired entry for the host and type, if any.
func (c *cache) get(host string, qtype RecordType) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[cacheKey(host, qtype)]
	if !ok || time.Now().After(e.expires) {
		return entry{}, false
	}
	return e, true
}

func (c *cache) putPositive(host string, qtype RecordType, addrs []net.IP) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(host, qtype)] = entry{
		addrs:   addrs,
		expires: time.Now().Add(c.positiveTTL),
	}
}

func (c *cache) putNegative(host string, qtype RecordType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(host, qtype)] = entry{
		negative: true,
		expires:  time.Now().Add(c.negativeTTL),
	}
}

// clear drops every entry, expired or not.
func (c *cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
}

func (c *cache) setPositiveTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positiveTTL = ttl
}

func (c *cache) setNegativeTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negativeTTL = ttl
}

func cacheKey(host string, qtype RecordType) string {
	return host + "|" + qtype.String()
}
