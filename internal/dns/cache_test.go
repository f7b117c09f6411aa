package dns

import (
	"net"
	"testing"
	"time"
)

func TestCachePositiveAndNegativeEntries(t *testing.T) {
	c := newCache(time.Hour, time.Hour)

	c.putPositive("example.com", TypeA, []net.IP{net.ParseIP("192.0.2.10")})
	c.putNegative("missing.example.com", TypeA)

	e, ok := c.get("example.com", TypeA)
	if !ok {
		t.Fatalf("get() miss for a freshly inserted positive entry")
	}
	if e.negative || len(e.addrs) != 1 {
		t.Errorf("positive entry = %+v, want one address and negative=false", e)
	}

	e, ok = c.get("missing.example.com", TypeA)
	if !ok {
		t.Fatalf("get() miss for a freshly inserted negative entry")
	}
	if !e.negative {
		t.Errorf("negative entry has negative=false")
	}
}

func TestCacheEntriesAreKeyedByRecordType(t *testing.T) {
	c := newCache(time.Hour, time.Hour)

	c.putNegative("example.com", TypeA)

	if _, ok := c.get("example.com", TypeAAAA); ok {
		t.Errorf("AAAA get() hit a cached A entry")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := newCache(50*time.Millisecond, time.Hour)

	c.putPositive("example.com", TypeA, []net.IP{net.ParseIP("192.0.2.10")})

	if _, ok := c.get("example.com", TypeA); !ok {
		t.Fatalf("get() miss before the TTL elapsed")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := c.get("example.com", TypeA); ok {
		t.Errorf("get() hit after the TTL elapsed")
	}
}

func TestCacheTTLFixedAtInsertion(t *testing.T) {
	c := newCache(time.Hour, time.Hour)

	c.putPositive("example.com", TypeA, []net.IP{net.ParseIP("192.0.2.10")})
	c.setPositiveTTL(time.Nanosecond)

	if _, ok := c.get("example.com", TypeA); !ok {
		t.Errorf("Lowering the TTL retroactively expired an existing entry")
	}

	c.putPositive("other.example.com", TypeA, []net.IP{net.ParseIP("192.0.2.11")})
	time.Sleep(time.Millisecond)

	if _, ok := c.get("other.example.com", TypeA); ok {
		t.Errorf("Entry inserted after the TTL change kept the old TTL")
	}
}

func TestCacheClearDropsUnexpiredEntries(t *testing.T) {
	c := newCache(time.Hour, time.Hour)

	c.putPositive("example.com", TypeA, []net.IP{net.ParseIP("192.0.2.10")})
	c.putNegative("missing.example.com", TypeAAAA)

	c.clear()

	if _, ok := c.get("example.com", TypeA); ok {
		t.Errorf("clear() left a positive entry behind")
	}
	if _, ok := c.get("missing.example.com", TypeAAAA); ok {
		t.Errorf("clear() left a negative entry behind")
	}
}
