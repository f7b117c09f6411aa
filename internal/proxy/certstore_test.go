package proxy

import (
	"crypto/tls"
	"fmt"
	"testing"
)

func TestCertStoreFetchCaches(t *testing.T) {
	store := newCertStore()

	generated := 0
	gen := func() (*tls.Certificate, error) {
		generated++
		return &tls.Certificate{}, nil
	}

	first, err := store.Fetch("example.com", gen)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	second, err := store.Fetch("example.com", gen)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if first != second {
		t.Errorf("Fetch() returned different certificates for the same hostname")
	}
	if generated != 1 {
		t.Errorf("Generator invoked %d times, want 1", generated)
	}
}

func TestCertStoreFetchPropagatesError(t *testing.T) {
	store := newCertStore()

	_, err := store.Fetch("example.com", func() (*tls.Certificate, error) {
		return nil, fmt.Errorf("signing failed")
	})
	if err == nil {
		t.Fatalf("Fetch() error = nil, want an error")
	}

	// A failed generation must not cache anything.
	generated := 0
	_, err = store.Fetch("example.com", func() (*tls.Certificate, error) {
		generated++
		return &tls.Certificate{}, nil
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if generated != 1 {
		t.Errorf("Generator invoked %d times after a failed fetch, want 1", generated)
	}
}
