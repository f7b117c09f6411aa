package proxy

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

const (
	// leafCacheSize bounds the number of cached leaf certificates; a
	// tls.Certificate is small, so a few thousand fit in a handful of MB.
	leafCacheSize = 4096
	leafCacheTTL  = time.Hour
)

// certStore implements goproxy.CertStorage so a busy host is not re-signed
// on every CONNECT.
type certStore struct {
	certs *expirable.LRU[string, *tls.Certificate]
}

func newCertStore() *certStore {
	return &certStore{
		certs: expirable.NewLRU[string, *tls.Certificate](leafCacheSize, nil, leafCacheTTL),
	}
}

func (s *certStore) Fetch(hostname string, gen func() (*tls.Certificate, error)) (*tls.Certificate, error) {
	if cert, ok := s.certs.Get(hostname); ok {
		return cert, nil
	}

	cert, err := gen()
	if err != nil {
		logrus.Errorf("Failed to generate certificate for hostname '%s': %v", hostname, err)
		return nil, fmt.Errorf("failed to generate certificate for hostname '%s': %w", hostname, err)
	}

	s.certs.Add(hostname, cert)
	return cert, nil
}
