// TLS-intercepting proxy wiring around the trust and resolution core
package proxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/proxykit/mitm-core/internal/config"
	"github.com/proxykit/mitm-core/internal/dns"
	"github.com/proxykit/mitm-core/internal/mitm"

	"github.com/elazarl/goproxy"
	"github.com/sirupsen/logrus"
)

// Server is a MITM proxy that presents certificates signed by the generated
// root CA and dials upstreams through the caching resolver.
type Server struct {
	config   *config.Config
	proxy    *goproxy.ProxyHttpServer
	resolver *dns.Resolver
	ca       *mitm.RootCertificateGenerator
}

// New creates a new proxy server
func New(cfg *config.Config, ca *mitm.RootCertificateGenerator, resolver *dns.Resolver) (*Server, error) {
	s := &Server{
		config:   cfg,
		proxy:    goproxy.NewProxyHttpServer(),
		resolver: resolver,
		ca:       ca,
	}

	if err := s.setupMITMHandler(); err != nil {
		return nil, err
	}
	s.setupDialer()

	return s, nil
}

// GetProxy returns the underlying goproxy handler (exported for testing)
func (s *Server) GetProxy() *goproxy.ProxyHttpServer {
	return s.proxy
}

// Resolver returns the resolver the server dials through.
func (s *Server) Resolver() *dns.Resolver {
	return s.resolver
}

// setupMITMHandler loads the root CA and makes goproxy sign leaf
// certificates with it for every intercepted CONNECT.
func (s *Server) setupMITMHandler() error {
	certAndKey, err := s.ca.Load()
	if err != nil {
		return fmt.Errorf("loading CA root certificate: %w", err)
	}

	caCert := tls.Certificate{
		Certificate: [][]byte{certAndKey.Certificate.Raw},
		PrivateKey:  certAndKey.PrivateKey,
		Leaf:        certAndKey.Certificate,
	}

	s.proxy.CertStore = newCertStore()

	mitmAction := &goproxy.ConnectAction{
		Action:    goproxy.ConnectMitm,
		TLSConfig: goproxy.TLSConfigFromCA(&caCert),
	}
	s.proxy.OnRequest().HandleConnect(goproxy.FuncHttpsHandler(func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
		logrus.Debugf("Handling CONNECT request for %s", host)
		return mitmAction, host
	}))

	return nil
}

// setupDialer routes upstream connections through the caching resolver.
func (s *Server) setupDialer() {
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	s.proxy.Tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return dialer.DialContext(ctx, network, addr)
		}

		addrs := s.resolver.Resolve(host)
		if len(addrs) == 0 {
			return nil, fmt.Errorf("no addresses found for host %s", host)
		}

		var lastErr error
		for _, resolved := range addrs {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(resolved.IP.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, fmt.Errorf("connecting to %s: %w", host, lastErr)
	}
}

// Start starts the proxy server
func (s *Server) Start() error {
	logrus.Infof("Starting MITM proxy on %s", s.config.Server.Addr)
	logrus.Infof("Positive DNS cache TTL: %s", s.config.DNS.PositiveTTL)
	logrus.Infof("Negative DNS cache TTL: %s", s.config.DNS.NegativeTTL)

	if s.config.Server.TransparentHTTPSAddr != "" {
		go func() {
			if err := s.StartTransparentHTTPS(s.config.Server.TransparentHTTPSAddr); err != nil {
				logrus.Errorf("Transparent HTTPS listener failed: %v", err)
			}
		}()
	}

	return http.ListenAndServe(s.config.Server.Addr, s.proxy)
}
