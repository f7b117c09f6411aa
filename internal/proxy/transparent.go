package proxy

import (
	"bufio"
	"bytes"
	"net"
	"net/http"
	"net/url"

	"github.com/inconshreveable/go-vhost"
	"github.com/sirupsen/logrus"
)

// StartTransparentHTTPS accepts raw TLS connections, sniffs the SNI hostname
// and feeds them to the proxy as synthetic CONNECT requests.
func (s *Server) StartTransparentHTTPS(httpsAddr string) error {
	ln, err := net.Listen("tcp", httpsAddr)
	if err != nil {
		return err
	}

	logrus.Infof("Accepting transparent HTTPS connections on %s", httpsAddr)

	for {
		c, err := ln.Accept()
		if err != nil {
			logrus.Errorf("Error accepting new connection - %v", err)
			continue
		}
		go s.serveTransparent(c)
	}
}

func (s *Server) serveTransparent(c net.Conn) {
	tlsConn, err := vhost.TLS(c)
	if err != nil {
		logrus.Errorf("Error accepting new connection - %v", err)
		return
	}
	if tlsConn.Host() == "" {
		logrus.Warnf("Cannot support non-SNI enabled clients")
		_ = tlsConn.Close()
		return
	}

	connectReq := &http.Request{
		Method: http.MethodConnect,
		URL: &url.URL{
			Opaque: tlsConn.Host(),
			Host:   net.JoinHostPort(tlsConn.Host(), "443"),
		},
		Host:       tlsConn.Host(),
		Header:     make(http.Header),
		RemoteAddr: c.RemoteAddr().String(),
	}
	resp := dumbResponseWriter{tlsConn}
	s.proxy.ServeHTTP(resp, connectReq)
}

// dumbResponseWriter exposes a raw accepted connection through the
// http.ResponseWriter and http.Hijacker interfaces so the CONNECT handling
// path can take it over.
type dumbResponseWriter struct {
	net.Conn
}

func (w dumbResponseWriter) Header() http.Header {
	return make(http.Header)
}

func (w dumbResponseWriter) Write(b []byte) (int, error) {
	// The client never sent a CONNECT, so swallow the synthetic response.
	if bytes.Equal(b, []byte("HTTP/1.0 200 OK\r\n\r\n")) {
		return len(b), nil
	}
	return w.Conn.Write(b)
}

func (w dumbResponseWriter) WriteHeader(code int) {}

func (w dumbResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.Conn, bufio.NewReadWriter(bufio.NewReader(w.Conn), bufio.NewWriter(w.Conn)), nil
}
