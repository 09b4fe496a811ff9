// Package transport provides the HTTP transport used for calls to the merchant store.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// =============================================================================
// TLS FINGERPRINT TRANSPORT
// =============================================================================
//
// Managed WordPress hosts commonly sit behind CDNs that rate limit or
// challenge clients by TLS fingerprint, and Go's default handshake stands out.
// The store transport presents a browser fingerprint through uTLS:
//
//   1. https requests dial with uTLS and let ALPN pick h2 or http/1.1
//   2. hosts that fail over h2 are remembered and go straight to http/1.1
//   3. plain http stores (local development) skip TLS entirely
//
// =============================================================================

// Options configures the store transport.
type Options struct {
	Timeout     time.Duration        // dial and handshake timeout
	Fingerprint *utls.ClientHelloID // defaults to utls.HelloChrome_Auto
}

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint to the store.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	return New(Options{Timeout: timeout})
}

// New creates a store transport from opts.
func New(opts Options) http.RoundTripper {
	hello := utls.HelloChrome_Auto
	if opts.Fingerprint != nil {
		hello = *opts.Fingerprint
	}
	dialer := &net.Dialer{Timeout: opts.Timeout}
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialFingerprinted(ctx, dialer, hello, network, addr)
	}

	return &storeTransport{
		h2: &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dial(ctx, network, addr)
			},
		},
		h1: &http.Transport{
			DialContext:         dialer.DialContext,
			DialTLSContext:      dial,
			ForceAttemptHTTP2:   false,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// storeTransport routes each request to the h2 or http/1.1 transport.
type storeTransport struct {
	h2 http.RoundTripper
	h1 http.RoundTripper

	h1Only sync.Map // host -> struct{}, hosts that failed over h2
}

// RoundTrip implements http.RoundTripper.
func (t *storeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	if _, ok := t.h1Only.Load(req.URL.Host); ok {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if req.Context().Err() != nil {
		return nil, err
	}

	retry, rerr := rewind(req)
	if rerr != nil {
		return nil, fmt.Errorf("h2 request failed and body cannot be replayed: %w", errors.Join(err, rerr))
	}
	t.h1Only.Store(req.URL.Host, struct{}{})
	return t.h1.RoundTrip(retry)
}

// rewind returns a copy of req with a fresh body, for replaying a request
// whose body a failed attempt may have consumed.
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body has no GetBody")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

// dialFingerprinted establishes a TLS connection with the given client hello.
func dialFingerprinted(ctx context.Context, dialer *net.Dialer, hello utls.ClientHelloID, network, addr string) (net.Conn, error) {
	// Extract hostname for SNI
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, hello)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
