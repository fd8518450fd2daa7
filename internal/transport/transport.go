// Package transport builds the HTTP transports used for calls to the
// storefront backend.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// =============================================================================
// TLS FINGERPRINT TRANSPORT
// =============================================================================
//
// WordPress hosts behind Cloudflare and similar CDNs rate-limit clients whose
// TLS handshake looks like Go's. The browser fingerprints below use uTLS for
// the handshake, let ALPN pick h2 or http/1.1, and hand the connection to
// http2.Transport or http.Transport accordingly.
//
// Plain http:// URLs (local WordPress, tests) skip TLS entirely.
//
// =============================================================================

// Fingerprint selects the TLS ClientHello presented upstream.
type Fingerprint string

const (
	FingerprintChrome  Fingerprint = "chrome"
	FingerprintFirefox Fingerprint = "firefox"
	FingerprintSafari  Fingerprint = "safari"
	// FingerprintGo uses the standard library handshake.
	FingerprintGo Fingerprint = "go"
)

// Options configures New.
type Options struct {
	Timeout     time.Duration
	Fingerprint Fingerprint // default chrome
}

// ParseFingerprint maps a config string to a Fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	switch fp := Fingerprint(strings.ToLower(strings.TrimSpace(s))); fp {
	case "":
		return FingerprintChrome, nil
	case FingerprintChrome, FingerprintFirefox, FingerprintSafari, FingerprintGo:
		return fp, nil
	default:
		return "", fmt.Errorf("unknown TLS fingerprint %q", s)
	}
}

// New returns a RoundTripper for the given options.
func New(opts Options) http.RoundTripper {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: opts.Timeout}

	if opts.Fingerprint == FingerprintGo {
		return &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: opts.Timeout,
			ForceAttemptHTTP2:   true,
		}
	}

	hello := helloFor(opts.Fingerprint)
	dialTLS := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialFingerprintTLS(ctx, dialer, network, addr, hello)
	}

	return &fingerprintTransport{
		h2: &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialTLS(ctx, network, addr)
			},
		},
		h1: &http.Transport{
			DialContext:    dialer.DialContext,
			DialTLSContext: dialTLS,
		},
	}
}

// NewChromeTransport is New with the Chrome fingerprint.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	return New(Options{Timeout: timeout, Fingerprint: FingerprintChrome})
}

func helloFor(fp Fingerprint) utls.ClientHelloID {
	switch fp {
	case FingerprintFirefox:
		return utls.HelloFirefox_Auto
	case FingerprintSafari:
		return utls.HelloSafari_Auto
	default:
		return utls.HelloChrome_Auto
	}
}

type fingerprintTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip tries HTTP/2 for https URLs and falls back to HTTP/1.1.
// The fallback is only taken when the request body can be replayed.
func (t *fingerprintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, err
		}
		body, gerr := req.GetBody()
		if gerr != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	return t.h1.RoundTrip(req)
}

func dialFingerprintTLS(ctx context.Context, dialer *net.Dialer, network, addr string, hello utls.ClientHelloID) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, hello)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return tlsConn, nil
}
