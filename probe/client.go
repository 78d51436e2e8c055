package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	tls "github.com/refraction-networking/utls"
)

// probeUserAgent matches the desktop browser profile so probe traffic
// doesn't look different from the rendered fetch it follows.
const probeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// maxProbeRedirects caps the redirect chain a single probe will follow.
const maxProbeRedirects = 10

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. Computed once at init time and reused per connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Drop h2 from the ALPN extension so the server never negotiates
	// HTTP/2, which Go's http.Transport cannot speak over a utls conn.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// newClient builds the HTTP client used by the robots and link probes.
// Sites behind a WAF often 403 plain Go TLS handshakes while letting
// browser fingerprints through, so the probe dials TLS with a Chrome
// ClientHello.
func newClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: timeout}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("probe: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: 4,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxProbeRedirects {
				return fmt.Errorf("too many redirects")
			}
			// The link probe reports redirect chain length; the counter
			// rides the request context since the client is shared.
			if c, ok := req.Context().Value(redirectCounterKey{}).(*atomic.Int32); ok {
				c.Store(int32(len(via)))
			}
			return nil
		},
	}
}

// browserHeaders applies the browser-like request headers shared by all
// probe requests.
func browserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", probeUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}
