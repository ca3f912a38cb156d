package httputil

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"

	"github.com/dotspan/dotspan/pkg/buildinfo"
	"github.com/dotspan/dotspan/pkg/observability"
)

// DefaultTimeout bounds a single request, body included.
const DefaultTimeout = 15 * time.Second

// NewClient returns a client with the given timeout (DefaultTimeout when
// zero) that sets the User-Agent header and reports every request to the
// registered HTTP hooks.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &transport{base: http.DefaultTransport},
	}
}

// ErrBlockedAddress is returned by a public client that was asked to dial
// a loopback, private or link-local address.
var ErrBlockedAddress = errors.New("address not publicly routable")

// NewPublicClient is like [NewClient] but only dials public unicast
// addresses, redirects and DNS answers included. It ignores proxy settings
// since a proxy would dial on its behalf.
func NewPublicClient(timeout time.Duration) *http.Client {
	c := NewClient(timeout)
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = nil
	base.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   denyNonPublic,
	}).DialContext
	c.Transport = &transport{base: base}
	return c
}

func denyNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() || ip.IsLoopback() {
		return fmt.Errorf("dial %s: %w", address, ErrBlockedAddress)
	}
	return nil
}

type transport struct {
	base http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", buildinfo.UserAgent())
	}

	hooks := observability.HTTP()
	ctx := req.Context()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, err
	}
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))
	return resp, nil
}

// StatusError reports an unsuccessful HTTP status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// CheckResponse returns nil for 2xx responses. 5xx and 429 yield a
// retryable [StatusError] that honours Retry-After; other statuses a
// permanent one.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err := &StatusError{StatusCode: resp.StatusCode, URL: resp.Request.URL.String()}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &RetryableError{Err: err, After: retryAfter(resp.Header)}
	}
	return err
}
