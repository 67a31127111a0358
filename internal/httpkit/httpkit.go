// Package httpkit builds the outbound HTTP clients used to reach model
// providers. Every client shares one tuned transport, stamps a
// User-Agent, and can optionally log each round trip. Clients make a
// single attempt per request; failover belongs to the caller.
package httpkit

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/agrismart/assistant/internal/buildinfo"
)

// Transport limits applied by NewTransport.
const (
	DialTimeout           = 10 * time.Second
	KeepAlive             = 30 * time.Second
	TLSHandshakeTimeout   = 10 * time.Second
	ResponseHeaderTimeout = 30 * time.Second
	IdleConnTimeout       = 90 * time.Second
	MaxIdleConns          = 20
	MaxIdleConnsPerHost   = 5
)

// Option configures a client built by NewClient.
type Option func(*options)

type options struct {
	timeout   time.Duration
	userAgent string
	transport *http.Transport
	logger    *slog.Logger
}

// WithTimeout sets the overall per-request timeout. Zero disables it;
// callers then rely on the request context alone.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithUserAgent overrides the default User-Agent.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithTransport replaces the shared transport. Tests use it to point
// at an httptest server's transport.
func WithTransport(t *http.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithLogger logs every round trip at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewTransport returns a transport with explicit dial, TLS and header
// timeouts.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DialTimeout,
			KeepAlive: KeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: ResponseHeaderTimeout,
		IdleConnTimeout:       IdleConnTimeout,
		MaxIdleConns:          MaxIdleConns,
		MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
		ForceAttemptHTTP2:     true,
	}
}

// NewClient builds an *http.Client from the shared transport and opts.
func NewClient(opts ...Option) *http.Client {
	o := &options{
		timeout:   60 * time.Second,
		userAgent: buildinfo.UserAgent(),
	}
	for _, fn := range opts {
		fn(o)
	}

	t := o.transport
	if t == nil {
		t = NewTransport()
	}

	var rt http.RoundTripper = &userAgentTransport{base: t, ua: o.userAgent}
	if o.logger != nil {
		rt = &logTransport{base: rt, logger: o.logger}
	}

	return &http.Client{Timeout: o.timeout, Transport: rt}
}

type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.ua != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.base.RoundTrip(req)
}

type logTransport struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *logTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	attrs := []any{
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"elapsed", time.Since(start).Round(time.Millisecond),
	}
	if err != nil {
		t.logger.Debug("http round trip failed", append(attrs, "error", err)...)
		return resp, err
	}
	t.logger.Debug("http round trip", append(attrs, "status", resp.StatusCode)...)
	return resp, nil
}
