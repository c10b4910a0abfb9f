package dispatcher

import (
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/deepgate/deepgate/internal/upstream"
)

// PoolSettings mirrors the TCP pool knobs spec.md §4.4 names, sourced from
// system settings: tcp_connector_limit (default 100), tcp_connector_limit_per_host
// (default 0 = unbounded), tcp_keepalive_timeout (default 30s).
type PoolSettings struct {
	Limit            int
	LimitPerHost     int
	KeepaliveTimeout time.Duration
}

// DefaultPoolSettings matches the aiohttp TCPConnector defaults spec.md §4.4
// calls out.
var DefaultPoolSettings = PoolSettings{
	Limit:            100,
	LimitPerHost:     0,
	KeepaliveTimeout: 30 * time.Second,
}

// NewTransport builds the single shared *http.Transport every upstream
// Client borrows (spec.md §4.2/§4.4): TLS enabled, no force-close, idle
// connections cleaned up automatically by the net/http runtime. Per-request
// proxy routing is handled by Proxy reading back the context value a Client
// attaches via upstream.WithProxy — this is what lets one shared Transport
// serve providers with different proxy settings.
func NewTransport(settings PoolSettings) *http.Transport {
	maxIdlePerHost := settings.LimitPerHost
	if maxIdlePerHost <= 0 {
		// "0 = unbounded" (spec.md §4.4); net/http's own zero value means
		// "use DefaultMaxIdleConnsPerHost (2)", which is the opposite of
		// what an explicit 0 means here, so substitute a large ceiling.
		maxIdlePerHost = math.MaxInt32
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: settings.KeepaliveTimeout,
	}

	return &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			return upstream.ProxyFromContext(req.Context())
		},
		DialContext:           dialer.DialContext,
		MaxIdleConns:          settings.Limit,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		IdleConnTimeout:       settings.KeepaliveTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
