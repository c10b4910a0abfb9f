package upstream

import (
	"context"
	"net/url"
	"strings"
)

type proxyCtxKey struct{}

// WithProxy attaches a per-request proxy URL to ctx. The shared Transport
// (internal/dispatcher.NewTransport) reads it back via ProxyFromContext so
// that a single pooled *http.Transport can route different requests through
// different provider-configured proxies without each Client owning its own
// Transport (spec.md §4.4: "one shared pool ... clients MUST NOT close the
// pool on teardown").
func WithProxy(ctx context.Context, proxyURL string) context.Context {
	if proxyURL == "" {
		return ctx
	}
	return context.WithValue(ctx, proxyCtxKey{}, proxyURL)
}

// ProxyFromContext resolves the proxy URL for the shared Transport's Proxy
// function. Returns (nil, nil) when the request carries no proxy override,
// which tells net/http to dial directly.
func ProxyFromContext(ctx context.Context) (*url.URL, error) {
	v, ok := ctx.Value(proxyCtxKey{}).(string)
	if !ok || v == "" {
		return nil, nil
	}
	return url.Parse(v)
}

// NormalizeProxyAddress applies spec.md §4.4's rule: a bare "host:port"
// proxy address is normalized to "http://host:port"; a value that already
// carries a scheme is left untouched.
func NormalizeProxyAddress(addr string) string {
	if addr == "" {
		return ""
	}
	if strings.Contains(addr, "://") {
		return addr
	}
	return "http://" + addr
}
