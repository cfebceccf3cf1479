package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// DefaultHeaders lists the proxy headers GetIP consults, highest priority first.
var DefaultHeaders = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// Resolver extracts the client address from a request.
type Resolver struct {
	headers []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHeaders replaces the trusted proxy headers. With no headers only
// RemoteAddr is used, which is the right choice when nothing sits in front
// of the service.
func WithHeaders(headers ...string) Option {
	return func(r *Resolver) {
		r.headers = headers
	}
}

// NewResolver creates a resolver trusting DefaultHeaders unless overridden.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{headers: DefaultHeaders}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultResolver = NewResolver()

// GetIP returns the client's IP address using the default resolver.
func GetIP(r *http.Request) string {
	return defaultResolver.Resolve(r)
}

// Resolve returns the normalized client address, or "" when none of the
// sources holds a valid one. Comma separated headers such as X-Forwarded-For
// yield their first valid entry.
func (res *Resolver) Resolve(r *http.Request) string {
	for _, header := range res.headers {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		for candidate := range strings.SplitSeq(value, ",") {
			if ip := parseIP(candidate); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// parseIP validates and normalizes an address. IPv4-mapped IPv6 addresses are
// reported as IPv4 and zones are dropped.
func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}
