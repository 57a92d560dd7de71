package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Proxy header trust modes accepted by ClientIP.
const (
	TrustProxyAuto   = "auto"
	TrustProxyAlways = "true"
	TrustProxyNever  = "false"
)

// DefaultTrustedProxies covers loopback and the RFC1918 ranges.
const DefaultTrustedProxies = "127.0.0.1,::1,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16"

// IsTrustedProxy reports whether addr matches one of the comma-separated IPs or CIDR prefixes.
func IsTrustedProxy(addr string, trusted string) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	ip = ip.Unmap()

	for _, entry := range strings.Split(trusted, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err == nil && prefix.Contains(ip) {
				return true
			}
			continue
		}
		if other, err := netip.ParseAddr(entry); err == nil && other.Unmap() == ip {
			return true
		}
	}
	return false
}

// RemoteHost strips the port from a RemoteAddr-style "host:port" string.
func RemoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.Trim(addr, "[]")
	}
	return host
}

// ClientIP returns the originating client address.
// Forwarding headers are only honoured when mode allows it: "true" always,
// "false" never, "auto" only when the direct peer is a trusted proxy.
func ClientIP(r *http.Request, mode string, trusted string) string {
	remote := RemoteHost(r.RemoteAddr)

	var trust bool
	switch mode {
	case TrustProxyAlways:
		trust = true
	case TrustProxyNever:
		trust = false
	default:
		trust = IsTrustedProxy(remote, trusted)
	}
	if !trust {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return remote
}
