// Package network resolves who is on the other end of a request, for audit
// entries and login throttling logs.
package network

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address a request came from. The first parseable
// X-Forwarded-For entry wins, then X-Real-IP, then the peer address. Anything
// that is not an IP is skipped, so the result is always an IP or "".
func ClientIP(r *http.Request) string {
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := parseIP(hop); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return parseIP(host)
}

func parseIP(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
