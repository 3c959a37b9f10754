package web

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller address. Forwarding headers are honored only
// when trustProxy is set, and only the hop appended by the single trusted
// proxy (the rightmost X-Forwarded-For entry) is used.
func ClientIP(r *http.Request, trustProxy bool) net.IP {
	if r == nil {
		return nil
	}
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	hops := strings.Split(raw, ",")
	return net.ParseIP(strings.TrimSpace(hops[len(hops)-1]))
}
