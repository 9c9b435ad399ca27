package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the address to attribute a request to. Behind a trusted
// reverse proxy (trustProxy true) the forwarding headers win, leftmost
// X-Forwarded-For entry first, then X-Real-IP; otherwise only RemoteAddr is
// believed, since forwarding headers are caller-controlled.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedClient(r.Header); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func forwardedClient(h http.Header) string {
	xff := h.Get("X-Forwarded-For")
	first, _, _ := strings.Cut(xff, ",")
	if ip := strings.TrimSpace(first); ip != "" {
		return ip
	}
	return strings.TrimSpace(h.Get("X-Real-IP"))
}
