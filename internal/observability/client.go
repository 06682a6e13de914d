package observability

import (
	"net"
	"net/http"
	"strings"
)

// Client describes the caller behind an HTTP or websocket request.
type Client struct {
	DeviceID  string
	RequestID string
	IP        string
	UserAgent string
}

func ClientFrom(r *http.Request) Client {
	return Client{
		DeviceID:  r.Header.Get("X-Device-Id"),
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// clientIP prefers X-Real-IP, then the first X-Forwarded-For hop, then the socket address.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
