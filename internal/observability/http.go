package observability

import (
	"net"
	"net/http"
	"strings"
)

// RequestIDHeader carries the caller supplied request id.
const RequestIDHeader = "X-Request-Id"

const deviceIDHeader = "X-Device-Id"

// ClientInfo identifies where a request came from.
type ClientInfo struct {
	DeviceID  string
	IP        string
	RequestID string
}

func ClientFromRequest(r *http.Request) ClientInfo {
	return ClientInfo{
		DeviceID:  r.Header.Get(deviceIDHeader),
		IP:        clientIP(r),
		RequestID: r.Header.Get(RequestIDHeader),
	}
}

// clientIP takes the first valid X-Forwarded-For hop, then X-Real-Ip, then the peer address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-Ip"))); ip != nil {
		return ip.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
