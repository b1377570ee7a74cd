package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		wantIP  string
	}{
		{"peer address", nil, "192.0.2.1"},
		{"first forwarded hop", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"garbage forwarded falls through", map[string]string{"X-Forwarded-For": "unknown", "X-Real-Ip": "198.51.100.4"}, "198.51.100.4"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws/notifications", nil)
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.wantIP, ClientFromRequest(r).IP)
		})
	}
}

func TestClientFromRequestIDs(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(RequestIDHeader, "req-9")
	r.Header.Set("X-Device-Id", "ipad")

	info := ClientFromRequest(r)
	assert.Equal(t, "req-9", info.RequestID)
	assert.Equal(t, "ipad", info.DeviceID)
}
