package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/pkg/requestcontext"
)

func TestMiddlewareHandler(t *testing.T) {
	tests := []struct {
		name           string
		headers        map[string]string
		remoteAddr     string
		trustedProxies []string
		expectedIP     string
		expectedUA     string
	}{
		{
			name:       "ignores XFF when no trusted proxies",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1", "User-Agent": "Mozilla/5.0"},
			remoteAddr: "192.168.1.1:12345",
			expectedIP: "192.168.1.1",
			expectedUA: "Mozilla/5.0",
		},
		{
			name:           "trusts first XFF hop from trusted proxy",
			headers:        map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.7", "User-Agent": "curl/7.64.1"},
			remoteAddr:     "10.0.0.1:12345",
			trustedProxies: []string{"10.0.0.0/8"},
			expectedIP:     "203.0.113.1",
			expectedUA:     "curl/7.64.1",
		},
		{
			name:           "uses X-Real-IP from trusted proxy",
			headers:        map[string]string{"X-Real-IP": "198.51.100.4"},
			remoteAddr:     "10.0.0.1:12345",
			trustedProxies: []string{"10.0.0.0/8"},
			expectedIP:     "198.51.100.4",
		},
		{
			name:           "falls back to remote on garbage XFF",
			headers:        map[string]string{"X-Forwarded-For": "not-an-ip"},
			remoteAddr:     "10.0.0.1:12345",
			trustedProxies: []string{"10.0.0.0/8"},
			expectedIP:     "10.0.0.1",
		},
		{
			name:       "handles IPv6 remote addr",
			remoteAddr: "[2001:db8::1]:443",
			expectedIP: "2001:db8::1",
		},
		{
			name:       "unparseable remote addr",
			remoteAddr: "garbage",
			expectedIP: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedCtx context.Context
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				capturedCtx = r.Context()
				w.WriteHeader(http.StatusOK)
			})

			var prefixes []netip.Prefix
			for _, cidr := range tt.trustedProxies {
				prefixes = append(prefixes, netip.MustParsePrefix(cidr))
			}
			handler := NewMiddleware(&Config{TrustedProxies: prefixes}).Handler(testHandler)

			req := httptest.NewRequest(http.MethodGet, "/verify/abc", nil)
			req.RemoteAddr = tt.remoteAddr
			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}

			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.expectedIP, requestcontext.ClientIP(capturedCtx), "IP address mismatch")
			assert.Equal(t, tt.expectedUA, requestcontext.UserAgent(capturedCtx), "User-Agent mismatch")
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies(" 10.0.0.0/8, ,172.16.5.9/12")
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "172.16.0.0/12", prefixes[1].String())

	empty, err := ParseTrustedProxies("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseTrustedProxies("10.0.0.0/33")
	assert.Error(t, err)
}
