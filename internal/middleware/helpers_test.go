package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticTrust struct {
	mode    string
	trusted string
}

func (s staticTrust) GetTrustProxyHeaders() string { return s.mode }
func (s staticTrust) GetTrustedProxyIPs() string   { return s.trusted }

func TestClientIP_DefaultTrust(t *testing.T) {
	tests := []struct {
		name          string
		remoteAddr    string
		xForwardedFor string
		xRealIP       string
		expectedIP    string
	}{
		{
			name:       "direct connection from localhost",
			remoteAddr: "127.0.0.1:8080",
			expectedIP: "127.0.0.1",
		},
		{
			name:          "behind proxy from localhost with X-Forwarded-For",
			remoteAddr:    "127.0.0.1:8080",
			xForwardedFor: "203.0.113.50",
			expectedIP:    "203.0.113.50",
		},
		{
			name:          "behind proxy from RFC1918 with X-Forwarded-For",
			remoteAddr:    "10.0.0.1:8080",
			xForwardedFor: "203.0.113.100",
			expectedIP:    "203.0.113.100",
		},
		{
			name:       "behind proxy with X-Real-IP",
			remoteAddr: "192.168.1.1:8080",
			xRealIP:    "203.0.113.200",
			expectedIP: "203.0.113.200",
		},
		{
			name:          "X-Forwarded-For chain uses first IP",
			remoteAddr:    "192.168.1.1:8080",
			xForwardedFor: "203.0.113.1, 10.0.0.2",
			expectedIP:    "203.0.113.1",
		},
		{
			name:          "public peer cannot spoof X-Forwarded-For",
			remoteAddr:    "203.0.113.77:443",
			xForwardedFor: "1.2.3.4",
			expectedIP:    "203.0.113.77",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := ClientIP(req); got != tt.expectedIP {
				t.Errorf("ClientIP() = %q, want %q", got, tt.expectedIP)
			}
		})
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name  string
		trust staticTrust
		want  string
	}{
		{"never trust", staticTrust{mode: "false"}, "10.0.0.5"},
		{"always trust", staticTrust{mode: "true"}, "198.51.100.1"},
		{"auto with matching proxy", staticTrust{mode: "auto", trusted: "10.0.0.0/8"}, "198.51.100.1"},
		{"auto with other proxy", staticTrust{mode: "auto", trusted: "172.16.0.0/12"}, "10.0.0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := RealIP(tt.trust)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.5:1234"
			req.Header.Set("X-Forwarded-For", "198.51.100.1")
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
