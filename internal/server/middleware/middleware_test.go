package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{name: "forwarded first hop", xff: "203.0.113.7, 10.0.0.1", remote: "10.0.0.2:5000", want: "203.0.113.7"},
		{name: "real ip", xri: "198.51.100.4", remote: "10.0.0.2:5000", want: "198.51.100.4"},
		{name: "remote addr", remote: "192.0.2.9:443", want: "192.0.2.9"},
		{name: "remote without port", remote: "192.0.2.9", want: "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, OriginAllowed(nil, "https://any.example"))
	assert.True(t, OriginAllowed([]string{"*"}, "https://any.example"))
	assert.True(t, OriginAllowed([]string{"https://App.example"}, "https://app.example"))
	assert.False(t, OriginAllowed([]string{"https://app.example"}, "https://other.example"))
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer  abc ")
	assert.Equal(t, "abc", extractToken(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic xyz")
	r.Header.Set("X-API-Key", "k")
	assert.Equal(t, "k", extractToken(r))
}
