package httputil

import (
	"net/http"
	"testing"
)

func request(remoteAddr string, headers map[string]string) *http.Request {
	r := &http.Request{RemoteAddr: remoteAddr, Header: http.Header{}}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestClientIP(t *testing.T) {
	const peer = "10.0.0.1:1234"
	tests := []struct {
		name    string
		trust   bool
		remote  string
		headers map[string]string
		want    string
	}{
		{"bracketed IPv6 peer", false, "[::1]:12345", nil, "::1"},
		{"peer without port", false, "192.168.1.1", nil, "192.168.1.1"},
		{"headers ignored when untrusted", false, peer,
			map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "5.6.7.8"}, "10.0.0.1"},
		{"leftmost forwarded entry", true, peer,
			map[string]string{"X-Forwarded-For": " 1.2.3.4 , 10.0.0.2", "X-Real-IP": "5.6.7.8"}, "1.2.3.4"},
		{"IPv6 forwarded entry", true, peer,
			map[string]string{"X-Forwarded-For": "2001:db8::7"}, "2001:db8::7"},
		{"malformed forwarded entry uses X-Real-IP", true, peer,
			map[string]string{"X-Forwarded-For": "not-an-ip, 1.2.3.4", "X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
		{"host:port is not an address", true, peer,
			map[string]string{"X-Real-IP": "5.6.7.8:80"}, "10.0.0.1"},
		{"malformed headers use peer", true, peer,
			map[string]string{"X-Forwarded-For": "random-key-1", "X-Real-IP": "random-key-2"}, "10.0.0.1"},
		{"IPv4-mapped address is unmapped", true, peer,
			map[string]string{"X-Forwarded-For": "::ffff:1.2.3.4"}, "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClientIP(request(tt.remote, tt.headers), tt.trust)
			if got != tt.want {
				t.Errorf("ClientIP(trust=%v) = %q, want %q", tt.trust, got, tt.want)
			}
		})
	}
}
