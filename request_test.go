// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

package imageedge

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRequest(t *testing.T) {
	tests := []struct {
		target  string            // request-target as sent by the client
		host    string            // Host header, for path-only targets
		tls     bool              // whether the connection used TLS
		header  map[string]string // extra request headers
		origin  string
		worker  string
		want    string // normalized URL
		wantErr bool
	}{
		// absolute request targets
		{target: "http://example.com/image/a.jpg", want: "http://example.com/image/a.jpg"},
		{target: "http://localhost:8787/image/a.jpg?f=webm", origin: "https://www.example.com", worker: "http://localhost:8787", want: "https://www.example.com/image/a.jpg?f=webm"},

		// path-only targets, as received by a server
		{target: "/image/a.jpg", host: "www.example.com", want: "http://www.example.com/image/a.jpg"},
		{target: "/image/a.jpg?x=1&y=2", host: "www.example.com", tls: true, want: "https://www.example.com/image/a.jpg?x=1&y=2"},
		{target: "/", host: "www.example.com", header: map[string]string{"X-Forwarded-Proto": "HTTPS, http"}, want: "https://www.example.com/"},
		{target: "/about", host: "localhost:8787", origin: "www.example.com", worker: "localhost:8787", want: "http://www.example.com/about"},
		{target: "/image/a%2Fb.jpg", host: "www.example.com", want: "http://www.example.com/image/a%2Fb.jpg"},

		// host substitution producing a broken URL
		{target: "/image/a.jpg", host: "dev.test", origin: "%zz", worker: "dev.test", wantErr: true},
	}

	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.target, nil)
		if tt.host != "" {
			r.Host = tt.host
		}
		if tt.tls {
			r.TLS = &tls.ConnectionState{}
		}
		for k, v := range tt.header {
			r.Header.Set(k, v)
		}

		req, err := NewRequest(r, tt.origin, tt.worker)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewRequest(%q) did not return expected error", tt.target)
			}
			continue
		} else if err != nil {
			t.Errorf("NewRequest(%q) returned unexpected error: %v", tt.target, err)
			continue
		}

		if got := req.URL.String(); got != tt.want {
			t.Errorf("NewRequest(%q) URL = %q, want %q", tt.target, got, tt.want)
		}
		if req.Original != r {
			t.Errorf("NewRequest(%q) did not keep original request", tt.target)
		}
	}
}

func TestIsImageRequest(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com/image/a.jpg", true},
		{"http://example.com/image", true},
		{"http://example.com/images/a.jpg", true}, // prefix match, not segment match
		{"http://example.com/", false},
		{"http://example.com/static/image/a.jpg", false},
		{"http://example.com/Image/a.jpg", false},
		{"http://example.com/%69mage/a.jpg", false}, // matched as sent
		{"http://example.com/image%2Fa.jpg", true},
	}

	for _, tt := range tests {
		req := newTestRequest(t, tt.url, nil)
		if got := IsImageRequest(req); got != tt.want {
			t.Errorf("IsImageRequest(%q) returned %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestIsOriginLoopback(t *testing.T) {
	tests := []struct {
		ua   string
		want bool
	}{
		{"", false},
		{"Mozilla/5.0 (X11; Linux x86_64)", false},
		{"Cloudinary/1.0", true},
		{"Mozilla/5.0 (compatible; Cloudinary)", true},
		{"cloudinary/1.0", false}, // case-sensitive
	}

	for _, tt := range tests {
		req := newTestRequest(t, "http://example.com/image/a.jpg", map[string]string{"User-Agent": tt.ua})
		if got := IsOriginLoopback(req); got != tt.want {
			t.Errorf("IsOriginLoopback(%q) returned %v, want %v", tt.ua, got, tt.want)
		}
	}
}

// newTestRequest returns a Request for url with the given headers set.
func newTestRequest(t *testing.T, url string, header map[string]string) *Request {
	t.Helper()
	r, err := http.NewRequest("GET", url, nil)
	if err != nil {
		t.Fatalf("http.NewRequest(%q) returned error: %v", url, err)
	}
	for k, v := range header {
		if v != "" {
			r.Header.Set(k, v)
		}
	}
	req, err := NewRequest(r, "", "")
	if err != nil {
		t.Fatalf("NewRequest(%q) returned error: %v", url, err)
	}
	return req
}
