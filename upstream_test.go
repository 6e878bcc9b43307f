// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

package imageedge

import (
	"net/url"
	"strings"
	"testing"
)

func TestUpstreamURL(t *testing.T) {
	tests := []struct {
		base       string
		src        string
		directives []string
		want       string
	}{
		{
			"", "https://www.example.com/image/a.jpg",
			[]string{"c_limit", "w_640", "q_auto:good", "f_webp"},
			"https://res.cloudinary.com/demo/image/fetch/c_limit,w_640,q_auto:good,f_webp/https://www.example.com/image/a.jpg",
		},
		{
			"", "https://www.example.com/image/anim.gif?f=mp4",
			[]string{"f_mp4"},
			"https://res.cloudinary.com/demo/image/fetch/f_mp4/https://www.example.com/image/anim.gif",
		},
		{
			"", "https://www.example.com/image/clip.mp4?v=2&poster=1&t=9",
			[]string{"pg_0", "f_png"},
			"https://res.cloudinary.com/demo/image/fetch/pg_0,f_png/https://www.example.com/image/clip.mp4?v=2&t=9",
		},
		{
			"cdn.test", "http://localhost:8787/image/a.png",
			[]string{"fl_lossy", "q_50"},
			"https://cdn.test/demo/image/fetch/fl_lossy,q_50/http://localhost:8787/image/a.png",
		},
	}

	for _, tt := range tests {
		src, err := url.Parse(tt.src)
		if err != nil {
			t.Fatalf("url.Parse(%q) returned error: %v", tt.src, err)
		}
		if got := UpstreamURL(tt.base, "demo", tt.directives, src); got != tt.want {
			t.Errorf("UpstreamURL(%q, %q) returned %q, want %q", tt.src, tt.directives, got, tt.want)
		}
		if got := src.String(); got != tt.src {
			t.Errorf("UpstreamURL modified src: %q, want %q", got, tt.src)
		}
	}
}

func TestStripControlParams(t *testing.T) {
	tests := []struct {
		query, want string
	}{
		{"", ""},
		{"f=webm", ""},
		{"poster=1", ""},
		{"f=a&poster=1&f=b", ""},
		{"a=1&f=webm&b=2", "a=1&b=2"},
		{"z=1&poster=1&a=2&m=3", "z=1&a=2&m=3"},
		{"a=1&&b=2", "a=1&b=2"},
		{"%66=webm&x=1", "x=1"},      // escaped key
		{"ff=1&fposter=2", "ff=1&fposter=2"},
		{"x=a%20b&y=c+d", "x=a%20b&y=c+d"}, // kept verbatim
		{"flag&poster", "flag"},
	}

	for _, tt := range tests {
		if got := stripControlParams(tt.query); got != tt.want {
			t.Errorf("stripControlParams(%q) returned %q, want %q", tt.query, got, tt.want)
		}
	}
}

// Stripping control parameters keeps every other parameter, in order.
func TestUpstreamURL_preservesQueryOrder(t *testing.T) {
	keys := []string{"z", "f", "y", "poster", "x", "w", "f", "v"}
	var pairs, want []string
	for i, k := range keys {
		pair := k + "=" + string(rune('a'+i))
		pairs = append(pairs, pair)
		if k != "f" && k != "poster" {
			want = append(want, pair)
		}
	}

	src, _ := url.Parse("https://www.example.com/image/a.jpg?" + strings.Join(pairs, "&"))
	got := UpstreamURL("", "demo", []string{"f_png"}, src)

	_, query, _ := strings.Cut(got, "?")
	if query != strings.Join(want, "&") {
		t.Errorf("UpstreamURL query = %q, want %q", query, strings.Join(want, "&"))
	}
}

func TestParseOriginUpstream(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"http://10.0.0.1:8080", "http://10.0.0.1:8080", false},
		{"https://origin.internal", "https://origin.internal", false},
		{"origin.internal", "", true},
		{"ftp://origin.internal", "", true},
		{"http://%zz", "", true},
	}

	for _, tt := range tests {
		u, err := ParseOriginUpstream(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseOriginUpstream(%q) did not return expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOriginUpstream(%q) returned unexpected error: %v", tt.in, err)
			continue
		}
		got := ""
		if u != nil {
			got = u.String()
		}
		if got != tt.want {
			t.Errorf("ParseOriginUpstream(%q) returned %q, want %q", tt.in, got, tt.want)
		}
	}
}
