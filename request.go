// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

package imageedge

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// URLError reports a malformed URL error.
type URLError struct {
	Message string
	URL     *url.URL
}

func (e URLError) Error() string {
	return fmt.Sprintf("malformed URL %q: %s", e.URL, e.Message)
}

// Request is an inbound request whose URL has been normalized to the public
// origin.  A Request is never modified after NewRequest returns it.
type Request struct {
	URL    *url.URL    // full normalized URL, including scheme and host
	Method string      // HTTP method of the inbound request
	Header http.Header // headers of the inbound request

	// Original is the inbound request as received by the server.
	Original *http.Request
}

// NewRequest builds a Request from r, replacing workerHost with origin in
// the full request URL (see NormalizeInbound).
func NewRequest(r *http.Request, origin, workerHost string) (*Request, error) {
	raw := NormalizeInbound(inboundURL(r), origin, workerHost)

	u, err := url.Parse(raw)
	if err != nil {
		return nil, URLError{fmt.Sprintf("unable to parse normalized URL: %v", err), r.URL}
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, URLError{"request URL has no host", r.URL}
	}

	return &Request{
		URL:      u,
		Method:   r.Method,
		Header:   r.Header,
		Original: r,
	}, nil
}

func (r Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.URL)
}

// inboundURL reconstructs the absolute URL the client requested.  Server
// requests only carry the request path, so scheme and host are recovered
// from the connection and the Host header.
func inboundURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}
	return u.String()
}

// IsImageRequest reports whether req is for an image served under /image.
// The path is matched as sent, without decoding percent-encoded characters.
func IsImageRequest(req *Request) bool {
	return strings.HasPrefix(req.URL.EscapedPath(), "/image")
}

// IsOriginLoopback reports whether req was issued by the CDN itself while
// fetching a source image.  Such requests must reach the origin unmodified,
// otherwise the CDN would be asked to transform its own fetch.
func IsOriginLoopback(req *Request) bool {
	return strings.Contains(req.Header.Get("User-Agent"), "Cloudinary")
}
