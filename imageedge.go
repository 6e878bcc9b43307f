// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

// Package imageedge provides an edge handler that serves images through
// the Cloudinary fetch API.  Requests for paths under /image are rewritten
// to a Cloudinary fetch URL carrying transformation directives chosen for
// the requesting client; every other request is forwarded to the origin.
// For typical use of creating and using a Proxy, see cmd/imageedge/main.go.
package imageedge // import "willnorris.com/go/imageedge"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	aia "github.com/fcjr/aia-transport-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const tracerName = "willnorris.com/go/imageedge"

// Proxy serves edge requests.
//
// Note that a Proxy should not be run behind a http.ServeMux, since the
// ServeMux cleans URLs and would alter the path forwarded upstream.
type Proxy struct {
	Client *http.Client // client used to fetch from the CDN and the origin

	// Origin is the public origin, for example "https://www.example.com".
	Origin string

	// WorkerHost is an optional alias of Origin under which the proxy is
	// reached during development.  If empty, no host rewriting is done.
	WorkerHost string

	// Cloud is the Cloudinary cloud name.
	Cloud string

	// CDNBase is the host of the CDN delivery API.  If empty,
	// DefaultCDNBase is used.
	CDNBase string

	// OriginUpstream, if set, is where requests for the origin are sent.
	// Its scheme and host replace those of the normalized request URL,
	// while the Host header keeps the public origin host.  If nil, the
	// normalized request URL is fetched as is.
	OriginUpstream *url.URL

	// Policy decides the transformation directives for image requests.
	Policy Policy

	// Timeout specifies a time limit for requests served by this Proxy.
	// If a call runs for longer than its time limit, a 503 Service Unavailable
	// response is returned.  A Timeout of zero means no timeout.
	Timeout time.Duration

	// Logger is used for diagnostic messages.  If nil, nothing is logged.
	Logger *zap.SugaredLogger
}

// NewProxy constructs a new proxy.  The provided http RoundTripper will be
// used for all upstream requests.  If nil is provided, a transport that
// fetches missing intermediate certificates is used.
func NewProxy(transport http.RoundTripper, logger *zap.SugaredLogger) *Proxy {
	if transport == nil {
		var err error
		transport, err = aia.NewTransport()
		if err != nil {
			transport = http.DefaultTransport
		}
	}

	client := &http.Client{
		Transport: otelhttp.NewTransport(transport),
		// redirects are relayed to the client, never followed
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Proxy{
		Client:  client,
		CDNBase: DefaultCDNBase,
		Policy:  Policy{Detector: UserAgentDetector{}},
		Logger:  logger,
	}
}

// ServeHTTP handles edge requests.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var h http.Handler = http.HandlerFunc(p.serveEdge)
	if p.Timeout > 0 {
		h = http.TimeoutHandler(h, p.Timeout, "Gateway timeout waiting for upstream.")
	}
	h.ServeHTTP(w, r)
}

func (p *Proxy) serveEdge(w http.ResponseWriter, r *http.Request) {
	defer func(start time.Time) {
		httpRequestsResponseTime.Observe(time.Since(start).Seconds())
	}(time.Now())

	req, err := NewRequest(r, p.Origin, p.WorkerHost)
	if err != nil {
		requestsTotal.WithLabelValues(routeInvalid).Inc()
		msg := fmt.Sprintf("invalid request URL: %v", err)
		p.logger().Errorw("invalid request URL", "error", err)
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	p.logger().Debugw("processing", "url", req.URL.String())

	if IsImageRequest(req) && !IsOriginLoopback(req) {
		requestsTotal.WithLabelValues(routeImage).Inc()
		target, err := p.rewrite(r.Context(), req)
		if err != nil {
			msg := fmt.Sprintf("error building upstream URL: %v", err)
			p.logger().Errorw("error building upstream URL", "url", req.URL.String(), "error", err)
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		p.forward(w, req, target, target.Host)
		return
	}

	if IsImageRequest(req) {
		requestsTotal.WithLabelValues(routeLoopback).Inc()
	} else {
		requestsTotal.WithLabelValues(routePassthrough).Inc()
	}
	p.forward(w, req, p.originURL(req), req.URL.Host)
}

// rewrite returns the CDN fetch URL for the image request req.
func (p *Proxy) rewrite(ctx context.Context, req *Request) (*url.URL, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "imageedge.rewrite")
	defer span.End()

	caps := DetectCapabilities(req)
	format := DetectSourceFormat(req)
	directives, rule := p.Policy.evaluate(req, format, caps)
	directiveRuleTotal.WithLabelValues(rule).Inc()

	span.SetAttributes(
		attribute.String("imageedge.rule", rule),
		attribute.String("imageedge.source_format", string(format)),
		attribute.Bool("imageedge.accept_avif", caps.AVIF),
		attribute.Bool("imageedge.accept_webp", caps.WEBP),
		attribute.StringSlice("imageedge.directives", directives),
	)

	// in development the CDN has to come back through the worker host
	src, err := url.Parse(DenormalizeForUpstream(req.URL.String(), p.Origin, p.WorkerHost))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("parsing source URL: %w", err)
	}

	raw := UpstreamURL(p.CDNBase, p.Cloud, directives, src)
	p.logger().Debugw("rewriting image origin url", "url", raw, "rule", rule)
	return url.Parse(raw)
}

// originURL returns the URL req is fetched from when it is not rewritten.
func (p *Proxy) originURL(req *Request) *url.URL {
	u := *req.URL
	if p.OriginUpstream != nil {
		u.Scheme = p.OriginUpstream.Scheme
		u.Host = p.OriginUpstream.Host
	}
	return &u
}

// forward sends req to target with the given Host header and relays the
// response to w.  The response is never inspected.
func (p *Proxy) forward(w http.ResponseWriter, req *Request, target *url.URL, host string) {
	in := req.Original

	out, err := http.NewRequestWithContext(in.Context(), in.Method, target.String(), in.Body)
	if err != nil {
		msg := fmt.Sprintf("error creating upstream request: %v", err)
		p.logger().Errorw("error creating upstream request", "url", target.String(), "error", err)
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}
	out.Header = in.Header.Clone()
	removeHopHeaders(out.Header)
	out.ContentLength = in.ContentLength
	out.Host = host

	resp, err := p.Client.Do(out)
	if err != nil {
		upstreamFetchErrors.Inc()
		p.logger().Errorw("error fetching upstream", "url", target.String(), "error", err)
		if errors.Is(err, context.Canceled) {
			return
		}
		msg := fmt.Sprintf("error fetching upstream: %v", err)
		http.Error(w, msg, http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	removeHopHeaders(resp.Header)
	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger().Debugw("error copying upstream response", "url", target.String(), "error", err)
	}
}

func (p *Proxy) logger() *zap.SugaredLogger {
	if p.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return p.Logger
}

// hopHeaders are connection-specific and must not be forwarded by proxies.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}

// copyHeader copies header values from src to dst, adding to any existing
// values with the same header name.  If keys is not empty, only those header
// keys will be copied.
func copyHeader(dst, src http.Header, keys ...string) {
	if len(keys) == 0 {
		for k := range src {
			keys = append(keys, k)
		}
	}
	for _, key := range keys {
		k := http.CanonicalHeaderKey(key)
		for _, v := range src[k] {
			dst.Add(k, v)
		}
	}
}
