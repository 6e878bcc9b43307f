// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

// Package caddy provides imageedge as a Caddy module.
package caddy

import (
	"fmt"
	"net/http"
	"time"

	caddy "github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig/httpcaddyfile"
	"github.com/caddyserver/caddy/v2/modules/caddyhttp"
	"go.uber.org/zap"
	"willnorris.com/go/imageedge"
)

func init() {
	caddy.RegisterModule(ImageEdge{})
	httpcaddyfile.RegisterHandlerDirective("imageedge", parseCaddyfile)
}

// ImageEdge serves images under /image through Cloudinary and forwards all
// other requests to the origin.
type ImageEdge struct {
	Origin          string         `json:"origin,omitempty"`
	WorkerHost      string         `json:"worker_host,omitempty"`
	CloudinaryCloud string         `json:"cloudinary_cloud,omitempty"`
	CDNBase         string         `json:"cdn_base,omitempty"`
	OriginUpstream  string         `json:"origin_upstream,omitempty"`
	Timeout         caddy.Duration `json:"timeout,omitempty"`

	logger *zap.Logger
	proxy  *imageedge.Proxy
}

// interface guard
var (
	_ caddy.Provisioner           = (*ImageEdge)(nil)
	_ caddy.Validator             = (*ImageEdge)(nil)
	_ caddyhttp.MiddlewareHandler = (*ImageEdge)(nil)
)

// CaddyModule returns the Caddy module information.
func (ImageEdge) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID:  "http.handlers.imageedge",
		New: func() caddy.Module { return new(ImageEdge) },
	}
}

func (e *ImageEdge) Provision(ctx caddy.Context) error {
	e.logger = ctx.Logger()
	e.proxy = imageedge.NewProxy(nil, e.logger.Sugar())
	e.proxy.Origin = e.Origin
	e.proxy.WorkerHost = e.WorkerHost
	e.proxy.Cloud = e.CloudinaryCloud
	if e.CDNBase != "" {
		e.proxy.CDNBase = e.CDNBase
	}
	e.proxy.Timeout = time.Duration(e.Timeout)
	u, err := imageedge.ParseOriginUpstream(e.OriginUpstream)
	if err != nil {
		return fmt.Errorf("imageedge: origin_upstream: %w", err)
	}
	e.proxy.OriginUpstream = u
	return nil
}

func (e *ImageEdge) Validate() error {
	if e.Origin == "" {
		return fmt.Errorf("imageedge: origin is required")
	}
	if e.CloudinaryCloud == "" {
		return fmt.Errorf("imageedge: cloudinary_cloud is required")
	}
	if _, err := imageedge.ParseOriginUpstream(e.OriginUpstream); err != nil {
		return fmt.Errorf("imageedge: origin_upstream: %w", err)
	}
	return nil
}

func (e *ImageEdge) ServeHTTP(w http.ResponseWriter, r *http.Request, _ caddyhttp.Handler) error {
	e.proxy.ServeHTTP(w, r)
	return nil
}

// parseCaddyfile parses a block of the form:
//
//	imageedge {
//		origin           https://www.example.com
//		worker_host      http://localhost:8787
//		cloudinary_cloud demo
//		cdn_base         res.cloudinary.com
//		origin_upstream  http://10.0.0.1:8080
//		timeout          30s
//	}
func parseCaddyfile(h httpcaddyfile.Helper) (caddyhttp.MiddlewareHandler, error) {
	e := new(ImageEdge)

	h.Next() // consume the directive name
	for nesting := h.Nesting(); h.NextBlock(nesting); {
		key := h.Val()
		if !h.NextArg() {
			return nil, h.ArgErr()
		}
		switch key {
		case "origin":
			e.Origin = h.Val()
		case "worker_host":
			e.WorkerHost = h.Val()
		case "cloudinary_cloud":
			e.CloudinaryCloud = h.Val()
		case "cdn_base":
			e.CDNBase = h.Val()
		case "origin_upstream":
			e.OriginUpstream = h.Val()
		case "timeout":
			d, err := caddy.ParseDuration(h.Val())
			if err != nil {
				return nil, h.Errf("invalid timeout %q: %v", h.Val(), err)
			}
			e.Timeout = caddy.Duration(d)
		default:
			return nil, h.Errf("unrecognized imageedge option %q", key)
		}
	}
	return e, nil
}
