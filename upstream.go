// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

package imageedge

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultCDNBase is the host of the Cloudinary delivery API.
const DefaultCDNBase = "res.cloudinary.com"

// UpstreamURL builds the Cloudinary fetch URL that applies directives to the
// image at src:
//
//	https://<base>/<cloud>/image/fetch/<directives>/<src>
//
// The f and poster query parameters are removed from src first.  All other
// query parameters are kept byte for byte and in their original order.
// src is embedded as serialized, without additional escaping.
func UpstreamURL(base, cloud string, directives []string, src *url.URL) string {
	if base == "" {
		base = DefaultCDNBase
	}
	u := *src
	u.RawQuery = stripControlParams(src.RawQuery)
	u.ForceQuery = false

	return fmt.Sprintf("https://%s/%s/image/fetch/%s/%s",
		base, cloud, strings.Join(directives, ","), u.String())
}

// stripControlParams removes every paramFormat and paramPoster pair from
// the raw query string q.  Empty pairs are dropped; everything else is
// left as it was.
func stripControlParams(q string) string {
	if q == "" {
		return ""
	}

	var kept []string
	for _, pair := range strings.Split(q, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if key == paramFormat || key == paramPoster {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// ParseOriginUpstream parses s as the base URL that origin requests are sent
// to.  s must be an absolute http or https URL with a host.  An empty s
// returns a nil URL.
func ParseOriginUpstream(s string) (*url.URL, error) {
	if s == "" {
		return nil, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("error parsing origin upstream: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("origin upstream must be an absolute http or https URL: %q", s)
	}
	return u, nil
}
