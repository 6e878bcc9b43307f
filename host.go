// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

package imageedge

import "strings"

// NormalizeInbound rewrites rawURL so that it is expressed in terms of the
// public origin.  If workerHost is empty, rawURL is returned unchanged.
//
// This is a plain string substitution over the whole URL, not a swap of the
// host component: an occurrence of workerHost inside the path or a query
// value is rewritten as well.
func NormalizeInbound(rawURL, origin, workerHost string) string {
	if workerHost == "" {
		return rawURL
	}
	return strings.ReplaceAll(rawURL, workerHost, origin)
}

// DenormalizeForUpstream is the inverse of NormalizeInbound.  It is applied
// to the URL embedded in a CDN fetch URL, so that during local development
// the CDN fetches the source image back through the worker host.
func DenormalizeForUpstream(rawURL, origin, workerHost string) string {
	if workerHost == "" {
		return rawURL
	}
	return strings.ReplaceAll(rawURL, origin, workerHost)
}
