// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

package imageedge

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Values of the route label of requestsTotal.
const (
	routeImage       = "image"
	routeLoopback    = "loopback"
	routePassthrough = "passthrough"
	routeInvalid     = "invalid"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "imageedge_requests_total",
		Help: "Number of requests handled, by route taken.",
	}, []string{"route"})
	directiveRuleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "imageedge_directive_rule_total",
		Help: "Number of image rewrites, by the directive rule that matched.",
	}, []string{"rule"})
	upstreamFetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "imageedge_upstream_fetch_errors",
		Help: "Total upstream fetch failures.",
	})
	httpRequestsResponseTime = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "http",
		Name:      "response_time_seconds",
		Help:      "Request response times",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(directiveRuleTotal)
	prometheus.MustRegister(upstreamFetchErrors)
	prometheus.MustRegister(httpRequestsResponseTime)
}
