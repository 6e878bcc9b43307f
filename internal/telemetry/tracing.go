// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry installs the OpenTelemetry tracer provider used for the
// spans imageedge records around rewrite decisions and upstream fetches.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// TraceConfig selects where spans are sent.
type TraceConfig struct {
	ServiceName string

	// Exporter is "none" (or empty), "stdout" or "otlp".
	Exporter string

	// OTLPEndpoint is the host:port of an OTLP/HTTP collector.  Required
	// by the otlp exporter.
	OTLPEndpoint string
	OTLPInsecure bool
}

var errNoEndpoint = errors.New("otlp exporter needs an endpoint")

func noopShutdown(context.Context) error { return nil }

// SetupTracing installs the global tracer provider for cfg and returns the
// function that flushes and stops it.  W3C trace context is propagated in
// every case, so upstream requests carry the caller's trace even when no
// spans are exported here.
func SetupTracing(ctx context.Context, cfg TraceConfig, logger *zap.SugaredLogger) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	kind := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	exp, err := newExporter(ctx, kind, cfg)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		logger.Debugw("span export disabled")
		return noopShutdown, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	logger.Infow("exporting spans", "exporter", kind, "service", cfg.ServiceName)
	return tp.Shutdown, nil
}

// newExporter returns the span exporter named by kind, or nil if spans are
// not exported.
func newExporter(ctx context.Context, kind string, cfg TraceConfig) (sdktrace.SpanExporter, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		return exp, nil
	case "otlp":
		endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		if endpoint == "" {
			return nil, errNoEndpoint
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		return exp, nil
	}
	return nil, fmt.Errorf("unknown trace exporter %q", kind)
}
