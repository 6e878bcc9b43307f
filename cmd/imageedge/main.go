// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

// imageedge starts an HTTP server that serves images under /image through
// the Cloudinary fetch API and forwards everything else to the origin.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"willnorris.com/go/imageedge"
	"willnorris.com/go/imageedge/internal/telemetry"
	"willnorris.com/go/imageedge/third_party/envy"
)

var addr = flag.String("addr", "localhost:8080", "TCP address to listen on")
var metricsAddr = flag.String("metrics-addr", "localhost:9090", "TCP address serving /metrics and /health-check; empty to disable")
var origin = flag.String("origin", "", "public origin that image and pass-through requests are expressed in, e.g. https://www.example.com")
var workerHost = flag.String("worker-host", "", "optional alias of origin used in development; occurrences are rewritten to origin")
var cloudinaryCloud = flag.String("cloudinary-cloud", "", "Cloudinary cloud name")
var cdnBase = flag.String("cdn-base", imageedge.DefaultCDNBase, "host of the CDN delivery API")
var originUpstream = flag.String("origin-upstream", "", "base URL origin requests are sent to, if different from origin")
var timeout = flag.Duration("timeout", 0, "time limit for requests served by this proxy")
var verbose = flag.Bool("verbose", false, "print verbose logging messages")
var traceExporter = flag.String("trace-exporter", "none", "span exporter: none, stdout or otlp")
var otlpEndpoint = flag.String("otlp-endpoint", "", "OTLP/HTTP endpoint for the otlp trace exporter")
var otlpInsecure = flag.Bool("otlp-insecure", false, "use plain HTTP for the otlp trace exporter")

func buildLogger() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	if *verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	plainLogger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return plainLogger.Sugar()
}

func main() {
	envy.Parse("IMAGEEDGE", "origin", "worker-host", "cloudinary-cloud")
	flag.Parse()

	logger := buildLogger()
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatalw("imageedge failed", "error", err)
	}
}

func run(logger *zap.SugaredLogger) error {
	if *origin == "" {
		return errors.New("origin must be set")
	}
	if *cloudinaryCloud == "" {
		return errors.New("cloudinary-cloud must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "imageedge",
		Exporter:     *traceExporter,
		OTLPEndpoint: *otlpEndpoint,
		OTLPInsecure: *otlpInsecure,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warnw("tracer shutdown failed", "error", err)
		}
	}()

	p := imageedge.NewProxy(nil, logger)
	p.Origin = *origin
	p.WorkerHost = *workerHost
	p.Cloud = *cloudinaryCloud
	p.CDNBase = *cdnBase
	p.Timeout = *timeout
	if p.OriginUpstream, err = imageedge.ParseOriginUpstream(*originUpstream); err != nil {
		return err
	}

	servers := []*http.Server{{
		Addr:    *addr,
		Handler: newRouter(p, logger),

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}}
	if *metricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:              *metricsAddr,
			Handler:           newAdminHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	errc := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			logger.Infow("imageedge listening", "addr", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("listen on %s: %w", s.Addr, err)
			}
		}(s)
	}

	select {
	case err = <-errc:
	case <-ctx.Done():
		logger.Infow("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range servers {
		if serr := s.Shutdown(shutdownCtx); serr != nil {
			logger.Warnw("graceful shutdown failed", "addr", s.Addr, "error", serr)
		}
	}
	return err
}

// newRouter returns the handler for edge traffic.  Paths are neither
// cleaned nor decoded so they reach the origin and the CDN as sent.
func newRouter(p *imageedge.Proxy, logger *zap.SugaredLogger) http.Handler {
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	r.PathPrefix("/").Handler(imageedge.WithLogging(p, logger))
	return r
}

// newAdminHandler serves metrics and health checks.
func newAdminHandler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health-check", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "OK")
	}).Methods(http.MethodGet, http.MethodHead)
	return r
}
