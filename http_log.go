// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

package imageedge

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

type statusCapturingWriter struct {
	http.ResponseWriter
	StatusCode int
	Bytes      int64
}

func (scw *statusCapturingWriter) WriteHeader(status int) {
	scw.StatusCode = status
	scw.ResponseWriter.WriteHeader(status)
}

func (scw *statusCapturingWriter) Write(b []byte) (int, error) {
	if scw.StatusCode == 0 {
		scw.StatusCode = http.StatusOK
	}
	n, err := scw.ResponseWriter.Write(b)
	scw.Bytes += int64(n)
	return n, err
}

// WithLogging wraps handler with an access log written to logger.
func WithLogging(handler http.Handler, logger *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		scw := &statusCapturingWriter{ResponseWriter: w}
		start := time.Now()

		handler.ServeHTTP(scw, req)

		logger.Infow("responded",
			"method", req.Method,
			"url", req.URL.String(),
			"status", scw.StatusCode,
			"bytes", scw.Bytes,
			"duration", time.Since(start),
		)
	})
}
