// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAdminHandler(t *testing.T) {
	h := newAdminHandler()

	tests := []struct {
		method, path string
		code         int
	}{
		{"GET", "/health-check", http.StatusOK},
		{"HEAD", "/health-check", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"POST", "/metrics", http.StatusMethodNotAllowed},
		{"GET", "/image/photo.jpg", http.StatusNotFound},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "http://localhost"+tt.path, nil)
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)
		if got, want := resp.Code, tt.code; got != want {
			t.Errorf("%s %s returned status %d, want %d", tt.method, tt.path, got, want)
		}
	}
}
