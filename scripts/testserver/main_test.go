package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRoutes(t *testing.T) {
	srv := httptest.NewServer(newMux(0, 10*time.Millisecond))
	defer srv.Close()

	tests := []struct {
		path string
		want int
	}{
		{"/ok", http.StatusOK},
		{"/fail", http.StatusInternalServerError},
		{"/slow", http.StatusOK},
		{"/flaky", http.StatusOK},
		{"/status/404", http.StatusNotFound},
		{"/status/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
			}
		})
	}
}

func TestFlakyAlwaysFailsAtFullRate(t *testing.T) {
	srv := httptest.NewServer(newMux(1, time.Millisecond))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/flaky", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /flaky: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
