// Command testserver is a local target for manual volley runs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

func main() {
	port := flag.Int("port", 8080, "Listening port")
	flakyRate := flag.Float64("flaky-rate", 0.3, "Failure probability for /flaky")
	slowDelay := flag.Duration("slow-delay", 2*time.Second, "Delay for /slow")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("test server listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, newMux(*flakyRate, *slowDelay)))
}

func newMux(flakyRate float64, slowDelay time.Duration) *http.ServeMux {
	var served int64
	mux := http.NewServeMux()

	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"ok": true, "served": atomic.AddInt64(&served, 1)})
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "forced failure"})
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(slowDelay):
			respondJSON(w, http.StatusOK, map[string]any{"ok": true, "delay": slowDelay.String()})
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float64() < flakyRate {
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "try again"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/status/"))
		if err != nil || code < 100 || code > 599 {
			respondJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid status code"})
			return
		}
		w.WriteHeader(code)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		respondJSON(w, http.StatusOK, map[string]any{
			"method":        r.Method,
			"authorization": r.Header.Get("Authorization"),
			"content_type":  r.Header.Get("Content-Type"),
			"body":          string(body),
		})
	})
	return mux
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
