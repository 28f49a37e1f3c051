// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"insurance-assistant/internal/common/config"
	"insurance-assistant/internal/common/logger"
)

const defaultShutdownTimeout = 5 * time.Second

// NewRouter builds the API mux and applies the middleware chain: request
// logging outermost, then security headers, then rate limiting.
func NewRouter(h *Handler, cfg config.ServerConfig, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Chat(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.DirectSearch(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.GetSession(w, r)
		case http.MethodDelete:
			h.DeleteSession(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/schema", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.GetSchema(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	rateLimiter := NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)

	handler := RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)
	handler = requestLoggingMiddleware(handler, log)
	return handler
}

// NewOpsHandler serves the liveness, readiness and metrics endpoints for the
// ops listener. ready, which may be nil, reports why the service cannot take
// traffic yet.
func NewOpsHandler(ready func() error) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil {
			if err := ready(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"reason": err.Error(),
				})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Start serves handler on addr until ctx is cancelled. It returns the bound
// address, which differs from addr when the configured port is 0.
func Start(ctx context.Context, addr string, cfg config.ServerConfig, handler http.Handler, log logger.Logger) (string, error) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Millisecond,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", addr, err)
	}
	bound := listener.Addr().String()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", map[string]interface{}{
				"addr":  bound,
				"error": err.Error(),
			})
		}
	}()

	go func() {
		<-ctx.Done()
		timeout := time.Duration(cfg.ShutdownTimeout) * time.Millisecond
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", map[string]interface{}{
				"addr":  bound,
				"error": err.Error(),
			})
		}
	}()

	log.Info("server listening", map[string]interface{}{"addr": bound})
	return bound, nil
}
