package rest

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/efficomp/hpknn/pkg/api/rest/middleware"
	"github.com/efficomp/hpknn/pkg/jobs"
	"github.com/efficomp/hpknn/pkg/observability"
	"github.com/efficomp/hpknn/pkg/resultcache"
)

// Config holds the admin REST server configuration.
type Config struct {
	Host        string
	Port        int
	CORSEnabled bool
	CORSOrigins []string
	Auth        middleware.AuthConfig
	RateLimit   middleware.RateLimitConfig
}

// Server is the admin REST server: job inspection, run triggering, cached
// result lookup and a Prometheus /metrics endpoint. It holds no sweep
// state of its own; it is a thin HTTP front onto a jobs.Registry and
// resultcache.LRUCache built by cmd/hpknn.
type Server struct {
	config     Config
	handler    *Handler
	httpServer *http.Server
	mux        *http.ServeMux
	metrics    *observability.Metrics
}

// NewServer creates the admin REST server. metrics may be nil, disabling
// the request-count/duration/error recorders.
func NewServer(config Config, registry *jobs.Registry, cache *resultcache.LRUCache, run Runner, metrics *observability.Metrics) *Server {
	server := &Server{
		config:  config,
		handler: NewHandler(registry, cache, run, metrics),
		mux:     http.NewServeMux(),
		metrics: metrics,
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.withMiddleware(server.mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.handler.HealthCheck)
	s.mux.Handle("/metrics", Metrics())
	s.mux.HandleFunc("/jobs", s.handler.ListJobs)
	s.mux.HandleFunc("/jobs/", s.routeJob)
	s.mux.HandleFunc("/runs/", s.handler.GetResult)
}

// routeJob dispatches /jobs/{name} and /jobs/{name}/run.
func (s *Server) routeJob(w http.ResponseWriter, r *http.Request) {
	if len(r.URL.Path) > len("/run") && r.URL.Path[len(r.URL.Path)-len("/run"):] == "/run" {
		s.handler.RunJob(w, r)
		return
	}
	s.handler.GetJob(w, r)
}

// withMiddleware wraps the mux in the metrics/logging/CORS/rate-limit/auth
// chain, innermost first: auth runs first on each request, metrics last.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = metricsMiddleware(s.metrics)(handler)
	handler = loggingMiddleware(handler)

	if s.config.CORSEnabled {
		handler = corsMiddleware(s.config.CORSOrigins)(handler)
	}

	rateLimiter := middleware.NewRateLimiter(s.config.RateLimit)
	handler = middleware.RateLimitMiddleware(rateLimiter)(handler)
	handler = middleware.AuthMiddleware(s.config.Auth)(handler)

	return handler
}

// Start starts the admin REST server; it blocks until Stop closes it.
func (s *Server) Start() error {
	log.Printf("admin REST server listening on %s:%d", s.config.Host, s.config.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Println("shutting down admin REST server...")
	return s.httpServer.Shutdown(ctx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

// metricsMiddleware records each request's method, status and duration,
// plus a separate error counter for 4xx/5xx responses. metrics may be nil.
func metricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			status := fmt.Sprintf("%d", wrapped.statusCode)
			metrics.RecordRequest(r.Method, status, time.Since(start))
			if wrapped.statusCode >= 400 {
				metrics.RecordError(r.Method, status)
			}
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				allowed = true
				origin = "*"
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
