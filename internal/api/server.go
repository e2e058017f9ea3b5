package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tchin/transit-timing-variation/internal/auth"
	"github.com/tchin/transit-timing-variation/internal/cache"
	"github.com/tchin/transit-timing-variation/internal/health"
	"github.com/tchin/transit-timing-variation/internal/httputil"
	"github.com/tchin/transit-timing-variation/internal/metrics"
	"github.com/tchin/transit-timing-variation/internal/runner"
	"github.com/tchin/transit-timing-variation/internal/store"
	"github.com/tchin/transit-timing-variation/internal/stream"
	"github.com/tchin/transit-timing-variation/internal/system"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr        string
	MaxTransits int           // upper bound on transits per request (default: 200)
	RunTimeout  time.Duration // wall-clock limit of a synchronous run (default: 2m)
	TrustProxy  bool          // log the forwarded client address
	Auth        auth.Config
}

// Deps are the components the handlers read from and write to.
type Deps struct {
	Systems  *system.Store
	Reports  *cache.ReportCache
	Runs     *store.Store
	Recorder *Recorder
	Stream   *stream.Handler
	Base     runner.Scenario
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.MaxTransits <= 0 {
		cfg.MaxTransits = 200
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}

	// Register routes.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", indexHandler())
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Runs.Ping))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/systems", systemsHandler(deps.Systems))
	mux.HandleFunc("POST /api/v1/simulations", simulateHandler(logger, deps, cfg))
	mux.HandleFunc("GET /api/v1/simulations", listHandler(logger, deps.Runs))
	mux.HandleFunc("GET /api/v1/simulations/{id}", reportHandler(logger, deps))
	mux.HandleFunc("GET /api/v1/simulations/{id}/lightcurve.png", plotHandler(logger, deps, plotLightCurve))
	mux.HandleFunc("GET /api/v1/simulations/{id}/ttv.png", plotHandler(logger, deps, plotVariations))
	mux.HandleFunc("GET /api/v1/cache/stats", cacheStatsHandler(deps.Reports))
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/simulations", deps.Stream.HandleSimulation)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the logging middleware.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the connection.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
