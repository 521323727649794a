package web

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dpe-match/internal/debug"
	"github.com/dpe-match/internal/match"
	"github.com/dpe-match/internal/web/handlers"
	"github.com/dpe-match/internal/web/middleware"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Server represents the web server
type Server struct {
	config     *Config
	engine     *match.Engine
	logger     *zap.Logger
	gatherer   prometheus.Gatherer
	health     HealthCheck
	httpServer *http.Server
	router     *mux.Router
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = debug.OrNop(logger) }
}

// WithGatherer sets the registry served on /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithHealthCheck sets the check run by /healthz
func WithHealthCheck(check HealthCheck) Option {
	return func(s *Server) { s.health = check }
}

// NewServer creates a new web server instance
func NewServer(config *Config, engine *match.Engine, opts ...Option) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	server := &Server{
		config:   config,
		engine:   engine,
		logger:   zap.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         config.Addr(),
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return server
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	diagnostics := &handlers.DiagnosticsHandler{Engine: s.engine, Logger: s.logger}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/diagnostics/search", diagnostics.Search).Methods("POST")
	api.HandleFunc("/opportunities/links", diagnostics.BatchLink).Methods("POST")
	api.HandleFunc("/opportunities/{type}/{id:[0-9]+}/diagnostics", diagnostics.Link).Methods("POST")
	api.HandleFunc("/opportunities/{type}/{id:[0-9]+}/diagnostics", diagnostics.Links).Methods("GET")

	s.router.HandleFunc("/healthz", s.healthz).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestLogging(s.logger))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM is received, then
// shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.logger.Info("server stopped")
	return nil
}
