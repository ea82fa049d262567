package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/quantmesh/edgecore/internal/application"
	"github.com/quantmesh/edgecore/internal/telemetry"
)

// Server exposes the decision pipeline over HTTP.
type Server struct {
	router   *mux.Router
	server   *http.Server
	pipeline *application.Pipeline
	metrics  *telemetry.Metrics
	config   Config
}

// Config holds server settings.
type Config struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Staleness    time.Duration // snapshot age beyond which decisions are refused
}

// NewServer creates the HTTP server. metrics may be nil; the /metrics
// endpoint is then omitted.
func NewServer(config Config, pipeline *application.Pipeline, metrics *telemetry.Metrics) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		pipeline: pipeline,
		metrics:  metrics,
		config:   config,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(jsonContentTypeMiddleware)
	api.HandleFunc("/conviction/{symbol}", s.handleConviction).Methods("GET")
	api.HandleFunc("/risk", s.handleRisk).Methods("POST")
	api.HandleFunc("/plan", s.handlePlan).Methods("POST")

	s.router.NotFoundHandler = http.HandlerFunc(handleNotFound)
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Info().Str("addr", s.config.ListenAddr).Msg("http server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree, used by tests via httptest.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// responseWrapper captures status codes for the request log.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
