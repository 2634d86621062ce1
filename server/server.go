package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/credsim/metrics"
	"github.com/sig-0/credsim/server/config"
	"github.com/sig-0/credsim/simulate"
	"github.com/sig-0/credsim/storage"
)

// RoutesFn is a callback that receives a router for registering routes
type RoutesFn func(router chi.Router)

// Consulter runs credit consultations
type Consulter interface {
	Consult(ctx context.Context, rawCPF string) (*simulate.Result, error)
}

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type Server struct {
	logger  *slog.Logger
	config  *config.Config
	metrics *metrics.Manager

	storage   storage.Storage
	consulter Consulter

	mux *chi.Mux
	now func() time.Time
}

// New creates a new server instance
func New(storage storage.Storage, consulter Consulter, opts ...Option) (*Server, error) {
	s := &Server{
		logger:    noopLogger,
		storage:   storage,
		consulter: consulter,
		config:    config.DefaultConfig(),
		mux:       chi.NewMux(),
		now:       time.Now,
	}

	// Apply the options
	for _, opt := range opts {
		opt(s)
	}

	// Validate the configuration
	if err := config.ValidateConfig(s.config); err != nil {
		return nil, fmt.Errorf("invalid configuration, %w", err)
	}

	// Set up the CORS middleware
	if s.config.CORSConfig != nil {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins: s.config.CORSConfig.AllowedOrigins,
			AllowedMethods: s.config.CORSConfig.AllowedMethods,
			AllowedHeaders: s.config.CORSConfig.AllowedHeaders,
		})

		s.mux.Use(corsMiddleware.Handler)
	}

	s.mux.Use(httplog.RequestLogger(s.logger, &httplog.Options{
		Level:         slog.LevelInfo,     // TODO expose this in the config
		Schema:        httplog.SchemaOTEL, // TODO expose this in the config
		RecoverPanics: true,
		Skip: func(r *http.Request, respStatus int) bool {
			return respStatus == 404 || respStatus == 405 || r.URL.Path == "/health"
		},
	}))

	if s.metrics != nil {
		s.mux.Use(s.recordRequests)
		s.mux.Handle("/metrics", s.metrics.Handler())
	}

	// Register the health check handler
	s.mux.Get("/health", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})

	// Register the API docs
	s.mux.Get("/openapi.yaml", s.OpenAPI)
	s.mux.Get("/docs", s.Redoc)

	// Register the API, both at the root and under /api
	s.apiRoutes(s.mux)
	s.mux.Route("/api", s.apiRoutes)

	return s, nil
}

// apiRoutes registers the consultation API on the router
func (s *Server) apiRoutes(r chi.Router) {
	r.Post("/simulacao/consultar", s.Consult)
	r.Get("/simulacao/historico", s.History)
	r.Get("/status", s.Status)
}

// recordRequests records every served request with its route pattern
func (s *Server) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			start = time.Now()
			ww    = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		s.metrics.RecordHTTPRequest(route, r.Method, status, time.Since(start))
	})
}

// Routes calls fn with the server mux so callers can add endpoints
func (s *Server) Routes(fn RoutesFn) {
	if fn == nil {
		return
	}

	fn(s.mux)
}

// Handler returns the server's root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve serves the credsim service
func (s *Server) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.mux,
		ReadHeaderTimeout: 60 * time.Second,
	}

	group, gCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer s.logger.Info("server shut down")

		ln, err := net.Listen("tcp", server.Addr)
		if err != nil {
			return err
		}

		s.logger.Info(
			fmt.Sprintf(
				"server started at %s",
				ln.Addr().String(),
			),
		)

		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	group.Go(func() error {
		<-gCtx.Done()

		s.logger.Info("server to be shutdown")

		wsCtx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()

		return server.Shutdown(wsCtx)
	})

	return group.Wait()
}
