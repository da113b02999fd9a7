package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/avolkov/shortlink/internal/config"
	"github.com/avolkov/shortlink/internal/httpx"
	"github.com/avolkov/shortlink/internal/links"
	"github.com/avolkov/shortlink/internal/users"
)

// Server represents the HTTP server with all dependencies.
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	links   *links.Handler
	users   *users.Handler
	auth    users.Service
	sweeper *links.Sweeper
	server  *http.Server
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *slog.Logger, linkHandler *links.Handler, userHandler *users.Handler, auth users.Service, sweeper *links.Sweeper) *Server {
	return &Server{
		config:  cfg,
		logger:  logger,
		links:   linkHandler,
		users:   userHandler,
		auth:    auth,
		sweeper: sweeper,
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	mux := s.setupRoutes()
	handler := s.applyMiddleware(mux)
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	// Listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	// Listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", "signal", sig.String())

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		// Attempt graceful shutdown
		if err := s.server.Shutdown(ctx); err != nil {
			// Force close if graceful shutdown fails
			if closeErr := s.server.Close(); closeErr != nil {
				return fmt.Errorf("failed to close server: %w", closeErr)
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		s.logger.Info("server stopped gracefully")
		return nil
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	requireAuth := users.RequireAuth(s.auth)
	optionalAuth := users.OptionalAuth(s.auth)

	// Health check endpoint
	mux.HandleFunc("GET /x/health", s.healthCheckHandler)

	// Accounts
	mux.HandleFunc("POST /register", s.users.Register)
	mux.HandleFunc("POST /token", s.users.Token)

	// Links. Creation works for guests too, so auth is optional there.
	mux.Handle("POST /links", optionalAuth(http.HandlerFunc(s.links.CreateLink)))
	mux.Handle("GET /links", requireAuth(http.HandlerFunc(s.links.ListMine)))
	mux.HandleFunc("GET /links/search", s.links.Search)
	mux.HandleFunc("GET /links/{code}", s.links.Redirect)
	mux.HandleFunc("GET /links/{code}/stats", s.links.Stats)
	mux.Handle("DELETE /links/{code}", requireAuth(http.HandlerFunc(s.links.DeleteLink)))
	mux.Handle("PUT /links/{code}", requireAuth(http.HandlerFunc(s.links.ReassignCode)))

	return mux
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger), // Outermost: catch panics
		httpx.RequestID,          // Add request ID
		httpx.Logger(s.logger),   // Log requests
		httpx.CORS(nil),          // CORS headers (allow all in dev)
		s.sweeper.Middleware(),   // Reap idle guest links before serving
	)(handler)
}

// healthCheckHandler handles health check requests.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
