// Package server exposes the backtest service over HTTP.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/service"
	"go.uber.org/zap"
)

// Server serves the strategy and backtest API.
type Server struct {
	service *service.BacktestService
	schema  func() (string, error)
	logger  *logger.Logger
	router  *mux.Router

	httpServer *http.Server
	listener   net.Listener
}

// NewServer builds the router. schema returns the engine config JSON schema.
func NewServer(svc *service.BacktestService, schema func() (string, error), l *logger.Logger) *Server {
	if l == nil {
		l = logger.NewNopLogger()
	}

	s := &Server{
		service: svc,
		schema:  schema,
		logger:  l,
		router:  mux.NewRouter(),
	}

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/engine/schema", s.handleEngineSchema).Methods(http.MethodGet)

	api.HandleFunc("/strategies/types", s.handleStrategyTypes).Methods(http.MethodGet)
	api.HandleFunc("/strategies", s.handleListStrategies).Methods(http.MethodGet)
	api.HandleFunc("/strategies", s.handleCreateStrategy).Methods(http.MethodPost)
	api.HandleFunc("/strategies/{id}", s.handleGetStrategy).Methods(http.MethodGet)
	api.HandleFunc("/strategies/{id}", s.handleUpdateStrategy).Methods(http.MethodPut)
	api.HandleFunc("/strategies/{id}", s.handleDeleteStrategy).Methods(http.MethodDelete)

	api.HandleFunc("/backtests", s.handleListBacktests).Methods(http.MethodGet)
	api.HandleFunc("/backtests", s.handleRunBacktest).Methods(http.MethodPost)
	api.HandleFunc("/backtests/{id}", s.handleGetBacktest).Methods(http.MethodGet)

	s.router.Use(s.logRequests)

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on address and serves in the background.
// An empty address or ":0" picks a free port.
func (s *Server) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("HTTP server listening", zap.String("address", listener.Addr().String()))

	return nil
}

// Stop shuts the server down, waiting up to five seconds for open requests.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// Address returns the address the server is listening on.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// BaseURL returns the base URL for the server.
func (s *Server) BaseURL() string {
	return "http://" + s.Address()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)),
		)
	})
}
