// Package server assembles the HTTP + WebSocket API of the ledger: route
// registration, middleware chain, and graceful lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tempoledger/tempod/internal/domain"
	"github.com/tempoledger/tempod/internal/server/handler"
	"github.com/tempoledger/tempod/internal/server/middleware"
	"github.com/tempoledger/tempod/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit is the per-client request budget per RateWindow. Zero
	// disables rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health       *handler.HealthHandler
	Mints        *handler.MintHandler
	Accounts     *handler.AccountHandler
	Transactions *handler.TransactionHandler
	Events       *handler.EventHandler
}

// Server is the HTTP + WebSocket API server for the ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limiting, auth, logging, CORS) wired around it.
// limiter may be nil when rate limiting is disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Mint endpoints.
	mux.HandleFunc("POST /api/mints", handlers.Mints.CreateMint)
	mux.HandleFunc("GET /api/mints/{id}", handlers.Mints.GetMint)

	// Account endpoints.
	mux.HandleFunc("POST /api/accounts", handlers.Accounts.CreateAccount)
	mux.HandleFunc("GET /api/accounts/{id}", handlers.Accounts.GetAccount)
	mux.HandleFunc("GET /api/accounts/{id}/balance", handlers.Accounts.GetBalance)
	mux.HandleFunc("GET /api/accounts/{id}/pool", handlers.Accounts.GetDecayPool)
	mux.HandleFunc("GET /api/accounts/{id}/events", handlers.Events.ListEvents)

	// Transaction endpoints.
	mux.HandleFunc("POST /api/mints/{id}/mint", handlers.Transactions.MintTo)
	mux.HandleFunc("POST /api/mints/{id}/burn", handlers.Transactions.Burn)
	mux.HandleFunc("POST /api/transfers", handlers.Transactions.Transfer)
	mux.HandleFunc("POST /api/accounts/{id}/pause", handlers.Transactions.Pause)
	mux.HandleFunc("POST /api/accounts/{id}/reup", handlers.Transactions.ReUp)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
