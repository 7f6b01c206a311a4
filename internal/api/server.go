// Package api exposes the conversational backend over HTTP: the three chat
// variants as chunked streaming endpoints, the history read and delete
// endpoints, and the health probes.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/huak95/mongkol-backend-rag/internal/chat"
)

// Config assembles a Server.
type Config struct {
	Addr        string
	Logger      *slog.Logger
	Service     ChatService
	History     HistoryStore
	DB          Pinger
	Defaults    ChatDefaults
	CORSOrigins []string
	RateBurst   int
	TrustProxy  bool
}

// Server is the HTTP front of the backend.
type Server struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger
}

// NewServer wires routes and the middleware stack. Outermost first:
// recovery, request id, logging, CORS, rate limiting.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("chat service is required")
	}
	if cfg.History == nil {
		return nil, errors.New("history store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}

	chats := &chatHandler{service: cfg.Service, defaults: cfg.Defaults, logger: cfg.Logger}
	histories := &historyHandler{store: cfg.History, logger: cfg.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/default", chats.handleVariant(chat.VariantDefault))
	mux.HandleFunc("POST /chat/rag", chats.handleVariant(chat.VariantRAG))
	mux.HandleFunc("POST /chat/memory", chats.handleMemory)
	mux.HandleFunc("GET /view_history", histories.handleView)
	mux.HandleFunc("DELETE /delete_history", histories.handleDelete)
	mux.HandleFunc("GET /list_sessions", histories.handleList)

	// Probes bypass CORS and rate limiting.
	probes := http.NewServeMux()
	probes.HandleFunc("GET /health", handleHealth(cfg.Logger))
	if cfg.DB != nil {
		probes.HandleFunc("GET /ready", handleReady(cfg.DB, cfg.Logger))
	}

	limiter := newRateLimiter(float64(cfg.RateBurst)/2, cfg.RateBurst, cfg.TrustProxy)
	app := chain(mux,
		corsMiddleware(cfg.CORSOrigins),
		rateLimitMiddleware(limiter, cfg.Logger),
	)

	root := http.NewServeMux()
	root.Handle("/health", probes)
	root.Handle("/ready", probes)
	root.Handle("/", app)

	handler := chain(root,
		recoveryMiddleware(cfg.Logger),
		requestIDMiddleware,
		loggingMiddleware(cfg.Logger),
	)

	return &Server{addr: cfg.Addr, handler: handler, logger: cfg.Logger}, nil
}

// Handler exposes the full middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully. The write
// timeout is generous because chat responses stream for as long as the
// model keeps producing tokens.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
