package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/market-gateway/internal/dispatch"
	"github.com/rickgao/market-gateway/internal/live"
	"github.com/rickgao/market-gateway/internal/registry"
	"github.com/rickgao/market-gateway/internal/snapshot"
	"github.com/rickgao/market-gateway/internal/store"
)

// Config holds HTTP server settings.
type Config struct {
	Port            int
	InstanceID      string
	ShutdownTimeout time.Duration // default: 10s
}

// Server is the gateway's HTTP front end.
type Server struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	registry   registry.Registry
	cache      *store.Store
	channel    *live.Channel
	snap       *snapshot.Snapshot
	logger     *slog.Logger

	httpServer *http.Server
	startedAt  time.Time
}

// New creates a Server. channel and snap may be nil when the live layer is
// disabled.
func New(cfg Config, d *dispatch.Dispatcher, reg registry.Registry, cache *store.Store, channel *live.Channel, snap *snapshot.Snapshot, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		registry:   reg,
		cache:      cache,
		channel:    channel,
		snap:       snap,
		logger:     logger,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)

	mux.HandleFunc("GET /api/v1/assets", s.handleTopAssets)
	mux.HandleFunc("GET /api/v1/assets/{id}", s.handleAsset)
	mux.HandleFunc("GET /api/v1/assets/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/search", s.handleSearch)

	mux.HandleFunc("GET /api/v1/providers", s.handleListProviders)
	mux.HandleFunc("POST /api/v1/providers", s.handleAddProvider)
	mux.HandleFunc("POST /api/v1/providers/reset", s.handleResetProviders)
	mux.HandleFunc("GET /api/v1/providers/{id}", s.handleGetProvider)
	mux.HandleFunc("PUT /api/v1/providers/{id}", s.handleUpdateProvider)
	mux.HandleFunc("DELETE /api/v1/providers/{id}", s.handleDeleteProvider)
	mux.HandleFunc("POST /api/v1/providers/{id}/toggle", s.handleToggleProvider)
	mux.HandleFunc("PUT /api/v1/providers/{id}/credential", s.handleSetCredential)

	return s.logRequests(mux)
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = time.Now()

	go func() {
		s.logger.Info("http server started", "port", s.cfg.Port)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// logRequests logs one line per request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
