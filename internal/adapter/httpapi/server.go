// Package httpapi exposes the answer engine over HTTP: the streaming
// /query endpoint, the static UI, health, metrics, WebSocket and MCP mounts.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"thesearch/internal/domain"
	"thesearch/internal/infra/config"
	"thesearch/internal/infra/middleware"
	"thesearch/internal/usecase/rag"
)

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Engine   *rag.Engine
	Store    domain.ResultStore // nil disables replay
	StoreTTL time.Duration
	Metrics  *Metrics
	MCP      http.Handler // mounted at cfg.MCP.Path when non-nil
	Client   string       // LLM client name, reported by /healthz
	Logger   *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg      config.ServerConfig
	engine   *rag.Engine
	store    domain.ResultStore
	storeTTL time.Duration
	metrics  *Metrics
	mcp      http.Handler
	client   string
	slots    *semaphore.Weighted
	logger   *slog.Logger

	httpSrv   *http.Server
	boundAddr atomic.Value // string
}

// NewServer creates a server. Handler concurrency is bounded by
// cfg.MaxConcurrency; excess requests wait for a slot.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 16
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		engine:   deps.Engine,
		store:    deps.Store,
		storeTTL: deps.StoreTTL,
		metrics:  deps.Metrics,
		mcp:      deps.MCP,
		client:   deps.Client,
		slots:    semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		logger:   deps.Logger,
	}
}

// Handler builds the routed handler wrapped in the middleware chain. ctx
// bounds background work owned by the middleware (rate limiter cleanup).
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /{$}", http.RedirectHandler("/ui/index.html", http.StatusTemporaryRedirect))
	if s.cfg.UIDir != "" {
		mux.Handle("GET /ui/", http.StripPrefix("/ui/", http.FileServer(http.Dir(s.cfg.UIDir))))
	}
	if s.cfg.Metrics {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.cfg.WebSocket {
		mux.HandleFunc("GET /ws", s.handleWebSocket)
	}
	if s.mcp != nil && s.cfg.MCP.Path != "" {
		mux.Handle(s.cfg.MCP.Path, s.limited(s.mcp))
	}

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID(s.logger),
		middleware.SecurityHeaders,
	}
	if s.cfg.RateLimit.Enabled {
		mws = append(mws, middleware.RateLimit(ctx, s.cfg.RateLimit))
	}
	return middleware.Chain(mux, mws...)
}

// limited runs next under the same concurrency bound as /query.
func (s *Server) limited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.slots.Acquire(r.Context(), 1); err != nil {
			return
		}
		defer s.slots.Release(1)
		next.ServeHTTP(w, r)
	})
}

// Start listens on cfg.Addr and serves until ctx is cancelled, then shuts
// down gracefully within cfg.ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.boundAddr.Store(listener.Addr().String())

	// WriteTimeout stays zero: answers stream for as long as the model
	// generates. server.write_timeout only documents the upper bound.
	// Request contexts outlive ctx so Shutdown can let streams finish.
	base := context.WithoutCancel(ctx)
	s.httpSrv = &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	s.logger.Info("http server started", "addr", listener.Addr().String(), "backend", s.engine.SearchBackend(), "client", s.client)

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpSrv.Serve(listener) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http serve: %w", err)
	case <-ctx.Done():
	}
	return s.Stop(context.WithoutCancel(ctx))
}

// Stop gracefully shuts down the server, waiting up to cfg.ShutdownTimeout
// for in-flight answers before closing their connections.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.httpSrv.Close()
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// BoundAddr returns the address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string {
	addr, _ := s.boundAddr.Load().(string)
	return addr
}

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Client  string `json:"client"`
	Store   string `json:"store,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Backend: s.engine.SearchBackend(),
		Client:  s.client,
	}
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Store = "ok"
		if err := p.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Store = "unavailable"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
