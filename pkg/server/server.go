package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mercator-hq/loupe/pkg/config"
	"mercator-hq/loupe/pkg/proxy"
	"mercator-hq/loupe/pkg/proxy/middleware"
	"mercator-hq/loupe/pkg/recorder"
	"mercator-hq/loupe/pkg/telemetry/health"
	"mercator-hq/loupe/pkg/telemetry/metrics"
)

// Dependencies are the components the server routes through. Recorder is
// required; the rest are optional.
type Dependencies struct {
	// Recorder wraps every route.
	Recorder *recorder.Recorder

	// Metrics serves the Prometheus endpoint when metrics are enabled.
	Metrics *metrics.Collector

	// Health serves the probe endpoints when health is enabled. An upstream
	// readiness check is registered on it when an upstream is configured.
	Health *health.Checker

	// Version is reported by the version endpoint.
	Version health.VersionInfo

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the recording HTTP server.
type Server struct {
	config     *config.Config
	deps       Dependencies
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server

	mu           sync.RWMutex
	listener     net.Listener
	isRunning    bool
	shutdownOnce sync.Once
}

// NewServer creates a server and builds its routes. It fails when the
// upstream URL is invalid.
func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Recorder == nil {
		return nil, errors.New("server requires a recorder")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Logger,
	}

	handler, err := s.setupRoutes()
	if err != nil {
		return nil, err
	}
	s.handler = handler
	return s, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or the server
// fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		ln.Close()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"address", ln.Addr().String(),
			"upstream", s.config.Upstream.URL,
			"recorder_sink", s.config.Recorder.Sink,
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		s.setRunning(false)
		return err
	}
}

// Shutdown gracefully shuts down the server, waiting up to
// server.shutdown_timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		srv, running := s.httpServer, s.isRunning
		s.mu.RUnlock()
		if !running || srv == nil {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.setRunning(false)
		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setRunning(v bool) {
	s.mu.Lock()
	s.isRunning = v
	s.mu.Unlock()
}

// setupRoutes configures the middleware chain and routes:
//
//	Recorder → RealIP (trust_proxy) → Recovery → CORS → router
func (s *Server) setupRoutes() (http.Handler, error) {
	cfg := s.config
	r := chi.NewRouter()

	r.Use(s.deps.Recorder.Middleware)
	if cfg.Server.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.CORSMiddleware(cfg.Server.CORS))

	var upstream *proxy.Upstream
	if cfg.Upstream.URL != "" {
		up, err := proxy.NewUpstream(cfg.Upstream, s.logger)
		if err != nil {
			return nil, err
		}
		upstream = up
	}

	if cfg.Telemetry.Health.Enabled && s.deps.Health != nil {
		if upstream != nil {
			check, err := health.DialCheck(cfg.Upstream.URL)
			if err != nil {
				return nil, err
			}
			s.deps.Health.RegisterCheck("upstream", check)
		}
		s.deps.Health.Mount(r, cfg.Telemetry.Health, s.deps.Version)
	}

	if cfg.Telemetry.Metrics.Enabled && s.deps.Metrics != nil {
		r.Method(http.MethodGet, cfg.Telemetry.Metrics.Path, s.deps.Metrics.Handler())
	}

	if upstream != nil {
		r.Handle("/*", upstream)
	} else {
		r.Mount("/", proxy.Echo())
	}

	return r, nil
}
