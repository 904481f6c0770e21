package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"3tcapital/ms_ecommerce_audit/internal/infrastructure/config"
	httperrors "3tcapital/ms_ecommerce_audit/internal/infrastructure/http"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/http/middleware"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/logger"
)

// Server wraps the HTTP listener and its router.
type Server struct {
	cfg        config.AppConfig
	log        *slog.Logger
	httpServer *http.Server
	auth       *middleware.JWTAuthenticator
	capturer   *middleware.Capturer
}

// Options wires handlers and collaborators into the router.
type Options struct {
	Config        config.AppConfig
	Logger        *slog.Logger
	HealthHandler http.Handler

	// ProductRoutes is mounted under /api/products.
	ProductRoutes func(chi.Router)
	// LogRoutes is mounted under /api/logs behind the JWT middleware.
	LogRoutes func(chi.Router)

	// Publisher receives every captured exchange outside Config.Audit.SkipPaths.
	// Capture is skipped when nil.
	Publisher     middleware.RecordPublisher
	Authenticator *middleware.JWTAuthenticator
}

func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.HealthHandler == nil {
		return nil, errors.New("health handler is required")
	}

	auth := opts.Authenticator
	if auth == nil {
		var err error
		auth, err = middleware.NewJWTAuthenticator(opts.Config.Auth, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize authenticator: %w", err)
		}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(opts.Logger, "/health"))

	// Capture sits outside Recoverer so a handler panic is recorded as the
	// 500 the client receives.
	var capturer *middleware.Capturer
	if opts.Publisher != nil {
		capturer = middleware.NewCapturer(opts.Config.Audit, opts.Publisher, logger.Component(opts.Logger, "capture"))
		r.Use(capturer.Middleware)
	} else {
		opts.Logger.Warn("no publisher configured, API traffic will not be audited")
	}
	r.Use(chimw.Recoverer)

	r.Method(http.MethodGet, "/health", opts.HealthHandler)

	r.Route("/api/products", func(r chi.Router) {
		r.Use(middleware.RequestTimeout(opts.Config.HTTP))
		mount(r, opts.ProductRoutes)
	})

	r.Route("/api/logs", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Use(middleware.RequestTimeout(opts.Config.HTTP))
		mount(r, opts.LogRoutes)
	})

	srv := &http.Server{
		Addr:         opts.Config.HTTP.Address(),
		Handler:      r,
		ReadTimeout:  opts.Config.HTTP.ReadTimeout,
		WriteTimeout: opts.Config.HTTP.WriteTimeout,
		IdleTimeout:  opts.Config.HTTP.IdleTimeout,
	}

	return &Server{
		cfg:        opts.Config,
		log:        opts.Logger,
		httpServer: srv,
		auth:       auth,
		capturer:   capturer,
	}, nil
}

// mount registers routes, or a 503 fallback when the feature is not wired.
func mount(r chi.Router, routes func(chi.Router)) {
	if routes != nil {
		routes(r)
		return
	}
	r.HandleFunc("/*", func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, http.StatusServiceUnavailable, "Service Unavailable", []string{"endpoint is not configured"}, nil)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the configured shutdown timeout and waits, up to the publish timeout, for
// the audit publishes those requests started.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down HTTP server", "timeout", s.cfg.HTTP.ShutdownTimeout)
		shutdownCtx := context.Background()
		if s.cfg.HTTP.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.cfg.HTTP.ShutdownTimeout)
			defer cancel()
		}
		shutdownErr := s.httpServer.Shutdown(shutdownCtx)
		s.drainAudit()
		if shutdownErr != nil {
			return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) drainAudit() {
	if s.capturer == nil {
		return
	}
	timeout := s.cfg.Audit.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.capturer.Drain(ctx); err != nil {
		s.log.Warn("audit publishes still pending at shutdown", "error", err)
	}
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.auth != nil {
		s.auth.Close()
	}
}
