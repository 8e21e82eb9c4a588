// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api is the HTTP and websocket surface of reelplay.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/api/middleware"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/auth"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/blob"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/bus"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/catalog"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/config"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/health"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/session"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/version"
)

// Deps are the collaborators the handlers drive. Catalog and Blobs may be
// nil; their routes then answer 503.
type Deps struct {
	Sessions *session.Manager
	Catalog  *catalog.Catalog
	Blobs    *blob.Store
	Bus      bus.Bus
	Auth     *auth.Authenticator
	Health   *health.Manager
	Now      func() time.Time
}

type Server struct {
	cfg     config.AppConfig
	deps    Deps
	logger  zerolog.Logger
	handler http.Handler
}

func NewServer(cfg config.AppConfig, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Health == nil {
		deps.Health = health.NewManager(version.Version)
	}
	if deps.Auth == nil {
		deps.Auth = auth.NewAuthenticator(nil, cfg.Auth.AllowAnonymous)
	}
	s := &Server{cfg: cfg, deps: deps, logger: xglog.WithComponent("api")}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	stack := middleware.StackConfig{
		EnableCORS:            len(s.cfg.Server.CORSOrigins) > 0,
		AllowedOrigins:        s.cfg.Server.CORSOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         s.cfg.Metrics.Enabled,
		EnableLogging:         true,
		EnableRateLimit:       s.cfg.Server.RateLimit.Enabled,
		RateLimitRPS:          s.cfg.Server.RateLimit.RPS,
		RateLimitBurst:        s.cfg.Server.RateLimit.Burst,
	}
	if s.cfg.Telemetry.Enabled {
		stack.TracingService = s.cfg.Telemetry.ServiceName
	}
	r := middleware.NewRouter(stack)

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	if s.cfg.Metrics.Enabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, probNotFound, "", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, problemSpec{http.StatusMethodNotAllowed, "request/method_not_allowed", "Method Not Allowed", "METHOD_NOT_ALLOWED"}, "", nil)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.yaml", s.handleOpenAPIYAML)
		r.Get("/openapi.json", s.handleOpenAPIJSON)

		r.Route("/sessions", func(r chi.Router) {
			// Browsers cannot set headers on a websocket handshake.
			r.With(s.authenticate(true)).Get("/{id}/ws", s.handleSessionSocket)

			r.Group(func(r chi.Router) {
				r.Use(s.authenticate(false))
				r.Post("/", s.handleCreateSession)
				r.Get("/", s.handleListSessions)
				r.Get("/{id}", s.handleGetSession)
				r.Delete("/{id}", s.handleDeleteSession)
				r.Post("/{id}/intents", s.handleIntent)
				r.Post("/{id}/events", s.handleElementEvent)
				r.Put("/{id}/reference", s.handleSetReference)
				r.Post("/{id}/visibility", s.handleVisibility)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate(false))
			r.Post("/blobs", s.handlePutBlob)
			r.Get("/blobs/{id}", s.handleGetBlob)
			r.Delete("/blobs/{id}", s.handleDeleteBlob)

			r.Get("/media/{itemID}", s.handleGetMedia)
			r.With(requireAdmin).Put("/media/{itemID}", s.handlePutMedia)
			r.With(requireAdmin).Delete("/media/{itemID}", s.handleDeleteMedia)

			r.Put("/viewer/auth", s.handleViewerAuth)
		})
	})
	return r
}

// NewHTTPServer wraps the handler with the configured timeouts.
func (s *Server) NewHTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       s.cfg.Server.IdleTimeout,
	}
}

// Serve runs srv until ctx ends, then drains it within the shutdown timeout.
// A positive maxConns caps the number of connections accepted at once.
func Serve(ctx context.Context, srv *http.Server, maxConns int, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	return serveListener(ctx, srv, ln, maxConns, shutdownTimeout)
}

func serveListener(ctx context.Context, srv *http.Server, ln net.Listener, maxConns int, shutdownTimeout time.Duration) error {
	logger := xglog.WithComponent("api")
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str(xglog.FieldEvent, "server.listening").
			Str("addr", ln.Addr().String()).
			Int("max_connections", maxConns).
			Msg("HTTP server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info().Str(xglog.FieldEvent, "server.shutdown").Msg("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
