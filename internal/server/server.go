// Package server exposes the de-identification engine over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/velamed/velamed/internal/auth"
	"github.com/velamed/velamed/internal/engine"
)

// Server wires the engine and auth layer into an echo application.
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	auth   *auth.Auth
	log    zerolog.Logger
	addr   string
}

// Config holds the server collaborators.
type Config struct {
	Addr   string
	Engine *engine.Engine
	Auth   *auth.Auth
	Logger zerolog.Logger
}

// New builds the HTTP server and registers all routes.
func New(cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		engine: cfg.Engine,
		auth:   cfg.Auth,
		log:    cfg.Logger,
		addr:   cfg.Addr,
	}

	e.Use(echomw.Recover())
	e.Use(s.requestID)

	e.GET("/healthz", s.handleHealth)

	v1 := e.Group("/v1", s.requireAPIKey)
	v1.POST("/deidentify", s.handleDeidentify)
	v1.POST("/reidentify", s.handleReidentify)

	return s
}

// Start begins serving; it blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	err := s.echo.Start(s.addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// requestID assigns each request a UUID, echoed back in X-Request-Id and
// threaded through the engine as the audit correlation id.
func (s *Server) requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Response().Header().Set("X-Request-Id", id)

		start := time.Now()
		err := next(c)
		s.log.Info().
			Str("request_id", id).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", c.Response().Status).
			Dur("duration", time.Since(start)).
			Msg("request")
		return err
	}
}
