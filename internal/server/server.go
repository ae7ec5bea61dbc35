// Package server provides the HTTP server for primal-bridge, built on
// Echo v4. It exposes bridged platform users as ActivityPub actors along
// with the discovery and liveness endpoints remote servers expect.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/primal-host/primal-bridge/internal/account"
	"github.com/primal-host/primal-bridge/internal/federation"
	"github.com/primal-host/primal-bridge/internal/inbox"
	"github.com/primal-host/primal-bridge/internal/metrics"
	"github.com/primal-host/primal-bridge/internal/user"
)

// Version is reported by nodeinfo.
const Version = "0.1.0"

// Accounts admits users and provides their keys.
type Accounts interface {
	EnsureUser(ctx context.Context, username string) (*user.User, error)
	EnsureKeyPair(ctx context.Context, username string) (*account.KeyPair, error)
}

// Outbox lists a user's outbox items.
type Outbox interface {
	List(ctx context.Context, username string) ([]*federation.Create, error)
}

// Inbox applies an inbound activity.
type Inbox interface {
	Handle(ctx context.Context, recipient string, act *federation.Activity) inbox.Result
}

// Counter counts rows for discovery documents.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// FollowerCounter counts one user's followers.
type FollowerCounter interface {
	Count(ctx context.Context, username string) (int, error)
}

// Deps are the components the HTTP handlers call into.
type Deps struct {
	URLs      *federation.URLs
	Accounts  Accounts
	Outbox    Outbox
	Inbox     Inbox
	Users     Counter
	Followers FollowerCounter
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

// Server wraps the Echo instance and application dependencies.
type Server struct {
	echo    *echo.Echo
	addr    string
	deps    Deps
	log     *slog.Logger
	started time.Time
}

// New creates a configured Echo server with all routes registered.
func New(addr string, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true // We log the listen address ourselves.

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				log.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			log.Debug("request", attrs...)
			return nil
		},
	}))

	s := &Server{
		echo:    e,
		addr:    addr,
		deps:    deps,
		log:     log,
		started: time.Now(),
	}

	s.registerRoutes()
	return s
}

// ServeHTTP lets the server be driven without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start begins listening for HTTP requests. It blocks until the context
// is cancelled, then performs a graceful shutdown allowing in-flight
// requests to complete.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.addr, "origin", s.deps.URLs.Origin())
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// apiError writes the JSON error body used by every handler.
func apiError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]string{
		"error":   code,
		"message": message,
	})
}

// activityJSON writes v with the ActivityPub media type.
func activityJSON(c echo.Context, status int, v any) error {
	return jsonAs(c, status, federation.ContentType, v)
}

func jsonAs(c echo.Context, status int, contentType string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, contentType, b)
}
