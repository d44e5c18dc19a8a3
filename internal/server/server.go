// Package server exposes the tag index, scan profiles and scan jobs over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/app"
	tagerrors "github.com/mantonx/mediatags/internal/errors"
	"github.com/mantonx/mediatags/internal/logger"
	"github.com/mantonx/mediatags/internal/middleware"
)

const shutdownTimeout = 5 * time.Second

// Server hosts the HTTP API for an App
type Server struct {
	app    *app.App
	router *gin.Engine
	http   *http.Server
	logger hclog.Logger
}

// New builds the router for a
func New(a *app.App) *Server {
	log := logger.OrNull(a.Logger).Named("server")

	if !log.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(tagerrors.RecoveryMiddleware(log))
	r.Use(middleware.CORS())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.ErrorLogger(log))

	s := &Server{
		app:    a,
		router: r,
		logger: log,
	}
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      r,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
