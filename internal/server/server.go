// Package server provides the HTTP preview server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sanixdarker/strapisource/internal/app"
	"github.com/sanixdarker/strapisource/internal/server/handlers"
	servermw "github.com/sanixdarker/strapisource/internal/server/middleware"
)

const (
	requestsPerSecond = 10
	requestBurst      = 20
)

// Server represents the HTTP server.
type Server struct {
	app    *app.App
	server *http.Server
	router *chi.Mux
	stop   context.CancelFunc
}

// New creates a new Server.
func New(application *app.App) *Server {
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		app:    application,
		router: chi.NewRouter(),
		stop:   stop,
	}

	s.setupMiddleware(ctx)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", application.Config.Port),
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// a refresh runs a full sync
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(ctx context.Context) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(servermw.SecurityHeaders)
	s.router.Use(servermw.Logger(s.app.Logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(servermw.NewRateLimiter(ctx, requestsPerSecond, requestBurst).Limit)
	s.router.Use(middleware.Compress(5, "application/json"))
}

func (s *Server) setupRoutes() {
	h := handlers.NewNodesHandler(s.app)

	s.router.Get("/healthz", h.Health)
	s.router.Get("/schema", h.Schema)
	s.router.Get("/types", h.Types)
	s.router.Get("/nodes/{type}", h.List)
	s.router.Get("/node/{id}", h.Get)
	s.router.Get("/files/{id}", h.File)
	s.router.Post("/__refresh", h.Refresh)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	defer s.stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
