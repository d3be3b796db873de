// Package devserver is an in-process emulator of the advisory backend. It
// speaks the real wire protocol with scripted answers, so the client
// pipeline can be exercised deterministically by the CLI's dev mode and by
// integration tests.
package devserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumen-advisory/advisory-chat/pkg/logger"
)

// Script is the canned answer the dev server streams for every question.
type Script struct {
	Model  string
	Chunks []string
	// FailAfter, when positive, emits an error event after that many
	// chunks instead of completing.
	FailAfter int
}

// Config holds dev server settings.
type Config struct {
	JWTSecret         string
	TokenTTL          time.Duration
	ChunkDelay        time.Duration
	Script            Script
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Server is the emulator. All state is in memory.
type Server struct {
	cfg    Config
	logger *logger.Logger
	router chi.Router
	state  *state
}

// New creates a dev server with defaults filled in.
func New(cfg Config, log *logger.Logger) *Server {
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "development-secret-change-in-production"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 15 * time.Minute
	}
	if cfg.Script.Model == "" {
		cfg.Script.Model = "advisor-dev-1"
	}
	if len(cfg.Script.Chunks) == 0 {
		cfg.Script.Chunks = []string{
			"This is a scripted answer ",
			"from the dev server. ",
			"Wire protocol, auth and streaming ",
			"behave exactly like production.",
		}
	}
	if cfg.RateLimitRequests == 0 {
		cfg.RateLimitRequests = 600
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = time.Minute
	}

	s := &Server{
		cfg:    cfg,
		logger: log,
		state:  newState(),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler for the emulator.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/auth/login/", s.handleLogin)
	r.Post("/api/auth/token/refresh/", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Use(s.rateLimit())

		r.Post("/api/auth/logout/", s.handleLogout)

		r.Route("/api/workspaces", func(r chi.Router) {
			r.Get("/", s.handleListWorkspaces)
			r.Post("/", s.handleCreateWorkspace)
			r.Delete("/{id}/", s.handleDeleteWorkspace)
		})

		r.Route("/api/conversations", func(r chi.Router) {
			r.Get("/", s.handleListConversations)
			r.Post("/", s.handleCreateConversation)
			r.Delete("/{id}/", s.handleDeleteConversation)
		})

		r.Post("/api/agents/ask/", s.handleAsk)
	})

	return r
}
