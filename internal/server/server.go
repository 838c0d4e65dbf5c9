// Package server is the composition root: it wires the store, services,
// handlers, and middleware into a chi router and owns the HTTP server's
// lifecycle, including graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nafisb/snipvault/internal/auth"
	"github.com/nafisb/snipvault/internal/handler"
	"github.com/nafisb/snipvault/internal/middleware"
	sqliteRepo "github.com/nafisb/snipvault/internal/repository/sqlite"
	"github.com/nafisb/snipvault/internal/service"
)

type Config struct {
	Port      int
	DBPath    string
	JWTSecret string

	// Optional GitHub OAuth; the login routes are registered only when
	// ClientID is set.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server owns the router and the database handle. The handle is closed
// during shutdown in Start, after in-flight requests drain.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and assembles the dependency chain:
// DB → services → handlers → routes. Each layer receives only what it
// needs; handlers never see the repository, services never see HTTP.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("server: JWT secret is required")
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" {
		callbackURL := s.config.GitHubCallbackURL
		if callbackURL == "" {
			callbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", s.config.Port)
		}
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, callbackURL)
	}

	snippetService := service.NewSnippetService(s.db, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)

	snippetHandler := handler.NewSnippetHandler(snippetService, s.logger)
	publicHandler := handler.NewPublicHandler(snippetService, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	s.router.Route("/api", func(r chi.Router) {
		// Authenticated routes. The static /recycled segment is
		// registered alongside /{id}; chi prefers the static match.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)

			r.Route("/snippets", func(r chi.Router) {
				r.Get("/", snippetHandler.HandleList)
				r.Post("/", snippetHandler.HandleCreate)
				r.Get("/recycled", snippetHandler.HandleListRecycled)
				r.Get("/{id}", snippetHandler.HandleGetByID)
				r.Put("/{id}", snippetHandler.HandleUpdate)
				r.Delete("/{id}", snippetHandler.HandleDelete)
				r.Patch("/{id}/recycle", snippetHandler.HandleRecycle)
				r.Patch("/{id}/restore", snippetHandler.HandleRestore)
				r.Get("/{id}/{fragmentID}/raw", snippetHandler.HandleRawFragment)
			})
		})

		// Anonymous routes: active public snippets only. OptionalAuth
		// still identifies a logged-in caller, so owners keep access to
		// their private snippets through these URLs too.
		r.Route("/public/snippets", func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/", publicHandler.HandleList)
			r.Get("/{id}", publicHandler.HandleGetByID)
			r.Get("/{id}/{fragmentID}/raw", publicHandler.HandleRawFragment)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests up to
// 30s to drain, close the database so the WAL is flushed.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
