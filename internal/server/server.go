// Package server wires configuration, storage, services and handlers into
// one chi router and runs it.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB (repository.Store)
//	             → shortener (TinyURL, optionally behind Redis) → annotate.Annotator
//	             → services (status, timeline, social, auth)
//	             → handlers → routes
//
// Everything is assembled in New; handlers never build their own
// dependencies.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/annotate"
	"github.com/sakif/chirper/internal/auth"
	"github.com/sakif/chirper/internal/config"
	"github.com/sakif/chirper/internal/handler"
	"github.com/sakif/chirper/internal/metrics"
	"github.com/sakif/chirper/internal/middleware"
	sqliteRepo "github.com/sakif/chirper/internal/repository/sqlite"
	"github.com/sakif/chirper/internal/service"
	"github.com/sakif/chirper/internal/shortener"
)

const (
	shutdownTimeout = 30 * time.Second
	cleanupInterval = 5 * time.Minute
	apiRealm        = "chirper API"
)

// Server owns the database, the optional Redis client and the rate
// limiter's cleanup loop; Close releases all three.
type Server struct {
	router  *chi.Mux
	cfg     *config.Config
	logger  logrus.FieldLogger
	db      *sqliteRepo.DB
	rdb     *redis.Client
	limiter *middleware.RateLimiter
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New opens the database at cfg.DBPath and builds the router.
func New(cfg *config.Config, logger logrus.FieldLogger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
		done:   make(chan struct{}),
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work and releases connections.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		var errs []error
		if s.rdb != nil {
			errs = append(errs, s.rdb.Close())
		}
		errs = append(errs, s.db.Close())
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// newShortener picks the URL shortener from configuration:
//
//	SHORTENER_ENABLED=false   → Nop (URLs kept as typed)
//	REDIS_ADDR unset          → TinyURL
//	REDIS_ADDR set            → TinyURL behind a Redis cache
func (s *Server) newShortener() shortener.Shortener {
	if !s.cfg.ShortenerEnabled {
		return shortener.Nop{}
	}
	tiny := shortener.NewTinyURL(s.cfg.ShortenerURL, s.cfg.ShortenerTimeout, nil)
	if s.cfg.RedisAddr == "" {
		return tiny
	}
	s.rdb = shortener.NewRedisClient(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB)
	s.logger.WithField("addr", s.cfg.RedisAddr).Info("shortened URLs cached in redis")
	return shortener.NewCached(tiny, s.rdb, s.cfg.ShortenerCacheTTL, s.logger)
}

// setupRoutes configures middleware and routes.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz, /metrics
//	GET    /auth/github/login, /auth/github/callback; POST /auth/logout
//	       /api/...         cookie session (RequireAuth or OptionalAuth)
//	       /api/v1/...      HTTP basic auth with the account's API password
//
// Middleware order: request ID first so every log line carries it, then
// real IP (the rate limiter keys anonymous callers by IP), panic recovery,
// access logging and metrics.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// === Services ===
	annotator := annotate.New(s.db, s.newShortener(), s.logger, annotate.WithShortenBudget(s.cfg.ShortenerBudget))
	statusService := service.NewStatusService(s.db, annotator, s.logger)
	timelineService := service.NewTimelineService(s.db, s.db, s.logger)
	socialService := service.NewSocialService(s.db, s.logger)
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)

	// === Handlers ===
	provider := auth.NewGitHubProvider(s.cfg.GitHubClientID, s.cfg.GitHubClientSecret, s.cfg.GitHubCallbackURL)
	authHandler := handler.NewAuthHandler(provider, authService, tokens, s.cfg.IsProduction(), s.cfg.FrontendURL, s.logger)
	statusHandler := handler.NewStatusHandler(authService, statusService, timelineService, socialService, s.logger)
	userHandler := handler.NewUserHandler(authService, statusService, timelineService, socialService, s.logger)
	messageHandler := handler.NewMessageHandler(authService, statusService, socialService, s.logger)
	apiHandler := handler.NewAPIHandler(authService, statusService, timelineService, s.logger)

	checks := map[string]handler.Pinger{"database": s.db}
	if s.rdb != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return s.rdb.Ping(ctx).Err()
		})
	}
	healthHandler := handler.NewHealthHandler(checks, s.logger)

	s.limiter = middleware.NewRateLimiter(s.cfg.PostRatePerMinute, s.cfg.PostBurst, s.logger)
	s.limiter.StartCleanup(cleanupInterval, s.done)

	// === Global Middleware ===
	s.router.Use(middleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	if s.cfg.MetricsEnabled {
		s.router.Use(metrics.InstrumentHandler)
		s.router.Handle("/metrics", metrics.Handler())
	}

	s.router.Get("/healthz", healthHandler.HandleHealth)

	// === Login ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// === Web API ===
	s.router.Route("/api", func(r chi.Router) {
		// Readable by anyone; a session changes what the owner sees.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/public", statusHandler.HandlePublic)
			r.Get("/users/{nickname}", userHandler.HandleProfile)
			r.Get("/users/{nickname}/timeline", userHandler.HandleTimeline)
			r.Get("/users/{nickname}/followers", userHandler.HandleFollowers)
			r.Get("/users/{nickname}/follows", userHandler.HandleFollows)
			r.Get("/users/{nickname}/friends", userHandler.HandleFriends)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Put("/me", userHandler.HandleUpdateMe)
			r.Put("/me/api-password", authHandler.HandleSetAPIPassword)

			r.Get("/timeline", statusHandler.HandleHomeTimeline)
			r.Get("/replies", statusHandler.HandleReplies)
			r.Get("/messages", messageHandler.HandleList)
			r.Get("/messages/count", messageHandler.HandleCount)

			r.Post("/follows/{nickname}", userHandler.HandleFollow)
			r.Delete("/follows/{nickname}", userHandler.HandleUnfollow)

			r.With(s.limiter.Handler).Post("/statuses", statusHandler.HandleCreate)
			r.With(s.limiter.Handler).Post("/messages", messageHandler.HandleSend)
		})

		r.Route("/v1/statuses", func(r chi.Router) {
			r.Use(auth.BasicAuth(authService, apiRealm))
			r.Get("/user_timeline", apiHandler.HandleUserTimeline)
			r.Get("/public_timeline", apiHandler.HandlePublicTimeline)
			r.With(s.limiter.Handler).Post("/update", apiHandler.HandleUpdate)
		})
	})

	return nil
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.WithFields(logrus.Fields{
			"port":     s.cfg.Port,
			"env":      s.cfg.Env,
			"database": s.cfg.DBPath,
		}).Info("server starting")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.WithField("signal", sig.String()).Info("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
