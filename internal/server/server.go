package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cinevault/apiserver/config"
	"github.com/cinevault/apiserver/internal/db"
	"github.com/cinevault/apiserver/internal/handlers"
	"github.com/cinevault/apiserver/internal/mq"
	"github.com/cinevault/apiserver/internal/services"
	"github.com/cinevault/apiserver/internal/storage"
	"github.com/cinevault/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services groups the use-cases the router exposes.
type Services struct {
	Auth    *services.AuthService
	Users   *services.UserService
	Movies  *services.MovieService
	Uploads *services.UploadService
	Tokens  *services.TokenService
}

// Server wraps the HTTP server and the clients it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
	redis      *redis.Client
	logger     *zap.Logger
}

// New wires configuration into repositories, services and the router.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	tokens, err := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s := &Server{db: dbConn, logger: logger}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(db.BuildURL(cfg.Database), db.Up, logger); err != nil {
			s.close()
			return nil, err
		}
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		logger.Warn("could not ensure bucket", zap.String("bucket", objects.Bucket()), zap.Error(err))
	}

	events, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("init mq: %w", err)
	}
	s.events = events
	if events == nil {
		logger.Info("event publishing disabled")
	}

	var counter handlers.WindowCounter
	if cfg.RateLimit.Enabled && cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := s.redis.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, login rate limit fails open", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		counter = handlers.NewRedisCounter(s.redis)
	}

	userRepo := store.NewUserRepository(dbConn)
	movieRepo := store.NewMovieRepository(dbConn)
	imageRepo := store.NewImageRepository(dbConn)

	auth, err := services.NewAuthService(userRepo, cfg.Auth.BcryptCost)
	if err != nil {
		s.close()
		return nil, err
	}

	svc := Services{
		Auth: auth,
		Users: services.NewUserService(userRepo, events, services.UserOptions{
			BcryptCost: cfg.Auth.BcryptCost,
			ConfirmTTL: cfg.Auth.ConfirmTTL,
		}, logger),
		Movies:  services.NewMovieService(movieRepo, imageRepo, objects, logger),
		Uploads: services.NewUploadService(movieRepo, imageRepo, objects, events, logger),
		Tokens:  tokens,
	}
	limiter := handlers.NewRateLimiter(counter, cfg.RateLimit, "login", logger)

	s.router = NewRouter(svc, limiter, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// NewRouter builds the HTTP routing table. limiter may be nil.
func NewRouter(svc Services, limiter *handlers.RateLimiter, logger *zap.Logger) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	authMiddleware := handlers.RequireAuth(svc.Tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, handlers.NewAuthHandler(svc.Auth, svc.Users, svc.Tokens, logger), limiter.Middleware)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, handlers.NewUserHandler(svc.Users, logger), authMiddleware)
	})
	router.Route("/movies", func(r chi.Router) {
		handlers.MovieRouter(r, handlers.NewMovieHandler(svc.Movies, svc.Uploads, logger), authMiddleware)
	})
	router.Route("/storage", func(r chi.Router) {
		handlers.StorageRouter(r, handlers.NewStorageHandler(svc.Uploads, logger), authMiddleware)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases every client.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			s.logger.Warn("close mq", zap.Error(err))
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
