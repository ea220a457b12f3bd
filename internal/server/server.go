package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"artisan-market/internal/config"
	custommiddleware "artisan-market/internal/middleware"
	"artisan-market/internal/narrative"
	"artisan-market/internal/repository"
	"artisan-market/internal/service"
	"artisan-market/internal/session"
	"artisan-market/internal/storage"
	"artisan-market/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
}

func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	db *sql.DB,
	redisClient *redis.Client,
	blobs *storage.BlobStore,
	stories narrative.Generator,
) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.CORSOrigins, cfg.Server.Env == "development"))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{
			"name":    "artisan-market",
			"catalog": "/products",
			"signup":  "/signup",
			"login":   "/login",
		})
	})

	sessionExpiry := time.Duration(cfg.JWT.SessionExpiry) * time.Hour
	pendingTTL := time.Duration(cfg.Signup.PendingTTL) * time.Minute

	// Initialize repositories and stores
	identityRepo := repository.NewIdentityRepository(db)
	productRepo := repository.NewProductRepository(db)
	pendingStore := session.NewPendingStore(redisClient, pendingTTL)

	// Initialize services
	registrationService := service.NewRegistrationService(
		identityRepo, pendingStore, blobs, cfg.JWT.Secret, sessionExpiry,
	)
	productService := service.NewProductService(productRepo, identityRepo, blobs, stories, logger)

	// Initialize handlers
	registrationHandler := transport.NewRegistrationHandler(
		registrationService, logger, sessionExpiry, pendingTTL, cfg.Server.Env != "development",
	)
	productHandler := transport.NewProductHandler(productService, logger)
	fileHandler := transport.NewFileHandler(blobs, logger)

	// Create middleware
	sessionMiddleware := custommiddleware.SessionMiddleware(cfg.JWT.Secret, logger)
	artisanOnly := custommiddleware.RequireArtisan(logger)
	credentialLimiter := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: 10,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:credentials",
	}, logger)

	// Register routes
	registrationHandler.RegisterRoutes(router, sessionMiddleware, credentialLimiter)
	productHandler.RegisterRoutes(router, sessionMiddleware, artisanOnly)
	fileHandler.RegisterRoutes(router)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
