// Package server contains the HTTP and WebSocket handlers of the photo feed API.
package server

import (
	"context"
	"errors"
	"time"

	"photofeed/internal/auth"
	"photofeed/internal/config"
	"photofeed/internal/middleware"
	"photofeed/internal/models"
	"photofeed/internal/notifications"
	"photofeed/internal/observability"
	"photofeed/internal/repository"
	"photofeed/internal/service"
	"photofeed/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	objects        storage.Storage
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	hubs           []wireableHub
	authService    *service.AuthService
	profileService *service.ProfileService
	postService    *service.PostService
	likeService    *service.LikeService
	mediaService   *service.MediaService
}

// NewServerWithDeps creates a Server from dependencies established by the bootstrap
// layer or a test. A nil mailer logs outgoing mail instead of sending it.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, objects storage.Storage, mailer service.Mailer) (*Server, error) {
	if redisClient == nil {
		return nil, errors.New("redis client is required for sessions")
	}

	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db)
	likeRepo := repository.NewLikeRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		objects:        objects,
		promMiddleware: middleware.InitMetrics(cfg.ServiceName),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
	}
	server.hubs = []wireableHub{server.hub}

	server.authService = service.NewAuthService(
		accountRepo,
		auth.NewStore(redisClient, cfg.RefreshTokenTTL),
		auth.NewTokenIssuer(cfg),
		server.notifier,
		mailer,
		cfg,
	)
	server.profileService = service.NewProfileService(profileRepo, server.notifier)
	server.postService = service.NewPostService(postRepo, profileRepo)
	server.likeService = service.NewLikeService(likeRepo)
	server.mediaService = service.NewMediaService(objects, cfg.Buckets(), cfg.MaxUploadSizeMB)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:  s.config.AllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, x-upsert, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		ExposeHeaders: "X-Trace-ID, X-Request-ID",
		MaxAge:        86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Photofeed API Metrics",
	}))

	authAPI := app.Group("/auth/v1")
	authAPI.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Signup)
	authAPI.Post("/token", middleware.RateLimit(s.redis, 20, 5*time.Minute, "token"), s.Token)
	authAPI.Post("/recover", middleware.RateLimit(s.redis, 3, 10*time.Minute, "recover"), s.Recover)
	authAPI.Get("/verify", s.Verify)
	authAPI.Post("/verify", s.Verify)
	authAPI.Post("/logout", s.AuthRequired(), s.Logout)
	authAPI.Get("/user", s.AuthRequired(), s.GetCurrentUser)

	app.Get("/realtime/v1/auth", requireUpgrade, s.AuthRequired(), s.RealtimeAuthHandler())

	rest := app.Group("/rest/v1")
	rest.Get("/users/:id", s.GetProfile)
	rest.Get("/posts", s.GetPosts)

	protected := rest.Group("", s.AuthRequired())
	protected.Post("/users", s.CreateProfile)
	protected.Patch("/users/:id", s.UpdateProfile)
	protected.Post("/posts", middleware.RateLimit(s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	protected.Patch("/posts/:id", s.UpdatePost)
	protected.Delete("/posts/:id", s.DeletePost)
	protected.Get("/likes", s.GetLikedPostIDs)
	protected.Post("/rpc/like_post", s.LikePost)
	protected.Post("/rpc/unlike_post", s.UnlikePost)

	objects := app.Group("/storage/v1/object")
	objects.Get("/public/:bucket/*", s.GetPublicObject)
	objects.Put("/:bucket/*", s.AuthRequired(), middleware.RateLimit(s.redis, 30, time.Minute, "upload"), s.UploadObject)
	objects.Delete("/:bucket/*", s.AuthRequired(), s.RemoveObject)
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// NewApp builds the fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	bodyLimit := 4 << 20
	if upload := (s.config.MaxUploadSizeMB + 1) << 20; upload > bodyLimit {
		bodyLimit = upload
	}

	app := fiber.New(fiber.Config{
		AppName:               "Photofeed API",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: s.config.Env == "test",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			observability.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Wire connects every hub to the notifier. The subscriptions end when ctx is done.
func (s *Server) Wire(ctx context.Context) {
	for _, h := range s.hubs {
		if err := h.StartWiring(ctx, s.notifier); err != nil {
			observability.Logger.Error("failed to start hub wiring", "hub", h.Name(), "error", err)
		}
	}
}

// RealtimeConnections returns how many auth sockets userID has open.
func (s *Server) RealtimeConnections(userID string) int {
	return s.hub.ConnectionCount(userID)
}

// Start wires the hubs and serves HTTP until Shutdown.
func (s *Server) Start() error {
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())
	s.app = s.NewApp()
	s.Wire(s.shutdownCtx)

	observability.Logger.Info("Server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			observability.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			observability.Logger.Error("error shutting down hub", "hub", h.Name(), "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			observability.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if rerr := s.redis.Close(); rerr != nil {
		observability.Logger.Error("error closing redis", "error", rerr)
	}

	observability.Logger.Info("Server shutdown complete")
	return nil
}
