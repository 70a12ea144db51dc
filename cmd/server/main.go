// Package main runs the Missões HTTP API with WebSocket push and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/missoes/backend/config"
	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/auth"
	"github.com/missoes/backend/internal/broker"
	"github.com/missoes/backend/internal/categories"
	"github.com/missoes/backend/internal/emaillogs"
	"github.com/missoes/backend/internal/events"
	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/missions"
	"github.com/missoes/backend/internal/notifications"
	"github.com/missoes/backend/internal/organizations"
	"github.com/missoes/backend/internal/realtime"
	"github.com/missoes/backend/internal/stats"
	"github.com/missoes/backend/internal/users"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/queue"
	"github.com/missoes/backend/pkg/redis"
	"github.com/missoes/backend/pkg/response"
	"github.com/missoes/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if !cfg.Keys.ServiceKeyConfigured() {
		logger.Warn("SERVICE_ROLE_KEY not configured; privileged routes and recovery links are disabled")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(cfg.Database.DSN()); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var images events.ImageStore
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ImagesBucket:         cfg.AWS.ImagesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			images = s3Client
		}
	}

	var publisher broker.Publisher = broker.Nop{}
	if cfg.AMQP.URL != "" {
		amqpPublisher := broker.NewAMQPPublisher(cfg.AMQP.URL, logger)
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	// Access
	accessStore := access.NewPostgresStore(pool)
	binder := access.NewBinder(accessStore, logger)
	accessCache := access.NewRedisCache(rdb.Client, cfg.Access.CacheTTL, logger)
	resolver := access.NewResolver(accessStore, binder, accessCache, logger)

	// Realtime
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	sessions := auth.NewSessionStore(rdb.Client)
	authenticator := auth.NewAuthenticator(jwtService, sessions)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	var recoveryKey string
	if cfg.Keys.ServiceKeyConfigured() {
		recoveryKey = cfg.Keys.ServiceRoleKey
	}
	recovery := auth.NewRecovery(recoveryKey, cfg.Keys.RecoveryTTL, cfg.Server.AppURL, sessions, jobQueue)

	authRepo := auth.NewRepository(pool)
	userRepo := users.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)
	notifier := notifications.NewNotifier(notificationRepo, hub, logger)
	authHandler := auth.NewHandler(pool, authRepo, userRepo, jwtService, sessions, recovery, notifier, resolver, logger)
	userHandler := users.NewHandler(userRepo, authRepo, resolver, logger)
	notificationHandler := notifications.NewHandler(notificationRepo, logger)

	// Domain
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo, organizations.NewProvisioner(pool), recovery, binder, resolver, logger)

	categoryHandler := categories.NewHandler(categories.NewRepository(pool), logger)

	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, images, publisher, logger)

	missionHandler := missions.NewHandler(missions.NewRepository(pool), eventRepo, notifier, publisher, logger)
	statsHandler := stats.NewHandler(stats.NewRepository(pool), logger)
	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool), logger)

	serverCtx, stop := context.WithCancel(context.Background())
	defer stop()
	authLimiter := middleware.NewIPRateLimiter(serverCtx, cfg.RateLimit.AuthPerSecond, cfg.RateLimit.AuthBurst, cfg.RateLimit.EvictTTL)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket (token in query; no Authorization header required)
	upgrader := realtime.NewUpgrader(middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins))
	router.GET("/ws", realtime.ServeWs(hub, authenticator, upgrader, logger))

	public := router.Group("")
	public.Use(middleware.APIKey(cfg.Keys), middleware.JWT(authenticator))

	authGroup := public.Group("/auth")
	authGroup.Use(middleware.RateLimit(authLimiter))
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/signin", authHandler.Signin)
		authGroup.POST("/signout", middleware.RequireLevel(resolver, access.LevelUser), authHandler.Signout)
		authGroup.POST("/recover/request", authHandler.RequestRecovery)
		authGroup.POST("/recover", authHandler.Recover)
	}

	// Public browsing
	public.GET("/events", eventHandler.List)
	public.GET("/events/:id", eventHandler.GetByID)
	public.GET("/categories", categoryHandler.List)
	public.GET("/categories/:id", categoryHandler.GetByID)

	// Signed-in users
	signedIn := public.Group("")
	signedIn.Use(middleware.RequireLevel(resolver, access.LevelUser))
	{
		signedIn.POST("/events/:id/accept", missionHandler.Accept)
		signedIn.GET("/events/:id/mission", missionHandler.EventMission)

		signedIn.GET("/me", userHandler.Me)
		signedIn.PATCH("/me", userHandler.UpdateMe)
		signedIn.GET("/me/role", userHandler.MyRole)
		signedIn.GET("/me/stats", missionHandler.MyStats)
		signedIn.GET("/me/missions", missionHandler.MyMissions)
		signedIn.PATCH("/me/missions/:eventId", missionHandler.UpdateMine)
		signedIn.DELETE("/me/missions/:eventId", missionHandler.DeleteMine)

		signedIn.GET("/me/notifications", notificationHandler.List)
		signedIn.GET("/me/notifications/recent", notificationHandler.Recent)
		signedIn.GET("/me/notifications/unread-count", notificationHandler.UnreadCount)
		signedIn.POST("/me/notifications/read-all", notificationHandler.MarkAllRead)
		signedIn.POST("/me/notifications/:id/read", notificationHandler.MarkRead)
		signedIn.DELETE("/me/notifications/read", notificationHandler.DeleteRead)
		signedIn.DELETE("/me/notifications/:id", notificationHandler.Delete)
	}

	// Back office: super admins and organization admins
	admin := public.Group("/admin")
	admin.Use(middleware.RequireLevel(resolver, access.LevelOrganization))
	{
		admin.GET("/stats", statsHandler.Summary)
		admin.GET("/stats/categories", statsHandler.Categories)
		admin.GET("/stats/activity", statsHandler.Activity)

		admin.GET("/organizations", orgHandler.List)
		admin.GET("/organizations/:id", orgHandler.GetByID)
		admin.PATCH("/organizations/:id", orgHandler.Update)
		admin.DELETE("/organizations/:id", orgHandler.Delete)

		manageEvent := events.RequireEventAccess(eventRepo, access.CanManageEvent, logger)
		viewParticipants := events.RequireEventAccess(eventRepo, access.CanViewParticipants, logger)
		admin.GET("/events", eventHandler.AdminList)
		admin.POST("/events", eventHandler.Create)
		admin.POST("/events/image-upload-url", eventHandler.ImageUploadURL)
		admin.POST("/events/image", eventHandler.UploadImage)
		admin.PATCH("/events/:id", manageEvent, eventHandler.Update)
		admin.DELETE("/events/:id", manageEvent, eventHandler.Delete)
		admin.GET("/events/:id/participants", viewParticipants, missionHandler.Participants)
		admin.GET("/events/:id/participants/count", viewParticipants, missionHandler.ParticipantCount)
		admin.PATCH("/participants/:id", missionHandler.UpdateParticipant)
	}

	// Back office: super admins only
	superAdmin := admin.Group("")
	superAdmin.Use(middleware.DenyOrganization())
	{
		superAdmin.POST("/organizations", orgHandler.Create)

		superAdmin.POST("/categories", categoryHandler.Create)
		superAdmin.PATCH("/categories/:id", categoryHandler.Update)
		superAdmin.DELETE("/categories/:id", categoryHandler.Delete)

		superAdmin.GET("/users", userHandler.List)
		superAdmin.GET("/users/:id", userHandler.GetByID)
		superAdmin.PATCH("/users/:id", userHandler.Update)
		superAdmin.DELETE("/users/:id", userHandler.Delete)
		superAdmin.PUT("/users/:id/role", userHandler.SetRole)
		superAdmin.POST("/users/:id/promote", userHandler.Promote)
		superAdmin.POST("/users/:id/demote", userHandler.Demote)
		superAdmin.GET("/roles", userHandler.ListRoles)

		superAdmin.GET("/email-logs", emailLogsHandler.List)
	}

	// Privileged routes backed by the service-role key
	privileged := router.Group("/api")
	privileged.Use(
		middleware.RequireServiceKey(cfg.Keys),
		middleware.JWT(authenticator),
		middleware.RequireLevel(resolver, access.LevelOrganization),
	)
	{
		privileged.POST("/organizations/:id/users", orgHandler.AddUser)
		privileged.GET("/organizations/:id/users", orgHandler.ListUsers)
		privileged.POST("/users/organizations", orgHandler.UserOrganizations)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
