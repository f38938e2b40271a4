package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/treehole/backend/internal/auth"
	"github.com/treehole/backend/internal/cache"
	"github.com/treehole/backend/internal/config"
	"github.com/treehole/backend/internal/database"
	"github.com/treehole/backend/internal/directory"
	"github.com/treehole/backend/internal/handlers"
	"github.com/treehole/backend/internal/logger"
	"github.com/treehole/backend/internal/middleware"
	"github.com/treehole/backend/internal/notify"
	"github.com/treehole/backend/internal/websocket"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Log.Sync() }()

	logger.Log.Info("Treehole notification backend starting",
		zap.String("environment", cfg.Environment))

	// Relational database (user accounts)
	if err := database.Initialize(cfg.DatabaseURL, cfg.Environment); err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Notification store (MongoDB)
	mongoCtx, mongoCancel := context.WithTimeout(context.Background(), 60*time.Second)
	mongoDB, err := database.ConnectMongo(mongoCtx, cfg.MongoURL, cfg.MongoDatabase)
	mongoCancel()
	if err != nil {
		logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	store := notify.NewMongoStore(mongoDB)
	indexCtx, indexCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureIndexes(indexCtx); err != nil {
		logger.Log.Fatal("Failed to ensure notification indexes", zap.Error(err))
	}
	indexCancel()

	// Redis is optional: the unread-count cache and rate limiter degrade
	// without it.
	redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	if err != nil {
		logger.Log.Warn("Redis unavailable, continuing without cache", zap.Error(err))
	} else {
		defer func() { _ = redisClient.Close() }()
	}

	authService := auth.NewService(database.DB, cfg.JWTSecret, cfg.TokenTTL)
	dir := directory.New(database.DB)

	// WebSocket delivery channel
	wsHub := websocket.NewHub()
	go wsHub.Run()
	wsHandler := websocket.NewHandler(wsHub, cfg.JWTSecret)

	// Fan-out orchestrator, pushing through the websocket handler
	notifyService := notify.NewService(store, dir, wsHandler)

	h := handlers.New(authService, store, notifyService)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging())
	r.Use(middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register",
				middleware.RateLimit("auth_register", 5, time.Minute), h.Register)
			authGroup.POST("/login",
				middleware.RateLimit("auth_login", 10, time.Minute), h.Login)
			authGroup.GET("/me", middleware.RequireAuth(authService), h.Me)
		}

		notifications := api.Group("/notifications")
		{
			notifications.Use(middleware.RequireAuth(authService))
			notifications.GET("", h.ListNotifications)
			notifications.GET("/unread-count", h.UnreadCount)
			notifications.POST("/broadcast", h.AnnounceBroadcast)
			notifications.PUT("/read-all", h.MarkAllRead)
			notifications.PUT("/:id/read", h.MarkNotificationRead)
			notifications.DELETE("", h.ClearNotifications)
			// Older clients call DELETE /all.
			notifications.DELETE("/all", h.ClearNotifications)
		}

		ws := api.Group("/ws")
		{
			// Auth via ?token=... or Authorization header; anonymous
			// connections receive broadcasts only.
			ws.GET("", wsHandler.HandleWebSocket)
			ws.GET("/connect", wsHandler.HandleWebSocket)
			ws.GET("/stats", middleware.RequireAuth(authService), wsHandler.HandleStats)
		}
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		logger.Log.Info("HTTP server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := wsHandler.Shutdown(ctx); err != nil {
		logger.Log.Warn("WebSocket shutdown incomplete", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}
