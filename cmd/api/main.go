package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"forum-chat/config"
	"forum-chat/internal/events"
	"forum-chat/internal/handler"
	"forum-chat/internal/middleware"
	"forum-chat/internal/policy"
	"forum-chat/internal/presence"
	appredis "forum-chat/internal/redis"
	"forum-chat/internal/repository"
	"forum-chat/internal/services"
	"forum-chat/internal/websocket"
	"forum-chat/pkg/database"
	"forum-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()

	appLogger := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(appLogger)

	// Connect to Database
	database.Connect(cfg)
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}

	// Redis: event fan-out plus rate limiting
	appredis.Initialize(appredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	redisClient := appredis.GetClient()
	publisher := events.NewRedisPublisher(redisClient)
	limiter := appredis.NewRateLimiter(redisClient, appredis.DefaultRateLimitConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories
	userRepo := repository.NewUserRepository(database.DB)
	convRepo := repository.NewConversationRepository(database.DB)
	msgRepo := repository.NewMessageRepository(database.DB)

	// Presence tracker, mirrored into the users table
	tracker := presence.NewTracker(publisher, userRepo, appLogger, presence.Config{
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		SweepInterval:    cfg.SweepInterval,
		TypingTTL:        cfg.TypingTTL,
	})
	go tracker.Run(ctx)

	// Services
	authService := services.NewAuthService(cfg)
	userService := services.NewUserService(userRepo, tracker)
	deliveryService := services.NewDeliveryService(
		convRepo, msgRepo, userRepo,
		policy.NewAcceptanceEngine(),
		tracker, publisher, appLogger,
		services.DeliveryConfig{
			RecallWindow:     cfg.RecallWindow,
			MaxContentLength: cfg.MaxContentLength,
			DefaultPageSize:  cfg.DefaultPageSize,
			MaxPageSize:      cfg.MaxPageSize,
		},
	)

	// WebSocket hub plus the Redis bridge feeding it
	hub := websocket.NewHub()
	go hub.Run(ctx)

	bridge := websocket.NewRedisBridge(appredis.NewSubscriber(redisClient), hub)
	go func() {
		if err := bridge.Run(ctx, []string{events.ChannelPattern}); err != nil && ctx.Err() == nil {
			appLogger.Errorf("redis bridge stopped: %v", err)
		}
	}()

	// Handlers
	messageHandler := handler.NewMessageHandler(deliveryService)
	conversationHandler := handler.NewConversationHandler(deliveryService)
	presenceHandler := handler.NewPresenceHandler(userService)
	wsHandler := websocket.NewHandler(authService, deliveryService, tracker, hub, limiter)

	if cfg.AppMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(appLogger))
	r.Use(middleware.ErrorHandler(appLogger))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(authService))
	{
		api.POST("/conversations", conversationHandler.Create)
		api.GET("/conversations", conversationHandler.List)
		api.GET("/conversations/:id/messages", conversationHandler.Messages)
		api.POST("/conversations/:id/read", conversationHandler.MarkAllRead)
		api.DELETE("/conversations/:id/messages", conversationHandler.DeleteAllMessages)
		api.PUT("/conversations/:id/acceptance-settings", conversationHandler.UpdateAcceptanceSettings)
		api.PUT("/conversations/:id/status", conversationHandler.SetStatus)
		api.PUT("/conversations/:id/notification-settings", conversationHandler.UpdateNotificationSettings)

		api.POST("/messages", middleware.MessageRateLimitMiddleware(limiter), messageHandler.Send)
		api.PUT("/messages/:id", messageHandler.Edit)
		api.DELETE("/messages/:id", messageHandler.Delete)
		api.POST("/messages/:id/read", messageHandler.MarkRead)
		api.POST("/messages/:id/accept", messageHandler.Accept)
		api.POST("/messages/:id/reject", messageHandler.Reject)
		api.POST("/messages/:id/recall", messageHandler.Recall)
		api.GET("/messages/pending/count", messageHandler.PendingCount)
		api.GET("/messages/unread/count", messageHandler.UnreadCount)

		api.GET("/presence/online", presenceHandler.Online)
	}

	// The socket authenticates via query token, so it sits outside the
	// bearer-auth group.
	r.GET("/ws", wsHandler.Connect)

	appLogger.Infof("Starting server on port %s", cfg.AppPort)
	if err := r.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
