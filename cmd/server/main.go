package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messenger/internal/config"
	"messenger/internal/handler"
	"messenger/internal/middleware"
	"messenger/internal/realtime"
	"messenger/internal/repository"
	"messenger/internal/service"
	"messenger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger := logger.New(cfg.Log.Level)

	// Подключение к MongoDB
	mongoCtx, cancelMongo := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	defer cancelMongo()

	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		appLogger.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			appLogger.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}()

	if err := mongoClient.Ping(mongoCtx, readpref.Primary()); err != nil {
		appLogger.Fatal("Failed to ping MongoDB", "error", err)
	}
	appLogger.Info("MongoDB connection established")

	db := mongoClient.Database(cfg.Mongo.Database)

	// Подключение к Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	// Инициализация репозиториев
	repos := repository.NewRepositories(db, rdb, appLogger)

	// Реестр подключений и рассылка событий
	registry := realtime.NewRegistry(appLogger)
	broadcaster := realtime.NewBroadcaster(registry, repos.User, appLogger)

	// Инициализация сервисов
	services := service.NewServices(repos, broadcaster, cfg, appLogger)

	// Хаб websocket-подключений
	hub := realtime.NewHub(registry, broadcaster, services.Auth, services.Authz, repos.User, appLogger)

	// Инициализация middleware
	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	// Инициализация handlers
	handlers := handler.NewHandlers(services, hub, cfg, appLogger)

	// Настройка роутера
	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	// Запуск HTTP сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	// Health check
	router.GET("/health", handlers.Health.Check)

	// WebSocket: аутентификация первым кадром внутри соединения
	router.GET("/ws", handlers.WebSocket.Handle)

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth())
	{
		// Пользователи
		users := v1.Group("/users")
		{
			users.GET("/me", handlers.User.GetMe)
			users.PUT("/me", handlers.User.UpdateMe)
			users.GET("/search", handlers.User.Search)
			users.GET("/:id", handlers.User.GetByID)
		}

		// Контакты
		friends := v1.Group("/friends")
		{
			friends.GET("", handlers.Friend.ListFriends)
			friends.POST("/requests", rateLimitMiddleware.Limit("friend_request", 20, 60), handlers.Friend.SendRequest)
			friends.GET("/requests", handlers.Friend.ListRequests)
			friends.POST("/requests/:id/accept", handlers.Friend.Accept)
			friends.POST("/requests/:id/reject", handlers.Friend.Reject)
			friends.GET("/blocked", handlers.Friend.ListBlocked)
			friends.POST("/blocked/:id", handlers.Friend.Block)
			friends.DELETE("/blocked/:id", handlers.Friend.Unblock)
		}

		// Чаты
		chats := v1.Group("/chats")
		{
			chats.POST("", rateLimitMiddleware.Limit("create_chat", 10, 60), handlers.Chat.Create)
			chats.GET("", handlers.Chat.List)
			chats.GET("/:id", handlers.Chat.GetByID)
			chats.PUT("/:id", handlers.Chat.Update)
			chats.POST("/:id/members", handlers.Chat.AddMembers)
			chats.DELETE("/:id/members/:userId", handlers.Chat.RemoveMember)
			chats.POST("/:id/join", handlers.Chat.Join)
			chats.POST("/:id/leave", handlers.Chat.Leave)
			chats.POST("/:id/bans/:userId", handlers.Chat.Ban)
			chats.DELETE("/:id/bans/:userId", handlers.Chat.Unban)
			chats.POST("/:id/admins/:userId", handlers.Chat.Promote)
			chats.DELETE("/:id/admins/:userId", handlers.Chat.Demote)
			chats.PUT("/:id/permissions", handlers.Chat.SetDefaultPermissions)
			chats.PUT("/:id/restrictions/:userId", handlers.Chat.SetRestrictions)

			// Сообщения
			chats.POST("/:id/messages", rateLimitMiddleware.Limit("send_message", 60, 60), handlers.Message.Send)
			chats.GET("/:id/messages", handlers.Message.List)
			chats.PUT("/:id/messages/:messageId", handlers.Message.Edit)
			chats.DELETE("/:id/messages/:messageId", handlers.Message.Delete)
			chats.POST("/:id/messages/:messageId/reactions", handlers.Message.React)
			chats.POST("/:id/messages/:messageId/read", handlers.Message.MarkRead)
			chats.POST("/:id/messages/:messageId/delivered", handlers.Message.MarkDelivered)
			chats.POST("/:id/messages/:messageId/pin", handlers.Message.Pin)
			chats.DELETE("/:id/messages/:messageId/pin", handlers.Message.Unpin)
			chats.POST("/:id/messages/:messageId/forward", handlers.Message.Forward)
		}
	}

	return router
}
