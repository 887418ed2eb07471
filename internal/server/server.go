package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/brickly26/iMessage/internal/config"
	"github.com/brickly26/iMessage/internal/handler"
	"github.com/brickly26/iMessage/internal/middleware"
	"github.com/brickly26/iMessage/internal/redis"
	"github.com/brickly26/iMessage/internal/services"
	"github.com/brickly26/iMessage/internal/transport/httpdto"
	"github.com/brickly26/iMessage/internal/websocket"
	"github.com/brickly26/iMessage/pkg/logger"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

// Handlers bundles everything SetupRoutes mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	Friendship   *handler.FriendshipHandler
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	WebSocket    *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	switch cfg.Server.Environment {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter *redis.RateLimiter, db *gorm.DB) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	requireAuth := middleware.AuthMiddleware(authService)

	auth := s.engine.Group("/api/auth")
	auth.Use(middleware.AuthRateLimitMiddleware(limiter))
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
	}
	s.engine.GET("/api/auth/me", requireAuth, handlers.Auth.Me)

	users := s.engine.Group("/api/users", requireAuth)
	{
		users.PUT("/username", handlers.User.ClaimUsername)
		users.GET("/search", handlers.User.Search)
	}

	requests := s.engine.Group("/api/friend-requests", requireAuth)
	{
		requests.POST("", handlers.Friendship.Send)
		requests.GET("", handlers.Friendship.ListReceived)
		requests.POST("/:id/respond", handlers.Friendship.Respond)
	}

	conversations := s.engine.Group("/api/conversations", requireAuth)
	{
		conversations.POST("", handlers.Conversation.Create)
		conversations.GET("", handlers.Conversation.List)
		conversations.POST("/existing", handlers.Conversation.FindExisting)
		conversations.GET("/:id", handlers.Conversation.GetByID)
		conversations.PUT("/:id/participants", handlers.Conversation.UpdateParticipants)
		conversations.POST("/:id/read", handlers.Conversation.MarkRead)
		conversations.DELETE("/:id", handlers.Conversation.Delete)

		conversations.GET("/:id/messages", handlers.Message.List)
		conversations.POST("/:id/messages", middleware.MessageRateLimitMiddleware(limiter), handlers.Message.Send)
	}

	s.engine.GET("/ws", handlers.WebSocket.Connect)
}

// Start runs the server until SIGINT or SIGTERM, then shuts down with a
// five second grace period.
func (s *Server) Start() error {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("server error: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	s.logger.Infof("server running on :%s", s.config.Server.Port)

	<-quit
	s.logger.Infof("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("graceful shutdown failed: %s", err)
		return err
	}
	s.logger.Infof("server stopped")
	return nil
}
