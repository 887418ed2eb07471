package main

import (
	"context"
	"log"

	"github.com/brickly26/iMessage/internal/config"
	"github.com/brickly26/iMessage/internal/events"
	"github.com/brickly26/iMessage/internal/handler"
	appredis "github.com/brickly26/iMessage/internal/redis"
	"github.com/brickly26/iMessage/internal/repository"
	"github.com/brickly26/iMessage/internal/server"
	"github.com/brickly26/iMessage/internal/services"
	"github.com/brickly26/iMessage/internal/websocket"
	"github.com/brickly26/iMessage/pkg/database"
	"github.com/brickly26/iMessage/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	l := logger.New(cfg.Server.Environment)
	defer l.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		l.Errorf("connect database: %v", err)
		return
	}
	if err := database.Migrate(db); err != nil {
		l.Errorf("migrate database: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	var pub events.Publisher = bus
	var limiter *appredis.RateLimiter

	if cfg.Redis.Enabled {
		client, err := appredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			l.Errorf("connect redis: %v", err)
			return
		}
		defer client.Close()

		bridge := events.NewBridge(client, bus, l)
		pub = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				l.Errorf("event bridge stopped: %v", err)
			}
		}()

		limiter = appredis.NewRateLimiter(client, appredis.DefaultRateLimitConfig())
	}

	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	friendRepo := repository.NewFriendshipRepository(db)

	timeout := cfg.Server.StoreTimeout
	authService := services.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, l, timeout)
	friendshipService := services.NewFriendshipService(db, friendRepo, userRepo, pub, l, timeout)
	conversationService := services.NewConversationService(db, convRepo, msgRepo, userRepo, pub, l, timeout)
	messageService := services.NewMessageService(db, msgRepo, convRepo, userRepo, friendshipService, pub, l, timeout)
	userService := services.NewUserService(userRepo, friendshipService, l, timeout)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	gateway := websocket.NewGateway(bus, websocket.NewAuthorizer(convRepo), l)

	handlers := &server.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService),
		Friendship:   handler.NewFriendshipHandler(friendshipService),
		Conversation: handler.NewConversationHandler(conversationService),
		Message:      handler.NewMessageHandler(messageService),
		WebSocket:    websocket.NewHandler(authService, hub, gateway, l),
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(handlers, authService, limiter, db)

	if err := srv.Start(); err != nil {
		l.Errorf("server exited: %v", err)
	}
}
