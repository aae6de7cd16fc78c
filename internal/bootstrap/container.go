package bootstrap

import (
	"log"

	"longevity-chat-be/internal/config"
	"longevity-chat-be/internal/controller"
	"longevity-chat-be/internal/pkg/logger"
	"longevity-chat-be/internal/pkg/serverutils"
	"longevity-chat-be/internal/repository/unitofwork"
	"longevity-chat-be/internal/service"
	"longevity-chat-be/pkg/agent"
	"longevity-chat-be/pkg/events"

	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AuthController  controller.IAuthController
	UserController  controller.IUserController
	ChatController  controller.IChatController
	AgentController controller.IAgentController

	// Shared infrastructure, exposed for main.go and shutdown.
	Logger logger.ILogger
	Bus    *events.Bus
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	bus := events.NewBus()

	// 3. Agent Gateway
	gateway, err := agent.NewClient(agent.Config{
		BaseURL:          cfg.Agent.BaseURL,
		Timeout:          cfg.Agent.Timeout,
		OutputPathPrefix: cfg.Agent.OutputPathPrefix,
	}, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize agent gateway: %v", err)
	}

	// 4. Services
	authService := service.NewAuthService(uowFactory, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	userService := service.NewUserService(uowFactory)
	chatService := service.NewChatService(uowFactory, bus, sysLogger)

	// 5. Controllers
	auth := serverutils.NewAuthMiddleware(cfg.Auth.JWTSecret)

	return &Container{
		AuthController:  controller.NewAuthController(authService, auth, cfg.Auth.TokenExpiry),
		UserController:  controller.NewUserController(userService, auth),
		ChatController:  controller.NewChatController(chatService, auth),
		AgentController: controller.NewAgentController(gateway),

		Logger: sysLogger,
		Bus:    bus,
	}
}
