package main

import (
	"fmt"
	"os"

	"github.com/yungbote/pinechat-backend/internal/config"
	"github.com/yungbote/pinechat-backend/internal/db"
	"github.com/yungbote/pinechat-backend/internal/handlers"
	"github.com/yungbote/pinechat-backend/internal/logger"
	"github.com/yungbote/pinechat-backend/internal/middleware"
	"github.com/yungbote/pinechat-backend/internal/repos"
	"github.com/yungbote/pinechat-backend/internal/server"
	"github.com/yungbote/pinechat-backend/internal/services"
	"github.com/yungbote/pinechat-backend/internal/utils"
)

func main() {
	// Logger
	logMode := utils.GetEnv("LOG_MODE", "development", nil)
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration from main...")
	cfg, err := config.Load(log)
	if err != nil {
		log.Error("Could not load config", "error", err)
		os.Exit(1)
	}

	// Conversation store
	log.Info("Setting up conversation store from main...", "driver", cfg.Storage.Driver)
	var conversationRepo repos.ConversationRepo
	switch cfg.Storage.Driver {
	case config.DriverFile:
		conversationRepo, err = repos.NewFileConversationRepo(cfg.Storage.Root, log)
		if err != nil {
			log.Error("Could not init file conversation store", "error", err)
			os.Exit(1)
		}
	default:
		databaseService, dbErr := db.NewDatabaseService(cfg, log)
		if dbErr != nil {
			log.Error("Could not init database", "error", dbErr)
			os.Exit(1)
		}
		if err := databaseService.AutoMigrateAll(); err != nil {
			log.Error("Auto migration failed", "error", err)
			os.Exit(1)
		}
		conversationRepo = repos.NewDBConversationRepo(databaseService.DB(), log)
	}

	// Services
	log.Info("Setting up services from main...")
	agent, err := services.NewPineScriptAgent(cfg, log)
	if err != nil {
		log.Error("Could not init PineScriptAgent", "error", err)
		os.Exit(1)
	}
	chatService := services.NewChatService(log, conversationRepo, agent)

	// Handlers
	log.Info("Setting up handlers from main...")
	chatHandler := handlers.NewChatHandler(log, chatService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, cfg)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		AuthMiddleware: authMiddleware,
		ChatHandler:    chatHandler,
	})

	fmt.Printf("Server listening on :%s\n", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
