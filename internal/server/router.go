package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/pinechat-backend/internal/handlers"
	"github.com/yungbote/pinechat-backend/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins []string
	AuthMiddleware *middleware.AuthMiddleware
	ChatHandler    *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-User-UUID"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	chat := router.Group("/chat")
	chat.Use(cfg.AuthMiddleware.RequireUser())
	chat.POST("/new", cfg.ChatHandler.CreateConversation)
	chat.GET("/list", cfg.ChatHandler.ListConversations)
	chat.GET("/user/stats", cfg.ChatHandler.GetUserStats)
	chat.GET("/:conversation_id", cfg.ChatHandler.GetConversation)
	chat.POST("/:conversation_id/message", cfg.ChatHandler.SendMessage)
	// Legacy clients post straight to the conversation id.
	chat.POST("/:conversation_id", cfg.ChatHandler.SendMessage)
	chat.PUT("/:conversation_id/name", cfg.ChatHandler.RenameConversation)
	chat.DELETE("/:conversation_id", cfg.ChatHandler.DeleteConversation)

	return router
}
