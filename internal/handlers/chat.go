package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/pinechat-backend/internal/logger"
	"github.com/yungbote/pinechat-backend/internal/middleware"
	"github.com/yungbote/pinechat-backend/internal/services"
)

type ChatHandler struct {
	log         *logger.Logger
	chatService services.ChatService
}

func NewChatHandler(log *logger.Logger, chatService services.ChatService) *ChatHandler {
	handlerLog := log.With("handler", "ChatHandler")
	return &ChatHandler{log: handlerLog, chatService: chatService}
}

func (ch *ChatHandler) CreateConversation(c *gin.Context) {
	var req struct {
		ThreadName string `json:"thread_name"`
	}
	// Body is optional: an empty body means a default thread name.
	_ = c.ShouldBindJSON(&req)

	result, err := ch.chatService.CreateConversation(c.Request.Context(), middleware.UserUUID(c), req.ThreadName)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": result.ConversationID,
		"thread_name":     result.ThreadName,
		"message":         "New conversation created",
	})
}

func (ch *ChatHandler) ListConversations(c *gin.Context) {
	summaries, err := ch.chatService.ListConversations(c.Request.Context(), middleware.UserUUID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversations": summaries,
		"total":         len(summaries),
	})
}

func (ch *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := ch.chatService.GetConversation(c.Request.Context(), middleware.UserUUID(c), c.Param("conversation_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (ch *ChatHandler) SendMessage(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := ch.chatService.ProcessMessage(c.Request.Context(), middleware.UserUUID(c), c.Param("conversation_id"), req.Message)
	if err != nil {
		// A generation fault still carries the persisted error turn.
		if result != nil {
			c.JSON(statusForErr(err), gin.H{
				"error":           err.Error(),
				"response":        result.Response,
				"conversation_id": result.ConversationID,
				"thread_name":     result.ThreadName,
				"tokens":          0,
				"cost":            0,
			})
			return
		}
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response":        result.Response,
		"conversation_id": result.ConversationID,
		"thread_name":     result.ThreadName,
		"tokens":          result.Tokens,
		"cost":            result.Cost,
	})
}

func (ch *ChatHandler) RenameConversation(c *gin.Context) {
	var req struct {
		NewName string `json:"new_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := ch.chatService.RenameThread(c.Request.Context(), middleware.UserUUID(c), c.Param("conversation_id"), req.NewName)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Thread renamed to \"" + req.NewName + "\""})
}

func (ch *ChatHandler) DeleteConversation(c *gin.Context) {
	err := ch.chatService.DeleteConversation(c.Request.Context(), middleware.UserUUID(c), c.Param("conversation_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

func (ch *ChatHandler) GetUserStats(c *gin.Context) {
	stats, err := ch.chatService.UserStats(c.Request.Context(), middleware.UserUUID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
