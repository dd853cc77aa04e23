package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Switch-is-case/ChatBots-for-Learning/internal/app"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/transport/http/middleware"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
	logger      *zap.Logger
}

type chatRequest struct {
	Message        string `json:"message"`
	AgentID        string `json:"agentId"`
	ConversationID uint   `json:"conversationId"`
}

type welcomeRequest struct {
	AgentID string `json:"agentId"`
}

func NewChatHandler(chatService *app.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, logger: logger}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		response.Message(c, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" || req.AgentID == "" {
		response.Err(c, http.StatusBadRequest, "Message and agentId are required.")
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), app.SendMessageInput{
		UserID:         user.ID,
		AgentID:        req.AgentID,
		Content:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidAgent):
			response.Err(c, http.StatusBadRequest, "Invalid agent ID.")
		case errors.Is(err, app.ErrMessageEmpty):
			response.Err(c, http.StatusBadRequest, "Message and agentId are required.")
		case errors.Is(err, app.ErrConversationNotFound):
			response.Err(c, http.StatusNotFound, "Conversation not found.")
		default:
			h.logger.Error("chat turn failed", zap.Error(err))
			response.Err(c, http.StatusInternalServerError, "Failed to process chat message.")
		}
		return
	}

	body := gin.H{
		"answer":         result.Answer,
		"conversationId": result.ConversationID,
		"title":          result.Title,
	}
	if result.Created {
		body["newConversationId"] = result.NewConversationID
	}
	c.JSON(http.StatusOK, body)
}

func (h *ChatHandler) Welcome(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		response.Message(c, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req welcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AgentID == "" {
		response.Err(c, http.StatusBadRequest, "Agent ID is required.")
		return
	}

	welcome, err := h.chatService.GetWelcomeMessage(c.Request.Context(), user.ID, req.AgentID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidAgent):
			response.Err(c, http.StatusBadRequest, "Invalid agent ID.")
		default:
			h.logger.Error("welcome message failed", zap.Error(err))
			response.Err(c, http.StatusInternalServerError, "Failed to get welcome message.")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"welcomeMessage": welcome})
}
