package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Switch-is-case/ChatBots-for-Learning/internal/app"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/transport/http/middleware"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/transport/http/response"
)

type ConversationHandler struct {
	chatService *app.ChatService
	logger      *zap.Logger
}

func NewConversationHandler(chatService *app.ChatService, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{chatService: chatService, logger: logger}
}

func (h *ConversationHandler) List(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		response.Message(c, http.StatusUnauthorized, "Authentication required.")
		return
	}

	conversations, err := h.chatService.ListConversations(user.ID)
	if err != nil {
		h.logger.Error("list conversations failed", zap.Error(err))
		response.Message(c, http.StatusInternalServerError, "Server error while fetching conversations.")
		return
	}

	summaries := make([]gin.H, 0, len(conversations))
	for _, conversation := range conversations {
		summaries = append(summaries, gin.H{
			"id":        conversation.ID,
			"title":     conversation.Title,
			"agentName": conversation.AgentName,
			"createdAt": conversation.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *ConversationHandler) Get(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		response.Message(c, http.StatusUnauthorized, "Authentication required.")
		return
	}

	conversationID, ok := parseConversationID(c)
	if !ok {
		response.Message(c, http.StatusNotFound, "Conversation not found.")
		return
	}

	conversation, messages, err := h.chatService.GetConversation(c.Request.Context(), user.ID, conversationID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrConversationNotFound), errors.Is(err, app.ErrInvalidInput):
			response.Message(c, http.StatusNotFound, "Conversation not found.")
		default:
			h.logger.Error("get conversation failed", zap.Error(err))
			response.Message(c, http.StatusInternalServerError, "Server error while fetching conversation details.")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                 conversation.ID,
		"agentId":            conversation.AgentID,
		"agentName":          conversation.AgentName,
		"difyConversationId": conversation.DifyConversationID,
		"title":              conversation.Title,
		"messages":           messages,
		"createdAt":          conversation.CreatedAt,
		"updatedAt":          conversation.UpdatedAt,
	})
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		response.Message(c, http.StatusUnauthorized, "Authentication required.")
		return
	}

	conversationID, ok := parseConversationID(c)
	if !ok {
		response.Message(c, http.StatusNotFound, "Conversation not found.")
		return
	}

	if err := h.chatService.DeleteConversation(c.Request.Context(), user.ID, conversationID); err != nil {
		switch {
		case errors.Is(err, app.ErrConversationNotFound), errors.Is(err, app.ErrInvalidInput):
			response.Message(c, http.StatusNotFound, "Conversation not found.")
		default:
			h.logger.Error("delete conversation failed", zap.Error(err))
			response.Message(c, http.StatusInternalServerError, "Server error while deleting conversation.")
		}
		return
	}

	response.Message(c, http.StatusOK, "Conversation deleted successfully.")
}

func parseConversationID(c *gin.Context) (uint, bool) {
	raw, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || raw == 0 {
		return 0, false
	}
	return uint(raw), true
}
