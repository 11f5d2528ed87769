package handlers

import (
	"net/http"
	"strconv"

	"webchat/models"
	"webchat/store"
	"webchat/workflows"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	store  store.Store
	sender workflows.Sender
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(st store.Store, sender workflows.Sender, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		store:  st,
		sender: sender,
		logger: logger,
	}
}

// PostChat accepts a chat message, appends the exchange to its conversation
// (creating one when no id is given) and returns the assistant reply
func (h *ChatHandler) PostChat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	output, err := h.sender.Send(c.Request.Context(), workflows.SendMessageInput{
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		h.logger.Error("send message failed",
			zap.Error(err),
			zap.Int64p("conversation_id", req.ConversationID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, models.ChatResponse{
		ID:             output.AssistantMessage.ID,
		Role:           output.AssistantMessage.Role,
		Content:        output.AssistantMessage.Content,
		CreatedAt:      output.AssistantMessage.CreatedAt,
		ConversationID: output.ConversationID,
	})
}

// GetChat is the read path. With a conversationId query parameter it returns
// that conversation's messages oldest first; without one it returns the demo
// user's conversations, most recently active first.
func (h *ChatHandler) GetChat(c *gin.Context) {
	if raw, ok := c.GetQuery("conversationId"); ok {
		conversationID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
			return
		}
		h.getMessages(c, conversationID)
		return
	}
	h.getConversations(c)
}

func (h *ChatHandler) getMessages(c *gin.Context, conversationID int64) {
	messages, err := h.store.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		h.logger.Error("list messages failed",
			zap.Error(err),
			zap.Int64("conversation_id", conversationID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	views := make([]models.MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, msg.View())
	}
	c.JSON(http.StatusOK, views)
}

func (h *ChatHandler) getConversations(c *gin.Context) {
	user, err := h.store.FindDemoUser(c.Request.Context())
	if err != nil {
		h.logger.Error("find demo user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if user == nil {
		// Nothing was ever sent; there is nothing to list
		c.JSON(http.StatusOK, []models.ConversationSummary{})
		return
	}

	conversations, err := h.store.ListConversations(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("list conversations failed",
			zap.Error(err),
			zap.Int64("user_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, conversations)
}
