package models

import (
	"time"
)

// Role values for chat messages
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User is the implicit demo user the whole system runs under
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Conversation represents a chat conversation owned by a user
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationSummary is the reduced shape returned by the conversation listing
type ConversationSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message represents a single turn in a conversation
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           string    `json:"role"` // "user" or "assistant"
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageView is the wire shape of a message in the read path
type MessageView struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// View reduces a Message to its wire shape
func (m Message) View() MessageView {
	return MessageView{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// ChatRequest is the request body for sending a chat message
type ChatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID *int64 `json:"conversationId"`
}

// ChatResponse is the response for a chat message: the assistant turn
// plus the conversation it landed in
type ChatResponse struct {
	ID             int64     `json:"id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	ConversationID int64     `json:"conversationId"`
}
