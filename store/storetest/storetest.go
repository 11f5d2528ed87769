// Package storetest provides an in-memory Store for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"webchat/models"
)

// Mem is an in-memory store.Store with the same semantics as the Postgres
// implementation: a single demo user row, atomic exchange appends, ordered
// reads. Error fields inject failures per operation.
type Mem struct {
	mu            sync.Mutex
	user          *models.User
	conversations map[int64]*models.Conversation
	messages      []models.Message
	nextUserID    int64
	nextConvID    int64
	nextMsgID     int64

	EnsureUserErr   error
	FindUserErr     error
	CreateConvErr   error
	AppendErr       error
	ListMessagesErr error
	ListConvsErr    error
}

// New creates an empty in-memory store
func New() *Mem {
	return &Mem{
		conversations: make(map[int64]*models.Conversation),
		nextUserID:    1,
		nextConvID:    1,
		nextMsgID:     1,
	}
}

func (m *Mem) EnsureDemoUser(_ context.Context) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EnsureUserErr != nil {
		return models.User{}, m.EnsureUserErr
	}
	if m.user == nil {
		m.user = &models.User{
			ID:    m.nextUserID,
			Email: "demo@example.com",
			Name:  "Demo User",
		}
		m.nextUserID++
	}
	return *m.user, nil
}

func (m *Mem) FindDemoUser(_ context.Context) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FindUserErr != nil {
		return nil, m.FindUserErr
	}
	if m.user == nil {
		return nil, nil
	}
	user := *m.user
	return &user, nil
}

func (m *Mem) CreateConversation(_ context.Context, userID int64, title string) (models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateConvErr != nil {
		return models.Conversation{}, m.CreateConvErr
	}
	now := time.Now()
	conv := models.Conversation{
		ID:        m.nextConvID,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.nextConvID++
	m.conversations[conv.ID] = &conv
	return conv, nil
}

func (m *Mem) AppendExchange(_ context.Context, conversationID int64, userContent, assistantContent string) (models.Message, models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// All or nothing, like the transactional Postgres path
	if m.AppendErr != nil {
		return models.Message{}, models.Message{}, m.AppendErr
	}

	userAt := time.Now()
	assistantAt := time.Now()
	if !assistantAt.After(userAt) {
		assistantAt = userAt.Add(time.Microsecond)
	}

	userMsg := models.Message{
		ID:             m.nextMsgID,
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        userContent,
		CreatedAt:      userAt,
	}
	m.nextMsgID++
	assistantMsg := models.Message{
		ID:             m.nextMsgID,
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        assistantContent,
		CreatedAt:      assistantAt,
	}
	m.nextMsgID++

	m.messages = append(m.messages, userMsg, assistantMsg)
	if conv, ok := m.conversations[conversationID]; ok {
		conv.UpdatedAt = assistantAt
	}
	return userMsg, assistantMsg, nil
}

func (m *Mem) ListMessages(_ context.Context, conversationID int64) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListMessagesErr != nil {
		return nil, m.ListMessagesErr
	}
	out := []models.Message{}
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Mem) ListConversations(_ context.Context, userID int64) ([]models.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListConvsErr != nil {
		return nil, m.ListConvsErr
	}
	out := []models.ConversationSummary{}
	for _, conv := range m.conversations {
		if conv.UserID == userID {
			out = append(out, models.ConversationSummary{
				ID:        conv.ID,
				Title:     conv.Title,
				UpdatedAt: conv.UpdatedAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// UserCount reports how many user rows exist
func (m *Mem) UserCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return 0
	}
	return 1
}

// ConversationCount reports how many conversations exist
func (m *Mem) ConversationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}

// MessageCount reports how many messages exist across all conversations
func (m *Mem) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
