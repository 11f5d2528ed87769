package store

import (
	"context"
	"database/sql"
	"time"

	"webchat/models"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// Demo user identity used until real authentication exists
const (
	DemoUserEmail = "demo@example.com"
	DemoUserName  = "Demo User"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversations (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    title TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
    id BIGSERIAL PRIMARY KEY,
    conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id, updated_at DESC);`

// Store is the storage accessor for users, conversations and messages
type Store interface {
	// EnsureDemoUser returns the demo user, creating it on first use.
	// The unique email constraint guarantees at most one row exists no
	// matter how many callers race through here.
	EnsureDemoUser(ctx context.Context) (models.User, error)

	// FindDemoUser returns the demo user, or nil if none was created yet
	FindDemoUser(ctx context.Context) (*models.User, error)

	// CreateConversation creates a conversation owned by the given user
	CreateConversation(ctx context.Context, userID int64, title string) (models.Conversation, error)

	// AppendExchange appends a user/assistant message pair to a
	// conversation and bumps its recency, all in one transaction
	AppendExchange(ctx context.Context, conversationID int64, userContent, assistantContent string) (models.Message, models.Message, error)

	// ListMessages returns a conversation's messages, oldest first.
	// Unknown or empty conversations yield an empty slice.
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)

	// ListConversations returns a user's conversations, most recently
	// active first
	ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error)
}

// DB is the Postgres-backed Store
type DB struct {
	db *sql.DB
}

// New opens the database and bootstraps the schema
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping database")
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "bootstrap schema")
	}

	return &DB{db: db}, nil
}

// Close closes the underlying connection pool
func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) EnsureDemoUser(ctx context.Context) (models.User, error) {
	var user models.User
	// DO UPDATE instead of DO NOTHING so RETURNING yields the existing
	// row on conflict
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, name) VALUES ($1, $2)
		 ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, email, name`,
		DemoUserEmail, DemoUserName).
		Scan(&user.ID, &user.Email, &user.Name)
	if err != nil {
		return models.User{}, errors.Wrap(err, "ensure demo user")
	}
	return user, nil
}

func (s *DB) FindDemoUser(ctx context.Context) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, name FROM users WHERE email = $1",
		DemoUserEmail).
		Scan(&user.ID, &user.Email, &user.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find demo user")
	}
	return &user, nil
}

func (s *DB) CreateConversation(ctx context.Context, userID int64, title string) (models.Conversation, error) {
	conv := models.Conversation{UserID: userID, Title: title}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO conversations (user_id, title) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		userID, title).
		Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return models.Conversation{}, errors.Wrap(err, "create conversation")
	}
	return conv, nil
}

func (s *DB) AppendExchange(ctx context.Context, conversationID int64, userContent, assistantContent string) (models.Message, models.Message, error) {
	userMsg := models.Message{
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        userContent,
	}
	assistantMsg := models.Message{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        assistantContent,
	}

	// timestamptz keeps microseconds; nudge the assistant timestamp so
	// the pair stays strictly ordered even when the clock reads equal
	userMsg.CreatedAt = time.Now()
	assistantMsg.CreatedAt = time.Now()
	if !assistantMsg.CreatedAt.After(userMsg.CreatedAt) {
		assistantMsg.CreatedAt = userMsg.CreatedAt.Add(time.Microsecond)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Message{}, models.Message{}, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	const insertMessage = `INSERT INTO messages (conversation_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`

	if err := tx.QueryRowContext(ctx, insertMessage,
		conversationID, userMsg.Role, userMsg.Content, userMsg.CreatedAt).
		Scan(&userMsg.ID); err != nil {
		return models.Message{}, models.Message{}, errors.Wrap(err, "save user message")
	}

	if err := tx.QueryRowContext(ctx, insertMessage,
		conversationID, assistantMsg.Role, assistantMsg.Content, assistantMsg.CreatedAt).
		Scan(&assistantMsg.ID); err != nil {
		return models.Message{}, models.Message{}, errors.Wrap(err, "save assistant message")
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = $1 WHERE id = $2",
		assistantMsg.CreatedAt, conversationID); err != nil {
		return models.Message{}, models.Message{}, errors.Wrap(err, "touch conversation")
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, models.Message{}, errors.Wrap(err, "commit exchange")
	}
	return userMsg, assistantMsg, nil
}

func (s *DB) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = $1
		 ORDER BY created_at ASC, id ASC`,
		conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *DB) ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, updated_at FROM conversations
		 WHERE user_id = $1 ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	defer rows.Close()

	conversations := []models.ConversationSummary{}
	for rows.Next() {
		var conv models.ConversationSummary
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan conversation")
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}
