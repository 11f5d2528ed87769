package client

import (
	"context"
	"sync"
	"time"

	"webchat/models"

	"github.com/pkg/errors"
)

// ErrReplyPending is returned when a send is attempted while an earlier
// send has not been confirmed or rolled back yet
var ErrReplyPending = errors.New("a reply is already pending")

// Entry is one visible message. A pending entry is the optimistic copy of a
// user message that the server has not confirmed; its LocalID lives in a
// private namespace and is never persisted.
type Entry struct {
	LocalID int64
	Message models.MessageView
	Pending bool
}

// Controller holds the session's believed chat state. It is a cache over
// the server, never the source of truth: every list it holds can be
// reconstructed with a fetch.
type Controller struct {
	api *APIClient

	mu            sync.Mutex
	messages      []Entry
	conversations []models.ConversationSummary
	activeID      *int64
	awaitingReply bool
	localClock    int64
}

// NewController creates a controller with empty state
func NewController(api *APIClient) *Controller {
	return &Controller{api: api}
}

// Send optimistically appends the user message, posts it, and reconciles
// with the server's reply. On failure the optimistic entry is removed and
// the visible state is as if the send never happened.
func (c *Controller) Send(ctx context.Context, content string) error {
	c.mu.Lock()
	if c.awaitingReply {
		c.mu.Unlock()
		return ErrReplyPending
	}
	c.awaitingReply = true
	c.localClock++
	localID := c.localClock
	conversationID := c.activeID
	c.messages = append(c.messages, Entry{
		LocalID: localID,
		Pending: true,
		Message: models.MessageView{
			Role:      models.RoleUser,
			Content:   content,
			CreatedAt: time.Now(),
		},
	})
	c.mu.Unlock()

	resp, err := c.api.Send(ctx, content, conversationID)

	c.mu.Lock()
	c.awaitingReply = false
	if err != nil {
		c.removeLocked(localID)
		c.mu.Unlock()
		return errors.Wrap(err, "send message")
	}

	adopted := false
	if c.activeID == nil {
		id := resp.ConversationID
		c.activeID = &id
		adopted = true
	}
	c.confirmLocked(localID)
	c.messages = append(c.messages, Entry{
		Message: models.MessageView{
			ID:        resp.ID,
			Role:      resp.Role,
			Content:   resp.Content,
			CreatedAt: resp.CreatedAt,
		},
	})
	c.mu.Unlock()

	if adopted {
		// Best effort; the sidebar catches up on the next refresh
		_ = c.RefreshConversations(ctx)
	}
	return nil
}

// SelectConversation discards the visible list and loads the selected
// conversation in full
func (c *Controller) SelectConversation(ctx context.Context, conversationID int64) error {
	views, err := c.api.Messages(ctx, conversationID)
	if err != nil {
		return errors.Wrap(err, "fetch messages")
	}

	entries := make([]Entry, 0, len(views))
	for _, view := range views {
		entries = append(entries, Entry{Message: view})
	}

	c.mu.Lock()
	c.messages = entries
	c.activeID = &conversationID
	c.mu.Unlock()
	return nil
}

// NewChat clears the visible state without touching the network
func (c *Controller) NewChat() {
	c.mu.Lock()
	c.messages = nil
	c.activeID = nil
	c.mu.Unlock()
}

// RefreshConversations reloads the conversation list
func (c *Controller) RefreshConversations(ctx context.Context) error {
	conversations, err := c.api.Conversations(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch conversations")
	}

	c.mu.Lock()
	c.conversations = conversations
	c.mu.Unlock()
	return nil
}

// Messages returns a copy of the visible message list
func (c *Controller) Messages() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.messages))
	copy(out, c.messages)
	return out
}

// Conversations returns a copy of the conversation list
func (c *Controller) Conversations() []models.ConversationSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ConversationSummary, len(c.conversations))
	copy(out, c.conversations)
	return out
}

// ActiveConversationID returns the active conversation id, or nil on a new
// chat
func (c *Controller) ActiveConversationID() *int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == nil {
		return nil
	}
	id := *c.activeID
	return &id
}

// AwaitingReply reports whether a send is in flight; the UI disables the
// send control while true
func (c *Controller) AwaitingReply() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaitingReply
}

func (c *Controller) removeLocked(localID int64) {
	kept := c.messages[:0]
	for _, entry := range c.messages {
		if entry.Pending && entry.LocalID == localID {
			continue
		}
		kept = append(kept, entry)
	}
	c.messages = kept
}

func (c *Controller) confirmLocked(localID int64) {
	for i := range c.messages {
		if c.messages[i].Pending && c.messages[i].LocalID == localID {
			c.messages[i].Pending = false
			c.messages[i].LocalID = 0
			return
		}
	}
}
