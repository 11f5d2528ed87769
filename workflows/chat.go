package workflows

import (
	"context"

	"webchat/models"
	"webchat/services"
	"webchat/store"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
)

// Title derived from the first message is cut off at this many runes
const titleLimit = 50

// ChatWorkflows contains DBOS workflows for chat operations
type ChatWorkflows struct {
	store     store.Store
	responder services.Responder
}

// NewChatWorkflows creates a new ChatWorkflows instance
func NewChatWorkflows(st store.Store, responder services.Responder) *ChatWorkflows {
	return &ChatWorkflows{
		store:     st,
		responder: responder,
	}
}

// SendMessageInput contains the input for the SendMessage workflow
type SendMessageInput struct {
	Message        string
	ConversationID *int64
}

// SendMessageOutput contains the output of the SendMessage workflow
type SendMessageOutput struct {
	AssistantMessage models.Message
	ConversationID   int64
}

// SendMessageWorkflow is a durable workflow that appends a chat exchange.
// It resolves (or lazily creates) the conversation, generates a reply and
// persists the user/assistant pair atomically. If the workflow fails at any
// point it resumes from the last completed step.
func (w *ChatWorkflows) SendMessageWorkflow(ctx dbos.DBOSContext, input SendMessageInput) (SendMessageOutput, error) {
	var output SendMessageOutput

	// Step 1: resolve the working conversation, creating user and
	// conversation on the conversationless path
	conversationID, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (int64, error) {
		return w.resolveConversation(stepCtx, input)
	})
	if err != nil {
		return output, err
	}
	output.ConversationID = conversationID

	// Step 2: generate the assistant reply
	reply, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (string, error) {
		return w.responder.Reply(input.Message), nil
	})
	if err != nil {
		return output, err
	}

	// Step 3: persist both turns and the recency bump in one transaction
	assistantMsg, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Message, error) {
		_, assistant, err := w.store.AppendExchange(stepCtx, conversationID, input.Message, reply)
		return assistant, err
	})
	if err != nil {
		return output, err
	}
	output.AssistantMessage = assistantMsg

	return output, nil
}

// resolveConversation returns the conversation the exchange belongs to. A
// missing id means a fresh conversation for the demo user, titled from the
// incoming message.
func (w *ChatWorkflows) resolveConversation(ctx context.Context, input SendMessageInput) (int64, error) {
	if input.ConversationID != nil {
		return *input.ConversationID, nil
	}

	user, err := w.store.EnsureDemoUser(ctx)
	if err != nil {
		return 0, err
	}

	conv, err := w.store.CreateConversation(ctx, user.ID, conversationTitle(input.Message))
	if err != nil {
		return 0, err
	}
	return conv.ID, nil
}

// conversationTitle derives a title from the first message, truncated with
// an ellipsis marker when it runs long
func conversationTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= titleLimit {
		return message
	}
	return string(runes[:titleLimit]) + "..."
}
