package workflows

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webchat/models"
	"webchat/store/storetest"
)

// fixedResponder always replies with the same text
type fixedResponder struct {
	reply string
}

func (r fixedResponder) Reply(_ string) string {
	return r.reply
}

func newLocalSender(mem *storetest.Mem, reply string) *LocalSender {
	return NewLocalSender(NewChatWorkflows(mem, fixedResponder{reply: reply}))
}

func TestSendCreatesConversationAndExchange(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	sender := newLocalSender(mem, "sure thing")

	output, err := sender.Send(ctx, SendMessageInput{Message: "Hello"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), output.ConversationID)
	assert.Equal(t, models.RoleAssistant, output.AssistantMessage.Role)
	assert.Equal(t, "sure thing", output.AssistantMessage.Content)

	assert.Equal(t, 1, mem.UserCount())
	assert.Equal(t, 1, mem.ConversationCount())
	assert.Equal(t, 2, mem.MessageCount())

	messages, err := mem.ListMessages(ctx, output.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Equal(t, models.RoleAssistant, messages[1].Role)
	assert.True(t, messages[1].CreatedAt.After(messages[0].CreatedAt),
		"assistant turn must be strictly after the user turn")

	conversations, err := mem.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Hello", conversations[0].Title)
}

func TestSendIntoExistingConversation(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	sender := newLocalSender(mem, "ok")

	first, err := sender.Send(ctx, SendMessageInput{Message: "Hello"})
	require.NoError(t, err)

	second, err := sender.Send(ctx, SendMessageInput{
		Message:        "And another thing",
		ConversationID: &first.ConversationID,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Equal(t, 1, mem.ConversationCount())
	assert.Equal(t, 4, mem.MessageCount())
}

func TestDemoUserCreatedOnce(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	sender := newLocalSender(mem, "ok")

	for i := 0; i < 5; i++ {
		_, err := sender.Send(ctx, SendMessageInput{Message: "Hello again"})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, mem.UserCount())
	assert.Equal(t, 5, mem.ConversationCount())
}

func TestConversationTitle(t *testing.T) {
	long := strings.Repeat("x", 60)

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"short message kept verbatim", "Hello", "Hello"},
		{"exactly at the limit", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"one over the limit", strings.Repeat("a", 51), strings.Repeat("a", 50) + "..."},
		{"well over the limit", long, long[:50] + "..."},
		{"multibyte runes counted as characters", strings.Repeat("ü", 51), strings.Repeat("ü", 50) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, conversationTitle(tt.message))
		})
	}
}

func TestResolveConversationPassthrough(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	wf := NewChatWorkflows(mem, fixedResponder{reply: "ok"})

	existing := int64(42)
	conversationID, err := wf.resolveConversation(ctx, SendMessageInput{
		Message:        "Hello",
		ConversationID: &existing,
	})
	require.NoError(t, err)
	assert.Equal(t, existing, conversationID)
	assert.Equal(t, 0, mem.UserCount(), "existing conversations must not touch the user")
	assert.Equal(t, 0, mem.ConversationCount())
}

func TestStorageFailureLeavesNoPartialExchange(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	mem.AppendErr = errors.New("connection reset")
	sender := newLocalSender(mem, "ok")

	_, err := sender.Send(ctx, SendMessageInput{Message: "Hello"})
	require.Error(t, err)

	// The conversation was created by an earlier completed step, but the
	// exchange itself is all or nothing
	assert.Equal(t, 1, mem.ConversationCount())
	assert.Equal(t, 0, mem.MessageCount())
}
