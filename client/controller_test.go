package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"webchat/handlers"
	"webchat/models"
	"webchat/services"
	"webchat/store/storetest"
	"webchat/workflows"
)

func newTestServer(t *testing.T, mem *storetest.Mem) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	wf := workflows.NewChatWorkflows(mem, services.NewCannedResponder())
	handler := handlers.NewChatHandler(mem, workflows.NewLocalSender(wf), zap.NewNop())

	router := gin.New()
	router.POST("/chat", handler.PostChat)
	router.GET("/chat", handler.GetChat)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestSendConfirmsOptimisticMessage(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	srv := newTestServer(t, mem)
	ctrl := NewController(NewAPIClient(srv.URL))

	require.NoError(t, ctrl.Send(ctx, "Hello"))

	messages := ctrl.Messages()
	require.Len(t, messages, 2)
	assert.False(t, messages[0].Pending, "user message must be confirmed after success")
	assert.Equal(t, models.RoleUser, messages[0].Message.Role)
	assert.Equal(t, "Hello", messages[0].Message.Content)
	assert.Equal(t, models.RoleAssistant, messages[1].Message.Role)
	assert.Contains(t, services.CannedReplies, messages[1].Message.Content)

	activeID := ctrl.ActiveConversationID()
	require.NotNil(t, activeID, "a fresh conversation id must be adopted")
	assert.Equal(t, int64(1), *activeID)
	assert.False(t, ctrl.AwaitingReply())

	conversations := ctrl.Conversations()
	require.Len(t, conversations, 1, "conversation list refreshes after adoption")
	assert.Equal(t, "Hello", conversations[0].Title)
}

func TestSendReusesActiveConversation(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	srv := newTestServer(t, mem)
	ctrl := NewController(NewAPIClient(srv.URL))

	require.NoError(t, ctrl.Send(ctx, "Hello"))
	require.NoError(t, ctrl.Send(ctx, "More"))

	assert.Len(t, ctrl.Messages(), 4)
	assert.Equal(t, 1, mem.ConversationCount())
}

func TestSendRollsBackOnServerError(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	mem.AppendErr = assert.AnError
	srv := newTestServer(t, mem)
	ctrl := NewController(NewAPIClient(srv.URL))

	err := ctrl.Send(ctx, "Hello")
	require.Error(t, err)

	assert.Empty(t, ctrl.Messages(), "optimistic message must be rolled back")
	assert.Nil(t, ctrl.ActiveConversationID())
	assert.False(t, ctrl.AwaitingReply())
}

func TestSendRollsBackOnNetworkError(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // every request now fails to connect

	ctrl := NewController(NewAPIClient(srv.URL))
	err := ctrl.Send(ctx, "Hello")
	require.Error(t, err)
	assert.Empty(t, ctrl.Messages())
	assert.False(t, ctrl.AwaitingReply())
}

func TestPendingWindow(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		http.Error(w, `{"error": "Internal server error"}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	ctrl := NewController(NewAPIClient(srv.URL))

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Send(ctx, "Hello")
	}()

	// The provisional message is visible while the request is in flight
	require.Eventually(t, func() bool {
		messages := ctrl.Messages()
		return len(messages) == 1 && messages[0].Pending
	}, time.Second, 5*time.Millisecond)
	assert.True(t, ctrl.AwaitingReply())

	// And a second send is refused during the window
	assert.ErrorIs(t, ctrl.Send(ctx, "too eager"), ErrReplyPending)

	release <- struct{}{}
	require.Error(t, <-done)
	assert.Empty(t, ctrl.Messages(), "failed send leaves no trace")
	assert.False(t, ctrl.AwaitingReply())
}

func TestNewChatClearsStateWithoutNetwork(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	srv := newTestServer(t, mem)
	ctrl := NewController(NewAPIClient(srv.URL))

	require.NoError(t, ctrl.Send(ctx, "Hello"))
	srv.Close() // prove NewChat needs no round trip

	ctrl.NewChat()
	assert.Empty(t, ctrl.Messages())
	assert.Nil(t, ctrl.ActiveConversationID())
}

func TestSelectConversationReloadsMessages(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	srv := newTestServer(t, mem)
	ctrl := NewController(NewAPIClient(srv.URL))

	require.NoError(t, ctrl.Send(ctx, "First conversation"))
	first := *ctrl.ActiveConversationID()

	ctrl.NewChat()
	require.NoError(t, ctrl.Send(ctx, "Second conversation"))
	require.NotEqual(t, first, *ctrl.ActiveConversationID())

	require.NoError(t, ctrl.SelectConversation(ctx, first))

	messages := ctrl.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "First conversation", messages[0].Message.Content)
	require.NotNil(t, ctrl.ActiveConversationID())
	assert.Equal(t, first, *ctrl.ActiveConversationID())
}
