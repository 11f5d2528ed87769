package workflows

import (
	"context"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
)

// Sender runs the send-message flow to completion. Handlers depend on this
// interface rather than on the workflow runtime directly.
type Sender interface {
	Send(ctx context.Context, input SendMessageInput) (SendMessageOutput, error)
}

// DBOSSender executes SendMessageWorkflow as a durable DBOS workflow
type DBOSSender struct {
	dbosCtx   dbos.DBOSContext
	workflows *ChatWorkflows
}

// NewDBOSSender creates a Sender backed by the given DBOS context
func NewDBOSSender(dbosCtx dbos.DBOSContext, wf *ChatWorkflows) *DBOSSender {
	return &DBOSSender{
		dbosCtx:   dbosCtx,
		workflows: wf,
	}
}

// Send starts the workflow and waits for its result
func (s *DBOSSender) Send(_ context.Context, input SendMessageInput) (SendMessageOutput, error) {
	handle, err := dbos.RunWorkflow(s.dbosCtx, s.workflows.SendMessageWorkflow, input)
	if err != nil {
		return SendMessageOutput{}, err
	}
	return handle.GetResult()
}

// LocalSender runs the same flow in-process without the durable workflow
// runtime. A crash mid-flow is not resumed; the atomic exchange write keeps
// the store consistent either way.
type LocalSender struct {
	workflows *ChatWorkflows
}

// NewLocalSender creates a Sender that executes the flow directly
func NewLocalSender(wf *ChatWorkflows) *LocalSender {
	return &LocalSender{workflows: wf}
}

// Send executes the send-message flow with the caller's context
func (s *LocalSender) Send(ctx context.Context, input SendMessageInput) (SendMessageOutput, error) {
	var output SendMessageOutput

	conversationID, err := s.workflows.resolveConversation(ctx, input)
	if err != nil {
		return output, err
	}
	output.ConversationID = conversationID

	reply := s.workflows.responder.Reply(input.Message)

	_, assistant, err := s.workflows.store.AppendExchange(ctx, conversationID, input.Message, reply)
	if err != nil {
		return output, err
	}
	output.AssistantMessage = assistant
	return output, nil
}
