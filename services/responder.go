package services

import (
	"math/rand/v2"
)

// Responder produces a reply for an incoming chat message. Implementations
// must be synchronous and stateless so the write path can swap a real
// generation backend in without changing shape.
type Responder interface {
	Reply(message string) string
}

// CannedReplies is the fixed pool the demo responder draws from
var CannedReplies = []string{
	"I understand your question. Let me think about that for a moment... Based on my analysis, I'd suggest considering multiple perspectives before making a decision.",
	"That's an interesting point! Here's my take on it: the key is to break down the problem into smaller, manageable parts and tackle each one systematically.",
	"Great question! I'd be happy to help. From what you've described, it seems like the best approach would be to start with the fundamentals and build from there.",
	"I appreciate you sharing that with me. Let me provide some insights that might be helpful for your situation.",
	"Thank you for your message. Here's what I think would be most valuable to consider in this context...",
}

// CannedResponder picks a reply uniformly at random from a fixed pool.
// Placeholder for a real AI integration.
type CannedResponder struct{}

// NewCannedResponder creates a new canned responder
func NewCannedResponder() *CannedResponder {
	return &CannedResponder{}
}

// Reply returns one of the canned replies. The input message is ignored.
func (r *CannedResponder) Reply(_ string) string {
	return CannedReplies[rand.IntN(len(CannedReplies))]
}
