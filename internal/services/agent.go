package services

import (
	"context"
)

// DefaultPreviousSummary is sent when the caller carries no conversation
// summary forward. The agent is stateless per turn; continuity comes only
// from the chatsummary field it returns.
const DefaultPreviousSummary = "No previous conversation."

// AgentResult is the raw outcome of one agent invocation. Raw should be a
// JSON object with answer/code/chatsummary fields, but callers must tolerate
// arbitrary text.
type AgentResult struct {
	Raw              string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
}

// TradingAgent is the external assistant capability: one text/code
// generation call per user message. Implementations make a single attempt;
// retry policy above transport level is not their concern.
type TradingAgent interface {
	Run(ctx context.Context, input, previousSummary string) (*AgentResult, error)
}
