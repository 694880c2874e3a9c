package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yungbote/pinechat-backend/internal/apierr"
	"github.com/yungbote/pinechat-backend/internal/logger"
	"github.com/yungbote/pinechat-backend/internal/repos"
	"github.com/yungbote/pinechat-backend/internal/types"
)

// CreateConversationResult is returned by CreateConversation.
type CreateConversationResult struct {
	ConversationID string `json:"conversation_id"`
	ThreadName     string `json:"thread_name"`
}

// ChatTurnResult is the outcome of one processed message. On generation
// failure ProcessMessage still returns a non-nil result alongside the error:
// the error-carrying assistant message, conversation id and thread name,
// with zero usage accounting.
type ChatTurnResult struct {
	Response       types.Message `json:"response"`
	ConversationID string        `json:"conversation_id"`
	ThreadName     string        `json:"thread_name"`
	Tokens         int           `json:"tokens"`
	Cost           float64       `json:"cost"`
}

type ChatService interface {
	CreateConversation(ctx context.Context, userUUID, threadName string) (*CreateConversationResult, error)
	ListConversations(ctx context.Context, userUUID string) ([]types.ConversationSummary, error)
	GetConversation(ctx context.Context, userUUID, conversationID string) (*types.Conversation, error)
	ProcessMessage(ctx context.Context, userUUID, conversationID, text string) (*ChatTurnResult, error)
	RenameThread(ctx context.Context, userUUID, conversationID, newName string) error
	DeleteConversation(ctx context.Context, userUUID, conversationID string) error
	UserStats(ctx context.Context, userUUID string) (*types.UserStats, error)
}

type chatService struct {
	log   *logger.Logger
	repo  repos.ConversationRepo
	agent TradingAgent
}

func NewChatService(baseLog *logger.Logger, repo repos.ConversationRepo, agent TradingAgent) ChatService {
	serviceLog := baseLog.With("service", "ChatService")
	return &chatService{log: serviceLog, repo: repo, agent: agent}
}

func (s *chatService) CreateConversation(ctx context.Context, userUUID, threadName string) (*CreateConversationResult, error) {
	if userUUID == "" {
		return nil, apierr.Validation("user uuid is required")
	}
	conv, err := s.repo.Create(ctx, userUUID, threadName)
	if err != nil {
		return nil, err
	}
	return &CreateConversationResult{
		ConversationID: conv.ConversationID,
		ThreadName:     conv.ThreadName,
	}, nil
}

func (s *chatService) ListConversations(ctx context.Context, userUUID string) ([]types.ConversationSummary, error) {
	return s.repo.List(ctx, userUUID)
}

func (s *chatService) GetConversation(ctx context.Context, userUUID, conversationID string) (*types.Conversation, error) {
	return s.repo.Load(ctx, userUUID, conversationID)
}

// ProcessMessage drives one user-message -> assistant-response exchange with
// durability at each step: the user message is persisted before the agent is
// invoked, and an agent failure is persisted as an assistant message so the
// log always shows a turn for a user's turn.
func (s *chatService) ProcessMessage(ctx context.Context, userUUID, conversationID, text string) (*ChatTurnResult, error) {
	if text == "" {
		return nil, apierr.Validation("message text is required")
	}

	conv, err := s.repo.Load(ctx, userUUID, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg := types.Message{
		Role:      types.RoleUser,
		Content:   text,
		Timestamp: time.Now().UTC(),
	}
	if err := s.repo.AppendMessage(ctx, userUUID, conversationID, userMsg); err != nil {
		// The agent is never invoked on unpersisted state.
		return nil, apierr.Storage("failed to save user message", err)
	}

	result, err := s.agent.Run(ctx, text, DefaultPreviousSummary)
	if err != nil {
		return s.recordGenerationFailure(ctx, userUUID, conversationID, conv.ThreadName, err)
	}

	answer, metadata := parseAgentOutput(result.Raw)
	aiMsg := types.Message{
		Role:      types.RoleAssistant,
		Content:   answer,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
	if err := s.repo.AppendMessage(ctx, userUUID, conversationID, aiMsg); err != nil {
		return nil, apierr.Storage("failed to save assistant response", err)
	}

	s.log.Info("Processed message",
		"conversation_id", conversationID,
		"user_uuid", userUUID,
		"tokens", result.TotalTokens,
		"cost", result.Cost,
	)
	return &ChatTurnResult{
		Response:       aiMsg,
		ConversationID: conversationID,
		ThreadName:     conv.ThreadName,
		Tokens:         result.TotalTokens,
		Cost:           result.Cost,
	}, nil
}

// recordGenerationFailure appends an error-carrying assistant message so the
// conversation reflects the attempt, then surfaces the failure to the caller
// with the same text and zero usage.
func (s *chatService) recordGenerationFailure(ctx context.Context, userUUID, conversationID, threadName string, genErr error) (*ChatTurnResult, error) {
	s.log.Error("Agent call failed", "conversation_id", conversationID, "error", genErr)

	errText := fmt.Sprintf("Sorry, I encountered an error: %s", genErr.Error())
	errMsg := types.Message{
		Role:      types.RoleAssistant,
		Content:   errText,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]interface{}{"error": genErr.Error()},
	}
	if appendErr := s.repo.AppendMessage(ctx, userUUID, conversationID, errMsg); appendErr != nil {
		s.log.Error("Failed to record generation failure", "conversation_id", conversationID, "error", appendErr)
	}

	return &ChatTurnResult{
		Response:       errMsg,
		ConversationID: conversationID,
		ThreadName:     threadName,
	}, apierr.Generation(errText, genErr)
}

func (s *chatService) RenameThread(ctx context.Context, userUUID, conversationID, newName string) error {
	if newName == "" {
		return apierr.Validation("new thread name is required")
	}
	return s.repo.RenameThread(ctx, userUUID, conversationID, newName)
}

func (s *chatService) DeleteConversation(ctx context.Context, userUUID, conversationID string) error {
	return s.repo.Delete(ctx, userUUID, conversationID)
}

func (s *chatService) UserStats(ctx context.Context, userUUID string) (*types.UserStats, error) {
	return s.repo.UserStats(ctx, userUUID)
}

// parseAgentOutput extracts the answer text and metadata payload from the
// agent's raw output. Output that is not a JSON object is never dropped: the
// raw text becomes the answer directly.
func parseAgentOutput(raw string) (string, map[string]interface{}) {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed == nil {
		return raw, map[string]interface{}{"answer": raw}
	}
	answer, _ := parsed["answer"].(string)
	if answer == "" {
		answer = raw
		parsed["answer"] = raw
	}
	return answer, parsed
}
