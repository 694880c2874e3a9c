package repos

import (
	"context"
	"sort"
	"time"

	"github.com/yungbote/pinechat-backend/internal/types"
)

const previewLimit = 100

// ConversationRepo owns durable CRUD over conversation documents,
// partitioned by user. Implementations exist over the filesystem (one JSON
// document per conversation) and over sqlite/postgres via gorm.
type ConversationRepo interface {
	Create(ctx context.Context, userUUID, threadName string) (*types.Conversation, error)
	List(ctx context.Context, userUUID string) ([]types.ConversationSummary, error)
	Load(ctx context.Context, userUUID, conversationID string) (*types.Conversation, error)
	Save(ctx context.Context, userUUID, conversationID string, conv *types.Conversation) error
	AppendMessage(ctx context.Context, userUUID, conversationID string, msg types.Message) error
	RenameThread(ctx context.Context, userUUID, conversationID, newName string) error
	Delete(ctx context.Context, userUUID, conversationID string) error
	UserStats(ctx context.Context, userUUID string) (*types.UserStats, error)
}

// DefaultThreadName derives the fallback label used when a conversation is
// created without a name.
func DefaultThreadName(now time.Time) string {
	return "Chat - " + now.Format("2006-01-02 15:04")
}

// previewContent truncates a message body for listings. Limit counts runes
// so multi-byte content is never split mid-character.
func previewContent(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit]) + "..."
}

func summarize(conv *types.Conversation) types.ConversationSummary {
	summary := types.ConversationSummary{
		ConversationID: conv.ConversationID,
		ThreadName:     conv.ThreadName,
		MessageCount:   len(conv.Messages),
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
	}
	if len(conv.Messages) > 0 {
		summary.LastMessage = previewContent(conv.Messages[len(conv.Messages)-1].Content)
	}
	return summary
}

func sortByUpdatedDesc(summaries []types.ConversationSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
}

// statsFromSummaries derives the per-user aggregate purely from a listing.
func statsFromSummaries(userUUID string, summaries []types.ConversationSummary) *types.UserStats {
	stats := &types.UserStats{
		UserUUID:           userUUID,
		TotalConversations: len(summaries),
	}
	for _, s := range summaries {
		stats.TotalMessages += s.MessageCount
	}
	if len(summaries) > 0 {
		recent := summaries[0].UpdatedAt
		stats.MostRecentActivity = &recent
	}
	return stats
}
