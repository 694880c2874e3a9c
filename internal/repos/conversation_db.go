package repos

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/pinechat-backend/internal/apierr"
	"github.com/yungbote/pinechat-backend/internal/logger"
	"github.com/yungbote/pinechat-backend/internal/types"
)

// dbConversationRepo is the database backing of ConversationRepo. Same
// semantics as the file store; the messages sequence lives in a JSON column.
type dbConversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDBConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	repoLog := baseLog.With("repo", "DBConversationRepo")
	return &dbConversationRepo{db: db, log: repoLog}
}

func (r *dbConversationRepo) Create(ctx context.Context, userUUID, threadName string) (*types.Conversation, error) {
	if threadName == "" {
		threadName = DefaultThreadName(time.Now())
	}
	now := time.Now().UTC()
	conv := &types.Conversation{
		ConversationID: uuid.NewString(),
		UserUUID:       userUUID,
		ThreadName:     threadName,
		Messages:       []types.Message{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	record, err := toRecord(conv)
	if err != nil {
		return nil, apierr.Storage("failed to create conversation", err)
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, apierr.Storage("failed to create conversation", err)
	}
	r.log.Info("Created conversation", "conversation_id", conv.ConversationID, "thread_name", threadName, "user_uuid", userUUID)
	return conv, nil
}

func (r *dbConversationRepo) List(ctx context.Context, userUUID string) ([]types.ConversationSummary, error) {
	var records []types.ConversationRecord
	if err := r.db.WithContext(ctx).
		Where("user_uuid = ?", userUUID).
		Order("updated_at DESC").
		Find(&records).Error; err != nil {
		return nil, apierr.Storage("failed to list conversations", err)
	}

	summaries := make([]types.ConversationSummary, 0, len(records))
	for i := range records {
		conv, err := fromRecord(&records[i])
		if err != nil {
			r.log.Warn("Skipping conversation row with unreadable messages", "conversation_id", records[i].ID, "error", err)
			continue
		}
		summaries = append(summaries, summarize(conv))
	}
	sortByUpdatedDesc(summaries)
	return summaries, nil
}

func (r *dbConversationRepo) Load(ctx context.Context, userUUID, conversationID string) (*types.Conversation, error) {
	var record types.ConversationRecord
	err := r.db.WithContext(ctx).
		Where("user_uuid = ? AND id = ?", userUUID, conversationID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("conversation %s not found", conversationID)
		}
		return nil, apierr.Storage("failed to load conversation", err)
	}
	conv, err := fromRecord(&record)
	if err != nil {
		return nil, apierr.Storage("failed to load conversation", err)
	}
	return conv, nil
}

func (r *dbConversationRepo) Save(ctx context.Context, userUUID, conversationID string, conv *types.Conversation) error {
	conv.UpdatedAt = time.Now().UTC()
	record, err := toRecord(conv)
	if err != nil {
		return apierr.Storage("failed to save conversation", err)
	}
	return r.saveRecord(ctx, userUUID, conversationID, record)
}

func (r *dbConversationRepo) AppendMessage(ctx context.Context, userUUID, conversationID string, msg types.Message) error {
	conv, err := r.Load(ctx, userUUID, conversationID)
	if err != nil {
		return err
	}
	conv.Messages = append(conv.Messages, msg)
	return r.Save(ctx, userUUID, conversationID, conv)
}

func (r *dbConversationRepo) RenameThread(ctx context.Context, userUUID, conversationID, newName string) error {
	conv, err := r.Load(ctx, userUUID, conversationID)
	if err != nil {
		return err
	}
	conv.ThreadName = newName
	return r.Save(ctx, userUUID, conversationID, conv)
}

func (r *dbConversationRepo) Delete(ctx context.Context, userUUID, conversationID string) error {
	result := r.db.WithContext(ctx).
		Where("user_uuid = ? AND id = ?", userUUID, conversationID).
		Delete(&types.ConversationRecord{})
	if result.Error != nil {
		return apierr.Storage("failed to delete conversation", result.Error)
	}
	if result.RowsAffected == 0 {
		return apierr.NotFound("conversation %s not found", conversationID)
	}
	r.log.Info("Deleted conversation", "conversation_id", conversationID, "user_uuid", userUUID)
	return nil
}

func (r *dbConversationRepo) UserStats(ctx context.Context, userUUID string) (*types.UserStats, error) {
	summaries, err := r.List(ctx, userUUID)
	if err != nil {
		return nil, err
	}
	return statsFromSummaries(userUUID, summaries), nil
}

func (r *dbConversationRepo) saveRecord(ctx context.Context, userUUID, conversationID string, record *types.ConversationRecord) error {
	result := r.db.WithContext(ctx).
		Model(&types.ConversationRecord{}).
		Where("user_uuid = ? AND id = ?", userUUID, conversationID).
		Updates(map[string]interface{}{
			"thread_name": record.ThreadName,
			"messages":    record.Messages,
			"updated_at":  record.UpdatedAt,
		})
	if result.Error != nil {
		return apierr.Storage("failed to save conversation", result.Error)
	}
	if result.RowsAffected == 0 {
		return apierr.NotFound("conversation %s not found", conversationID)
	}
	return nil
}

func toRecord(conv *types.Conversation) (*types.ConversationRecord, error) {
	raw, err := json.Marshal(conv.Messages)
	if err != nil {
		return nil, err
	}
	return &types.ConversationRecord{
		ID:         conv.ConversationID,
		UserUUID:   conv.UserUUID,
		ThreadName: conv.ThreadName,
		Messages:   datatypes.JSON(raw),
		CreatedAt:  conv.CreatedAt,
		UpdatedAt:  conv.UpdatedAt,
	}, nil
}

func fromRecord(record *types.ConversationRecord) (*types.Conversation, error) {
	messages := []types.Message{}
	if len(record.Messages) > 0 {
		if err := json.Unmarshal(record.Messages, &messages); err != nil {
			return nil, err
		}
	}
	return &types.Conversation{
		ConversationID: record.ID,
		UserUUID:       record.UserUUID,
		ThreadName:     record.ThreadName,
		Messages:       messages,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}, nil
}
