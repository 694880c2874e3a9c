package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/pinechat-backend/internal/apierr"
	"github.com/yungbote/pinechat-backend/internal/logger"
	"github.com/yungbote/pinechat-backend/internal/types"
)

// fileConversationRepo keeps one directory per user under root and one
// <conversation_id>.json file per conversation. The directory is the only
// index: listing is a directory scan.
type fileConversationRepo struct {
	root string
	log  *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFileConversationRepo(root string, baseLog *logger.Logger) (ConversationRepo, error) {
	repoLog := baseLog.With("repo", "FileConversationRepo")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	repoLog.Info("File conversation store initialized", "root", root)
	return &fileConversationRepo{
		root:  root,
		log:   repoLog,
		locks: map[string]*sync.Mutex{},
	}, nil
}

// conversationLock serializes the load-modify-save cycle per
// (user, conversation) so two in-process appends cannot drop each other's
// message. The map is never pruned; entries are one mutex per conversation
// touched since startup.
func (r *fileConversationRepo) conversationLock(userUUID, conversationID string) *sync.Mutex {
	key := userUUID + "/" + conversationID
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}

func (r *fileConversationRepo) userDir(userUUID string) string {
	return filepath.Join(r.root, userUUID)
}

func (r *fileConversationRepo) conversationFile(userUUID, conversationID string) string {
	return filepath.Join(r.userDir(userUUID), conversationID+".json")
}

func (r *fileConversationRepo) Create(ctx context.Context, userUUID, threadName string) (*types.Conversation, error) {
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
	if err := r.write(userUUID, conv.ConversationID, conv); err != nil {
		return nil, apierr.Storage("failed to create conversation", err)
	}
	r.log.Info("Created conversation", "conversation_id", conv.ConversationID, "thread_name", threadName, "user_uuid", userUUID)
	return conv, nil
}

func (r *fileConversationRepo) List(ctx context.Context, userUUID string) ([]types.ConversationSummary, error) {
	entries, err := os.ReadDir(r.userDir(userUUID))
	if err != nil {
		if os.IsNotExist(err) {
			return []types.ConversationSummary{}, nil
		}
		return nil, apierr.Storage("failed to list conversations", err)
	}

	summaries := make([]types.ConversationSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(r.userDir(userUUID), entry.Name())
		conv, err := r.read(path)
		if err != nil {
			// A corrupt document must not fail the whole listing.
			r.log.Warn("Skipping unreadable conversation document", "path", path, "error", err)
			continue
		}
		if conv.ConversationID == "" {
			conv.ConversationID = strings.TrimSuffix(entry.Name(), ".json")
		}
		summaries = append(summaries, summarize(conv))
	}
	sortByUpdatedDesc(summaries)
	r.log.Debug("Listed conversations", "user_uuid", userUUID, "count", len(summaries))
	return summaries, nil
}

func (r *fileConversationRepo) Load(ctx context.Context, userUUID, conversationID string) (*types.Conversation, error) {
	conv, err := r.read(r.conversationFile(userUUID, conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierr.NotFound("conversation %s not found", conversationID)
		}
		return nil, apierr.Storage("failed to load conversation", err)
	}
	return conv, nil
}

func (r *fileConversationRepo) Save(ctx context.Context, userUUID, conversationID string, conv *types.Conversation) error {
	lock := r.conversationLock(userUUID, conversationID)
	lock.Lock()
	defer lock.Unlock()
	if err := r.write(userUUID, conversationID, conv); err != nil {
		return apierr.Storage("failed to save conversation", err)
	}
	return nil
}

func (r *fileConversationRepo) AppendMessage(ctx context.Context, userUUID, conversationID string, msg types.Message) error {
	lock := r.conversationLock(userUUID, conversationID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := r.Load(ctx, userUUID, conversationID)
	if err != nil {
		return err
	}
	conv.Messages = append(conv.Messages, msg)
	if err := r.write(userUUID, conversationID, conv); err != nil {
		return apierr.Storage("failed to save conversation", err)
	}
	r.log.Debug("Appended message", "conversation_id", conversationID, "total_messages", len(conv.Messages))
	return nil
}

func (r *fileConversationRepo) RenameThread(ctx context.Context, userUUID, conversationID, newName string) error {
	lock := r.conversationLock(userUUID, conversationID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := r.Load(ctx, userUUID, conversationID)
	if err != nil {
		return err
	}
	conv.ThreadName = newName
	if err := r.write(userUUID, conversationID, conv); err != nil {
		return apierr.Storage("failed to save conversation", err)
	}
	return nil
}

func (r *fileConversationRepo) Delete(ctx context.Context, userUUID, conversationID string) error {
	err := os.Remove(r.conversationFile(userUUID, conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return apierr.NotFound("conversation %s not found", conversationID)
		}
		return apierr.Storage("failed to delete conversation", err)
	}
	r.log.Info("Deleted conversation", "conversation_id", conversationID, "user_uuid", userUUID)
	return nil
}

func (r *fileConversationRepo) UserStats(ctx context.Context, userUUID string) (*types.UserStats, error) {
	summaries, err := r.List(ctx, userUUID)
	if err != nil {
		return nil, err
	}
	return statsFromSummaries(userUUID, summaries), nil
}

func (r *fileConversationRepo) read(path string) (*types.Conversation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var conv types.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// write refreshes updated_at and persists the document, creating the user's
// partition directory if missing.
func (r *fileConversationRepo) write(userUUID, conversationID string, conv *types.Conversation) error {
	if err := os.MkdirAll(r.userDir(userUUID), 0o755); err != nil {
		return err
	}
	conv.UpdatedAt = time.Now().UTC()
	raw, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.conversationFile(userUUID, conversationID), raw, 0o644)
}
