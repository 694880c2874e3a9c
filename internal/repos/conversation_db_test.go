package repos

import (
	"context"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/pinechat-backend/internal/apierr"
	"github.com/yungbote/pinechat-backend/internal/logger"
	"github.com/yungbote/pinechat-backend/internal/types"
)

func newDBRepo(t *testing.T) ConversationRepo {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := gormDB.AutoMigrate(&types.ConversationRecord{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return NewDBConversationRepo(gormDB, logger.NewNop())
}

// The database store must honor the same contract as the file store.
func TestDBStoreContract(t *testing.T) {
	repo := newDBRepo(t)
	ctx := context.Background()

	conv, err := repo.Create(ctx, testUser, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(conv.ThreadName, "Chat - ") {
		t.Fatalf("default thread name %q, want prefix %q", conv.ThreadName, "Chat - ")
	}

	if _, err := repo.Load(ctx, testUser, "missing"); !apierr.IsNotFound(err) {
		t.Fatalf("Load missing: %v, want not-found", err)
	}

	msg := types.Message{Role: types.RoleUser, Content: strings.Repeat("y", 150)}
	if err := repo.AppendMessage(ctx, testUser, conv.ConversationID, msg); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	loaded, err := repo.Load(ctx, testUser, conv.ConversationID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Messages) != 1 || loaded.Messages[0].Content != msg.Content {
		t.Fatalf("loaded messages = %+v", loaded.Messages)
	}

	summaries, err := repo.List(ctx, testUser)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d conversations, want 1", len(summaries))
	}
	if !strings.HasSuffix(summaries[0].LastMessage, "...") || len(summaries[0].LastMessage) != 103 {
		t.Fatalf("preview = %q, want 100 chars plus ellipsis", summaries[0].LastMessage)
	}

	if err := repo.RenameThread(ctx, testUser, conv.ConversationID, "My Strategy"); err != nil {
		t.Fatalf("RenameThread: %v", err)
	}
	renamed, err := repo.Load(ctx, testUser, conv.ConversationID)
	if err != nil {
		t.Fatalf("Load after rename: %v", err)
	}
	if renamed.ThreadName != "My Strategy" {
		t.Fatalf("thread_name = %q, want %q", renamed.ThreadName, "My Strategy")
	}

	stats, err := repo.UserStats(ctx, testUser)
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if stats.TotalConversations != 1 || stats.TotalMessages != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	if err := repo.Delete(ctx, testUser, conv.ConversationID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, testUser, conv.ConversationID); !apierr.IsNotFound(err) {
		t.Fatalf("second Delete: %v, want not-found", err)
	}
}
