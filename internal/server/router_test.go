package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/pinechat-backend/internal/config"
	"github.com/yungbote/pinechat-backend/internal/handlers"
	"github.com/yungbote/pinechat-backend/internal/logger"
	"github.com/yungbote/pinechat-backend/internal/middleware"
	"github.com/yungbote/pinechat-backend/internal/repos"
	"github.com/yungbote/pinechat-backend/internal/services"
)

const testUser = "7a6a24cc-0a6a-4f28-9f6d-2f1f5a3b9c01"

type stubAgent struct{}

func (stubAgent) Run(ctx context.Context, input, previousSummary string) (*services.AgentResult, error) {
	return &services.AgentResult{
		Raw:         `{"answer":"stub answer","code":null,"chatsummary":"stub"}`,
		TotalTokens: 10,
	}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	repo, err := repos.NewFileConversationRepo(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewFileConversationRepo: %v", err)
	}
	chatService := services.NewChatService(log, repo, stubAgent{})
	cfg := &config.Config{
		Auth: config.AuthConfig{AllowTestUser: false},
	}
	return NewRouter(RouterConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		AuthMiddleware: middleware.NewAuthMiddleware(log, cfg),
		ChatHandler:    handlers.NewChatHandler(log, chatService),
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-UUID", testUser)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthcheck(t *testing.T) {
	router := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRequiresIdentity(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/chat/list", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRejectsMalformedIdentity(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/chat/list", nil)
	req.Header.Set("X-User-UUID", "../../escape")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestConversationLifecycle(t *testing.T) {
	router := newTestRouter(t)

	// Create with no name.
	w := doJSON(t, router, http.MethodPost, "/chat/new", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		ConversationID string `json:"conversation_id"`
		ThreadName     string `json:"thread_name"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ConversationID == "" {
		t.Fatalf("create returned no conversation_id: %s", w.Body.String())
	}

	// Send a message.
	w = doJSON(t, router, http.MethodPost, "/chat/"+created.ConversationID+"/message", map[string]string{"message": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("send status = %d, body %s", w.Code, w.Body.String())
	}

	// Fetch the full document: user turn plus assistant turn.
	w = doJSON(t, router, http.MethodGet, "/chat/"+created.ConversationID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var conv struct {
		ThreadName string `json:"thread_name"`
		Messages   []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(conv.Messages))
	}

	// Rename.
	w = doJSON(t, router, http.MethodPut, "/chat/"+created.ConversationID+"/name", map[string]string{"new_name": "My Strategy"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename status = %d, body %s", w.Code, w.Body.String())
	}

	// Stats.
	w = doJSON(t, router, http.MethodGet, "/chat/user/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats struct {
		TotalConversations int `json:"total_conversations"`
		TotalMessages      int `json:"total_messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalConversations != 1 || stats.TotalMessages != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	// Delete, then the listing no longer includes it.
	w = doJSON(t, router, http.MethodDelete, "/chat/"+created.ConversationID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/chat/list", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 0 {
		t.Fatalf("total = %d after delete, want 0", list.Total)
	}
}

func TestGetMissingConversationIs404(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/chat/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestSendToMissingConversationIs404(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/chat/nonexistent/message", map[string]string{"message": "hi"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
