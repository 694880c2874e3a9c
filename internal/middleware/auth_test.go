package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/pinechat-backend/internal/config"
	"github.com/yungbote/pinechat-backend/internal/logger"
)

const (
	testSecret = "test-secret"
	testUUID   = "7a6a24cc-0a6a-4f28-9f6d-2f1f5a3b9c01"
)

func newAuthRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	am := NewAuthMiddleware(logger.NewNop(), cfg)
	router.GET("/whoami", am.RequireUser(), func(c *gin.Context) {
		c.String(http.StatusOK, UserUUID(c))
	})
	return router
}

func signToken(t *testing.T, secret, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestResolveUser(t *testing.T) {
	cases := []struct {
		name       string
		cfg        config.AuthConfig
		header     map[string]string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "uuid_header",
			cfg:        config.AuthConfig{},
			header:     map[string]string{"X-User-UUID": testUUID},
			wantStatus: http.StatusOK,
			wantBody:   testUUID,
		},
		{
			name:       "bearer_token_sub",
			cfg:        config.AuthConfig{JWTSecret: testSecret},
			header:     map[string]string{"Authorization": "Bearer SIGNED"},
			wantStatus: http.StatusOK,
			wantBody:   testUUID,
		},
		{
			name:       "bad_token_falls_back_to_header",
			cfg:        config.AuthConfig{JWTSecret: testSecret},
			header:     map[string]string{"Authorization": "Bearer garbage", "X-User-UUID": testUUID},
			wantStatus: http.StatusOK,
			wantBody:   testUUID,
		},
		{
			name:       "test_uuid_fallback",
			cfg:        config.AuthConfig{AllowTestUser: true, TestUserUUID: testUUID},
			header:     nil,
			wantStatus: http.StatusOK,
			wantBody:   testUUID,
		},
		{
			name:       "no_identity",
			cfg:        config.AuthConfig{},
			header:     nil,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid_uuid_rejected",
			cfg:        config.AuthConfig{},
			header:     map[string]string{"X-User-UUID": "not-a-uuid"},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newAuthRouter(&config.Config{Auth: tc.cfg})
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			for k, v := range tc.header {
				if v == "Bearer SIGNED" {
					v = "Bearer " + signToken(t, testSecret, testUUID)
				}
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if tc.wantBody != "" && w.Body.String() != tc.wantBody {
				t.Fatalf("body = %q, want %q", w.Body.String(), tc.wantBody)
			}
		})
	}
}
